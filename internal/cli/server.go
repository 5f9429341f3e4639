package cli

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/powmonk/qubpiz-sub000/internal/app"
	"github.com/powmonk/qubpiz-sub000/internal/config"
	"github.com/powmonk/qubpiz-sub000/internal/domain"
	"github.com/powmonk/qubpiz-sub000/internal/infra/memory"
	pgloader "github.com/powmonk/qubpiz-sub000/internal/infra/postgres"
	redisinfra "github.com/powmonk/qubpiz-sub000/internal/infra/redis"
	transport "github.com/powmonk/qubpiz-sub000/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.TemplateLoader = memory.NewStaticTemplateLoader(sampleTemplates())
	if pool != nil {
		loader = pgloader.NewTemplateLoader(pool)
	}

	cacheTTL := config.TTLDuration(cfg.Template.CacheTTL, 10*time.Minute)
	var templates app.TemplateRepository
	if redisClient != nil {
		templates = redisinfra.NewTemplateRepository(redisClient, loader, cacheTTL)
	} else {
		templates = memory.NewTemplateRepository(loader, cacheTTL)
	}

	sessionTTL := config.TTLDuration(cfg.Session.TTL, memory.DefaultSessionTTL)
	var sessions app.SessionStore
	var memStore *memory.SessionStore
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient, sessionTTL)
	} else {
		memStore = memory.NewSessionStore(sessionTTL)
		sessions = memStore
	}

	codes := app.NewCodeGenerator()
	if cfg.Session.CodeLength > 0 {
		codes = app.NewCodeGeneratorWithRand(app.DefaultCodeAlphabet, cfg.Session.CodeLength, rand.New(rand.NewSource(time.Now().UnixNano())))
	}
	service := app.NewSessionService(sessions, templates, codes, app.NewMarkingEngine())
	handler := transport.NewHandler(service)
	router := transport.NewRouter(handler, cfg.Server.AllowOrigins)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Lazy expiry keeps semantics correct on its own; the sweep only reclaims
	// memory held by sessions nobody will look up again.
	sweepDone := make(chan struct{})
	if memStore != nil {
		sweepInterval := config.TTLDuration(cfg.Session.SweepInterval, 10*time.Minute)
		go func() {
			ticker := time.NewTicker(sweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-sweepDone:
					return
				case <-ticker.C:
					if n := memStore.SweepExpired(context.Background()); n > 0 {
						log.Printf("swept %d expired sessions", n)
					}
				}
			}
		}()
	}

	go func() {
		log.Printf("starting qubpiz session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}
	close(sweepDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleTemplates provides a minimal template set for running without
// Postgres; swap in the DB-backed loader in production.
func sampleTemplates() map[string]domain.Template {
	return map[string]domain.Template{
		"demo-quiz": {
			ID:   "demo-quiz",
			Name: "Demo Pub Quiz",
			Rounds: []domain.Round{
				{
					ID:   "r1",
					Name: "General Knowledge",
					Type: domain.RoundText,
					Questions: []domain.Question{
						{ID: "q1", Prompt: "Which planet is known as the Red Planet?"},
						{ID: "q2", Prompt: "In which year did the Berlin Wall fall?"},
					},
				},
				{
					ID:   "r2",
					Name: "Picture Round",
					Type: domain.RoundPicture,
					Questions: []domain.Question{
						{ID: "q3", Prompt: "Name the landmark in picture 1"},
					},
				},
			},
		},
	}
}
