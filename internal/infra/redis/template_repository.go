package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/powmonk/qubpiz-sub000/internal/domain"
)

// TemplateLoader fetches quiz templates from a backing store (e.g., Postgres).
type TemplateLoader interface {
	LoadTemplate(ctx context.Context, templateID string) (domain.Template, error)
}

// TemplateRepository caches whole templates as JSON in Redis
// (SET quiz:template:{id}) and falls back to a loader on cache miss.
type TemplateRepository struct {
	client *redis.Client
	loader TemplateLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewTemplateRepository(client *redis.Client, loader TemplateLoader, ttl time.Duration) *TemplateRepository {
	return &TemplateRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *TemplateRepository) GetTemplate(ctx context.Context, templateID string) (domain.Template, error) {
	key := r.key(templateID)

	if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var tmpl domain.Template
		if err := json.Unmarshal(raw, &tmpl); err == nil {
			return tmpl, nil
		}
		// Corrupt cache entry; fall through to the loader and rewrite it.
	}

	result, err, _ := r.sf.Do(templateID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
			var tmpl domain.Template
			if err := json.Unmarshal(raw, &tmpl); err == nil {
				return tmpl, nil
			}
		}

		tmpl, err := r.loader.LoadTemplate(ctx, templateID)
		if err != nil {
			return domain.Template{}, err
		}

		if raw, err := json.Marshal(tmpl); err == nil {
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return tmpl, nil
	})
	if err != nil {
		return domain.Template{}, err
	}
	return result.(domain.Template), nil
}

func (r *TemplateRepository) key(templateID string) string {
	return "quiz:template:" + templateID
}

func (r *TemplateRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
