package http

import (
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/powmonk/qubpiz-sub000/internal/metrics"
)

// NewRouter wires the full polling API. allowOrigins empty means same-origin
// only; "*" opens it up for a separately-hosted frontend.
func NewRouter(h *Handler, allowOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestMetrics())

	if len(allowOrigins) > 0 {
		cfg := cors.DefaultConfig()
		if len(allowOrigins) == 1 && allowOrigins[0] == "*" {
			cfg.AllowAllOrigins = true
		} else {
			cfg.AllowOrigins = allowOrigins
		}
		cfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
		router.Use(cors.New(cfg))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.String(200, "ok")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sessions := router.Group("/sessions")
	{
		sessions.POST("", h.createSession)
		sessions.GET("", h.listSessions)
		sessions.GET("/:code", h.getSession)
		sessions.GET("/:code/status", h.getStatus)
		sessions.POST("/:code/open", h.openSession)
		sessions.POST("/:code/round", h.setRound)
		sessions.POST("/:code/end", h.endSession)
		sessions.POST("/:code/reset", h.resetSession)

		sessions.GET("/:code/members", h.listMembers)
		sessions.POST("/:code/members", h.join)
		sessions.DELETE("/:code/members/:name", h.removeMember)

		sessions.POST("/:code/answers", h.submitAnswer)
		sessions.GET("/:code/answers/:name/:roundId", h.getAnswers)

		sessions.POST("/:code/marking", h.setMarking)
		sessions.DELETE("/:code/marking", h.clearMarking)
		sessions.POST("/:code/marking/trigger", h.triggerMarking)
		sessions.GET("/:code/marking/assignments/:name", h.getAssignments)
		sessions.POST("/:code/marking/scores", h.submitScore)
		sessions.GET("/:code/marking/results", h.getResults)
	}

	return router
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RequestDuration.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
