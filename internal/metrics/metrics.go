package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_sessions_created_total",
		Help: "Total number of quiz sessions created",
	})

	SessionsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_sessions_expired_total",
		Help: "Total number of quiz sessions reclaimed after their idle TTL",
	})

	StatusPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_status_polls_total",
		Help: "Total number of status snapshot reads",
	})

	AnswersSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_answers_submitted_total",
		Help: "Total number of answer upserts accepted",
	})

	MarkingTriggers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_marking_triggers_total",
		Help: "Total number of marking assignment computations",
	})

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
