package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "mediaguard_operation_duration_sec",
	Help: "Duration of ledger operations",
}, []string{"op"})

var operationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mediaguard_operations",
	Help: "Number of ledger operations by result code",
}, []string{"op", "code"})

var postsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mediaguard_posts_created",
	Help: "Number of posts appended to the ledger",
}, []string{"blocked"})

var suspensionCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "mediaguard_suspensions",
	Help: "Number of participants suspended for repeated violations",
})

var reviewCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mediaguard_unblock_reviews",
	Help: "Number of owner decisions on unblock requests",
}, []string{"decision"})

var publishErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "mediaguard_event_publish_errors",
	Help: "Number of ledger events that failed to publish",
})

func observe(op string, start time.Time, err error) {
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	operationCount.WithLabelValues(op, Code(err)).Inc()
}
