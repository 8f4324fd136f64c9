package bus

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the bus's Prometheus gauges, registered once per process and
// refreshed by polling Stats for whichever queues the caller cares about.
var (
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "maestro_queue_depth",
		Help: "Current number of messages waiting in a queue.",
	}, []string{"queue"})

	QueueInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "maestro_queue_inflight",
		Help: "Messages dequeued but not yet acked or nacked.",
	}, []string{"queue"})

	QueueDLQDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "maestro_queue_dlq_depth",
		Help: "Current number of messages in a queue's dead-letter queue.",
	}, []string{"queue"})
)

func init() {
	prometheus.MustRegister(QueueDepth, QueueInFlight, QueueDLQDepth)
}

// ReportStats pushes a Stats snapshot into the registered gauges; callers
// typically invoke this on a ticker per queue of interest.
func ReportStats(s Stats) {
	QueueDepth.WithLabelValues(s.Queue).Set(float64(s.Depth))
	QueueInFlight.WithLabelValues(s.Queue).Set(float64(s.InFlight))
	QueueDLQDepth.WithLabelValues(s.Queue).Set(float64(s.DLQDepth))
}
