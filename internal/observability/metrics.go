package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveCalls       prometheus.Gauge
	CallEvents        *prometheus.CounterVec
	RoutingDecisions  *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	SynthCache        *prometheus.CounterVec
	BargeIns          prometheus.Counter
	Acknowledgments   prometheus.Counter
	MediaFrames       *prometheus.CounterVec
	FirstReplyLatency prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of live media sessions.",
		}),
		CallEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Call lifecycle events by type.",
		}, []string{"event"}),
		RoutingDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Inbound routing decisions by route and reason.",
		}, []string{"route", "reason"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Speech provider errors by provider and code.",
		}, []string{"provider", "code"}),
		SynthCache: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_cache_total",
			Help:      "Synthesis cache lookups by result.",
		}, []string{"result"}),
		BargeIns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barge_ins_total",
			Help:      "Caller interruptions that cleared pending playback.",
		}),
		Acknowledgments: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acknowledgments_total",
			Help:      "Filler acknowledgments spoken while generation was pending.",
		}),
		MediaFrames: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_frames_total",
			Help:      "Media frames by direction.",
		}, []string{"direction"}),
		FirstReplyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_reply_latency_ms",
			Help:      "Latency from final transcript to first reply audio in milliseconds.",
			Buckets:   []float64{200, 400, 700, 1000, 1500, 2500, 4000, 8000},
		}),
	}
}

func (m *Metrics) ObserveFirstReplyLatency(d time.Duration) {
	m.FirstReplyLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
