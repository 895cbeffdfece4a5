package diagnosis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver exports engine latencies and outcome counts.
// Implements both LatencyObserver and StatusRecorder.
type PrometheusObserver struct {
	latency  *prometheus.HistogramVec
	statuses *prometheus.CounterVec
}

func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	o := &PrometheusObserver{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "airos",
			Subsystem: "diagnosis",
			Name:      "latency_seconds",
			Help:      "Latency of diagnosis engine operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		statuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airos",
			Subsystem: "diagnosis",
			Name:      "plans_total",
			Help:      "Diagnosis plans produced, by status.",
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{o.latency, o.statuses} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *PrometheusObserver) ObserveDiagnosisLatency(op string, duration time.Duration) {
	o.latency.WithLabelValues(op).Observe(duration.Seconds())
}

func (o *PrometheusObserver) RecordDiagnosisStatus(status string) {
	o.statuses.WithLabelValues(status).Inc()
}
