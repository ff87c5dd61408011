// Package metrics exposes Prometheus collectors for the sampler.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Record outcomes used as the "result" label.
const (
	Accepted = "accepted"
	Rejected = "rejected"
	Failed   = "failed"
)

// Package-level collectors. They are registered via Register.
var (
	regOK atomic.Bool

	cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apptime",
			Subsystem: "sampler",
			Name:      "cycles_total",
			Help:      "Number of completed poll cycles.",
		}, []string{"loop"},
	)
	records = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apptime",
			Subsystem: "sampler",
			Name:      "records_total",
			Help:      "Records handed to the store, by outcome.",
		}, []string{"loop", "result"},
	)
	cycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "apptime",
			Subsystem: "sampler",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent scanning and writing in one cycle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"loop"},
	)
	delay = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "apptime",
			Subsystem: "sampler",
			Name:      "delay_seconds",
			Help:      "Configured wait between cycles.",
		}, []string{"loop"},
	)
	running = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "apptime",
			Subsystem: "sampler",
			Name:      "running",
			Help:      "1 while both sampler loops are alive.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{cycles, records, cycleDuration, delay, running}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// The helpers below no-op until Register succeeds.

func IncCycle(loop string) {
	if regOK.Load() {
		cycles.WithLabelValues(loop).Inc()
	}
}

func AddRecords(loop, result string, n int) {
	if regOK.Load() && n > 0 {
		records.WithLabelValues(loop, result).Add(float64(n))
	}
}

func ObserveCycle(loop string, seconds float64) {
	if regOK.Load() {
		cycleDuration.WithLabelValues(loop).Observe(seconds)
	}
}

func SetDelay(loop string, seconds float64) {
	if regOK.Load() {
		delay.WithLabelValues(loop).Set(seconds)
	}
}

func SetRunning(up bool) {
	if !regOK.Load() {
		return
	}
	if up {
		running.Set(1)
	} else {
		running.Set(0)
	}
}
