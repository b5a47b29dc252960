// Package metrics exposes Prometheus collectors for the generator.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-data-generator/internal/weather"
)

var phases = []weather.Phase{
	weather.PhaseIdle,
	weather.PhaseBackfilling,
	weather.PhaseLive,
	weather.PhaseStopped,
}

// Collector bundles the generator metrics. It implements weather.Observer.
type Collector struct {
	gatherer prometheus.Gatherer

	SamplesWritten  *prometheus.CounterVec
	Phase           *prometheus.GaugeVec
	BackfillRatio   prometheus.Gauge
	LastSampleTime  prometheus.Gauge
	StorageFailures prometheus.Counter
	PrunedSamples   prometheus.Counter
}

// NewCollector registers the generator metrics against reg, defaulting to
// the global registry when nil. Collectors already registered are reused.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	written, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weather_generator_samples_written_total",
		Help: "Samples persisted, labeled by the phase that produced them.",
	}, []string{"phase"}), "weather_generator_samples_written_total")
	if err != nil {
		return nil, err
	}
	phase, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "weather_generator_phase",
		Help: "1 for the current generation phase, 0 for the others.",
	}, []string{"phase"}), "weather_generator_phase")
	if err != nil {
		return nil, err
	}
	progress, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "weather_generator_backfill_progress_ratio",
		Help: "Fraction of the historical window written by the current backfill.",
	}), "weather_generator_backfill_progress_ratio")
	if err != nil {
		return nil, err
	}
	lastSample, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "weather_generator_last_sample_timestamp_seconds",
		Help: "Timestamp carried by the most recently written sample.",
	}), "weather_generator_last_sample_timestamp_seconds")
	if err != nil {
		return nil, err
	}
	failures, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "weather_generator_storage_failures_total",
		Help: "Generation runs terminated by a storage failure.",
	}), "weather_generator_storage_failures_total")
	if err != nil {
		return nil, err
	}
	pruned, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "weather_generator_pruned_rows_total",
		Help: "Rows deleted by the retention job.",
	}), "weather_generator_pruned_rows_total")
	if err != nil {
		return nil, err
	}

	c := &Collector{
		gatherer:        gatherer,
		SamplesWritten:  written,
		Phase:           phase,
		BackfillRatio:   progress,
		LastSampleTime:  lastSample,
		StorageFailures: failures,
		PrunedSamples:   pruned,
	}
	c.PhaseChanged(weather.PhaseIdle)
	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) PhaseChanged(phase weather.Phase) {
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		c.Phase.WithLabelValues(string(p)).Set(v)
	}
	if phase == weather.PhaseBackfilling {
		c.BackfillRatio.Set(0)
	}
}

func (c *Collector) SampleWritten(phase weather.Phase, ts time.Time) {
	c.SamplesWritten.WithLabelValues(string(phase)).Inc()
	c.LastSampleTime.Set(float64(ts.UnixNano()) / 1e9)
}

func (c *Collector) BackfillProgress(written, total int) {
	if total <= 0 {
		return
	}
	c.BackfillRatio.Set(float64(written) / float64(total))
}

func (c *Collector) StorageFailed() {
	c.StorageFailures.Inc()
}

// Pruned records rows removed by the retention job.
func (c *Collector) Pruned(n int64) {
	if n > 0 {
		c.PrunedSamples.Add(float64(n))
	}
}

// register registers col, returning the already registered collector of the
// same type when there is one.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
