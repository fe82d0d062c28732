package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	registry         *prom.Registry
	stageDuration    *prom.HistogramVec
	operations       *prom.CounterVec
	units            *prom.CounterVec
	sectionFailures  prom.Counter
	resourcesRemoved prom.Counter
	poolItems        *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the hwpxkit metrics. A nil
// registry gets a fresh one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "hwpxkit",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.operations = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "hwpxkit",
			Name:      "operations_total",
			Help:      "Parse, build and merge operations by outcome",
		}, []string{"op", "result"})
		pr.units = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "hwpxkit",
			Name:      "units_total",
			Help:      "Units detected or written",
		}, []string{"op"})
		pr.sectionFailures = prom.NewCounter(prom.CounterOpts{
			Namespace: "hwpxkit",
			Name:      "section_parse_failures_total",
			Help:      "Section streams skipped because they did not parse",
		})
		pr.resourcesRemoved = prom.NewCounter(prom.CounterOpts{
			Namespace: "hwpxkit",
			Name:      "resources_removed_total",
			Help:      "Binary resources dropped by collection",
		})
		pr.poolItems = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "hwpxkit",
			Name:      "pool_items_total",
			Help:      "Worker pool items by outcome",
		}, []string{"pool", "result"})
		reg.MustRegister(pr.stageDuration, pr.operations, pr.units, pr.sectionFailures, pr.resourcesRemoved, pr.poolItems)
	})
	return pr
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

// WriteTextfile writes the current values in the text exposition format,
// for node_exporter's textfile collector.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.registry)
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncOperation(op string, result ResultLabel) {
	if p == nil || p.operations == nil {
		return
	}
	p.operations.WithLabelValues(op, string(result)).Inc()
}

func (p *PrometheusRecorder) AddUnits(op string, n int) {
	if p == nil || p.units == nil || n <= 0 {
		return
	}
	p.units.WithLabelValues(op).Add(float64(n))
}

func (p *PrometheusRecorder) IncSectionFailure() {
	if p == nil || p.sectionFailures == nil {
		return
	}
	p.sectionFailures.Inc()
}

func (p *PrometheusRecorder) IncResourcesRemoved(n int) {
	if p == nil || p.resourcesRemoved == nil || n <= 0 {
		return
	}
	p.resourcesRemoved.Add(float64(n))
}

func (p *PrometheusRecorder) IncPoolItem(pool string, result ResultLabel) {
	if p == nil || p.poolItems == nil {
		return
	}
	p.poolItems.WithLabelValues(pool, string(result)).Inc()
}
