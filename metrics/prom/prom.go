// Package prom adapts metrics.Recorder to Prometheus, the metrics
// dependency carried over from the teacher's go.mod and metrics/prom
// package (there re-pointed at cache-level hit/miss/evict/size signals;
// here at index/policy-level ones).
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nibcache/nibcache/metrics"
)

// Adapter implements metrics.Recorder and exports Prometheus
// counters/histograms. Safe for concurrent use; all Prometheus metric
// types are goroutine-safe.
type Adapter struct {
	insertDepth  prometheus.Histogram
	removes      prometheus.Counter
	edgeShortens prometheus.Counter
	attaches     prometheus.Counter
	touches      prometheus.Counter
	evicts       *prometheus.CounterVec
	drainBatch   prometheus.Histogram
}

// New constructs a Prometheus metrics adapter.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		insertDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "index_insert_depth",
			Help:        "Internal nodes descended per Insert",
			ConstLabels: constLabels,
			Buckets:     prometheus.LinearBuckets(0, 2, 10),
		}),
		removes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "index_removes_total",
			Help:        "Successful index removals",
			ConstLabels: constLabels,
		}),
		edgeShortens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "index_edge_shortens_total",
			Help:        "Internal nodes collapsed by edge-shortening",
			ConstLabels: constLabels,
		}),
		attaches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "policy_attaches_total",
			Help:        "Policy node attaches",
			ConstLabels: constLabels,
		}),
		touches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "policy_touches_total",
			Help:        "Policy touches that reserved a buffer slot",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "policy_evictions_total",
				Help:        "Policy evictions by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		drainBatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "policy_drain_batch",
			Help:        "Nodes moved to the front of the list per drain",
			ConstLabels: constLabels,
			Buckets:     prometheus.LinearBuckets(0, 16, 16),
		}),
	}
	reg.MustRegister(a.insertDepth, a.removes, a.edgeShortens, a.attaches,
		a.touches, a.evicts, a.drainBatch)
	return a
}

func (a *Adapter) IndexInsert(depth int)   { a.insertDepth.Observe(float64(depth)) }
func (a *Adapter) IndexRemove()            { a.removes.Inc() }
func (a *Adapter) IndexEdgeShorten()       { a.edgeShortens.Inc() }
func (a *Adapter) PolicyAttach()           { a.attaches.Inc() }
func (a *Adapter) PolicyTouch()            { a.touches.Inc() }
func (a *Adapter) PolicyEvict(reason string) {
	a.evicts.WithLabelValues(reason).Inc()
}
func (a *Adapter) PolicyDrain(batch int) { a.drainBatch.Observe(float64(batch)) }

// Compile-time check: ensure Adapter implements metrics.Recorder.
var _ metrics.Recorder = (*Adapter)(nil)
