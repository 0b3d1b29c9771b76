package stats

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder interface {
	RegisterCounter(name, help string)
	RegisterGauge(name, help string)
	Incr(name string)
	Decr(name string)
}

// PromRecorder registers relay metrics with a dedicated prometheus registry
// and serves them on /metrics.
type PromRecorder struct {
	registry *prometheus.Registry
	mu       sync.Mutex
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

func NewPromRecorder(mux *http.ServeMux) *PromRecorder {
	r := &PromRecorder{
		registry: prometheus.NewRegistry(),
		counters: make(map[string]prometheus.Counter),
		gauges:   make(map[string]prometheus.Gauge),
	}

	mux.Handle("GET /metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	return r
}

func (r *PromRecorder) RegisterCounter(name, help string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.counters[name]; ok {
		return
	}

	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chatrelay",
		Name:      name,
		Help:      help,
	})
	r.registry.MustRegister(c)
	r.counters[name] = c
}

func (r *PromRecorder) RegisterGauge(name, help string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.gauges[name]; ok {
		return
	}

	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatrelay",
		Name:      name,
		Help:      help,
	})
	r.registry.MustRegister(g)
	r.gauges[name] = g
}

func (r *PromRecorder) Incr(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.counters[name]; ok {
		c.Inc()
		return
	}
	if g, ok := r.gauges[name]; ok {
		g.Inc()
	}
}

func (r *PromRecorder) Decr(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.gauges[name]; ok {
		g.Dec()
	}
}
