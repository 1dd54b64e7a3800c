package observability

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Registry holds all registered metrics and renders them in Prometheus text
// format.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
	histos   map[string]*Histogram
}

// Counter is a monotonically increasing metric.
type Counter struct {
	name   string
	help   string
	labels map[string]string
	mu     sync.Mutex
	value  float64
}

// Gauge is a metric that can go up or down.
type Gauge struct {
	name   string
	help   string
	labels map[string]string
	mu     sync.Mutex
	value  float64
}

// Histogram tracks the distribution of observed values.
type Histogram struct {
	name    string
	help    string
	labels  map[string]string
	buckets []float64
	mu      sync.Mutex
	counts  []uint64
	sum     float64
	count   uint64
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
		histos:   make(map[string]*Histogram),
	}
}

// DefaultBuckets returns histogram buckets suited for stage latencies, which
// run from sub-second store calls to multi-minute inference.
func DefaultBuckets() []float64 {
	return []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}
}

func metricKey(name string, labels map[string]string) string {
	return name + formatLabels(labels)
}

// NewCounter creates and registers a counter, or returns the existing one
// for the same name and labels.
func (r *Registry) NewCounter(name, help string, labels map[string]string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(name, labels)
	if c, ok := r.counters[key]; ok {
		return c
	}
	c := &Counter{name: name, help: help, labels: labels}
	r.counters[key] = c
	return c
}

// NewGauge creates and registers a gauge.
func (r *Registry) NewGauge(name, help string, labels map[string]string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(name, labels)
	if g, ok := r.gauges[key]; ok {
		return g
	}
	g := &Gauge{name: name, help: help, labels: labels}
	r.gauges[key] = g
	return g
}

// NewHistogram creates and registers a histogram with the given buckets
// (DefaultBuckets when nil).
func (r *Registry) NewHistogram(name, help string, labels map[string]string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(name, labels)
	if h, ok := r.histos[key]; ok {
		return h
	}
	if buckets == nil {
		buckets = DefaultBuckets()
	}
	h := &Histogram{
		name:    name,
		help:    help,
		labels:  labels,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
	r.histos[key] = h
	return h
}

// Inc increments a counter by 1.
func (c *Counter) Inc() { c.Add(1) }

// Add adds a value to the counter.
func (c *Counter) Add(v float64) {
	c.mu.Lock()
	c.value += v
	c.mu.Unlock()
}

// Value returns the counter value.
func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set sets the gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Value returns the gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += v
	h.count++
	// counts holds per-bucket frequencies; cumulation happens at render time.
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
			break
		}
	}
}

// ObserveDuration records the elapsed time since start in seconds.
func (h *Histogram) ObserveDuration(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Handler returns an HTTP handler serving Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.write(w)
	})
}

func (r *Registry) write(w http.ResponseWriter) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, key := range sortedKeys(r.counters) {
		c := r.counters[key]
		c.mu.Lock()
		writeHeader(w, c.name, "counter", c.help)
		fmt.Fprintf(w, "%s%s %s\n", c.name, formatLabels(c.labels), formatFloat(c.value))
		c.mu.Unlock()
	}

	for _, key := range sortedKeys(r.gauges) {
		g := r.gauges[key]
		g.mu.Lock()
		writeHeader(w, g.name, "gauge", g.help)
		fmt.Fprintf(w, "%s%s %s\n", g.name, formatLabels(g.labels), formatFloat(g.value))
		g.mu.Unlock()
	}

	for _, key := range sortedKeys(r.histos) {
		h := r.histos[key]
		h.mu.Lock()
		writeHeader(w, h.name, "histogram", h.help)

		var cumulative uint64
		for i, bound := range h.buckets {
			cumulative += h.counts[i]
			labels := withLabel(h.labels, "le", formatFloat(bound))
			fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, formatLabels(labels), cumulative)
		}
		labels := withLabel(h.labels, "le", "+Inf")
		fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, formatLabels(labels), h.count)
		fmt.Fprintf(w, "%s_sum%s %s\n", h.name, formatLabels(h.labels), formatFloat(h.sum))
		fmt.Fprintf(w, "%s_count%s %d\n", h.name, formatLabels(h.labels), h.count)
		h.mu.Unlock()
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeHeader(w http.ResponseWriter, name, metricType, help string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, metricType)
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := sortedKeys(labels)
	out := "{"
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += k + "=" + strconv.Quote(labels[k])
	}
	return out + "}"
}

func withLabel(labels map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[key] = value
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
