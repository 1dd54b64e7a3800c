package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounter(t *testing.T) {
	reg := NewRegistry()
	c := reg.NewCounter("test_total", "help", nil)

	c.Inc()
	c.Add(2)
	if c.Value() != 3 {
		t.Errorf("value = %v, want 3", c.Value())
	}
}

func TestRegistry_SameNameSameLabelsReused(t *testing.T) {
	reg := NewRegistry()
	a := reg.NewCounter("dup_total", "help", map[string]string{"x": "1"})
	b := reg.NewCounter("dup_total", "help", map[string]string{"x": "1"})
	if a != b {
		t.Error("expected the same counter instance")
	}

	c := reg.NewCounter("dup_total", "help", map[string]string{"x": "2"})
	if a == c {
		t.Error("different labels must register distinct counters")
	}
}

func TestGauge(t *testing.T) {
	reg := NewRegistry()
	g := reg.NewGauge("test_gauge", "help", nil)
	g.Set(42.5)
	if g.Value() != 42.5 {
		t.Errorf("value = %v, want 42.5", g.Value())
	}
}

func TestHistogram_Buckets(t *testing.T) {
	reg := NewRegistry()
	h := reg.NewHistogram("dur_seconds", "help", nil, []float64{1, 5, 10})

	h.Observe(0.5)
	h.Observe(3)
	h.Observe(100)

	if h.Count() != 3 {
		t.Errorf("count = %d, want 3", h.Count())
	}
}

func TestHistogram_CumulativeBucketRendering(t *testing.T) {
	reg := NewRegistry()
	h := reg.NewHistogram("stage_seconds", "help", nil, []float64{0.01, 0.05, 0.1})
	h.Observe(0.005)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	// A single observation under the lowest bound counts once in every
	// bucket at or above it, never more.
	for _, want := range []string{
		`stage_seconds_bucket{le="0.01"} 1`,
		`stage_seconds_bucket{le="0.05"} 1`,
		`stage_seconds_bucket{le="0.1"} 1`,
		`stage_seconds_bucket{le="+Inf"} 1`,
		"stage_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q\n%s", want, body)
		}
	}
}

func TestHandler_PrometheusFormat(t *testing.T) {
	reg := NewRegistry()
	reg.NewCounter("jobs_total", "Jobs processed.", map[string]string{"kind": "survey"}).Add(7)
	h := reg.NewHistogram("latency_seconds", "Latency.", nil, []float64{1, 10})
	h.Observe(0.2)
	h.Observe(5)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"# TYPE jobs_total counter",
		`jobs_total{kind="survey"} 7`,
		"# TYPE latency_seconds histogram",
		`latency_seconds_bucket{le="1"} 1`,
		`latency_seconds_bucket{le="10"} 2`,
		`latency_seconds_bucket{le="+Inf"} 2`,
		"latency_seconds_count 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q\n%s", want, body)
		}
	}
}

func TestSurveyMetrics_NilSafe(t *testing.T) {
	var m *SurveyMetrics
	m.CountRun()
	m.CountFailure()
	m.CountVerdict(true)
	if m.StageDuration("preprocess") != nil {
		t.Error("nil metrics should yield nil histograms")
	}
}

func TestSurveyMetrics_Counts(t *testing.T) {
	reg := NewRegistry()
	m := NewSurveyMetrics(reg)

	m.CountRun()
	m.CountRun()
	m.CountVerdict(true)
	m.CountVerdict(false)
	m.CountFailure()

	if m.RunsTotal.Value() != 2 {
		t.Errorf("runs = %v", m.RunsTotal.Value())
	}
	if m.VerdictPass.Value() != 1 || m.VerdictFail.Value() != 1 {
		t.Errorf("verdicts = %v/%v", m.VerdictPass.Value(), m.VerdictFail.Value())
	}
	if m.RunsFailed.Value() != 1 {
		t.Errorf("failed = %v", m.RunsFailed.Value())
	}
}
