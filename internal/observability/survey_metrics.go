package observability

// SurveyMetrics bundles the instruments the survey pipeline and store
// emit. All methods are nil-safe so callers can run without metrics.
type SurveyMetrics struct {
	reg *Registry

	RunsTotal   *Counter
	RunsFailed  *Counter
	VerdictPass *Counter
	VerdictFail *Counter
}

// NewSurveyMetrics registers the survey instruments on the registry.
func NewSurveyMetrics(reg *Registry) *SurveyMetrics {
	return &SurveyMetrics{
		reg:         reg,
		RunsTotal:   reg.NewCounter("sitewise_surveys_total", "Survey pipeline runs started.", nil),
		RunsFailed:  reg.NewCounter("sitewise_surveys_failed_total", "Survey pipeline runs that ended in a stage error.", nil),
		VerdictPass: reg.NewCounter("sitewise_verdicts_total", "Completed survey verdicts by status.", map[string]string{"status": "pass"}),
		VerdictFail: reg.NewCounter("sitewise_verdicts_total", "Completed survey verdicts by status.", map[string]string{"status": "fail"}),
	}
}

// StageDuration returns the latency histogram for a pipeline stage.
func (m *SurveyMetrics) StageDuration(stage string) *Histogram {
	if m == nil {
		return nil
	}
	return m.reg.NewHistogram(
		"sitewise_stage_duration_seconds",
		"Pipeline stage duration in seconds.",
		map[string]string{"stage": stage},
		nil,
	)
}

// CountRun records a started run. Nil-safe.
func (m *SurveyMetrics) CountRun() {
	if m != nil {
		m.RunsTotal.Inc()
	}
}

// CountFailure records a run that ended in a stage error. Nil-safe.
func (m *SurveyMetrics) CountFailure() {
	if m != nil {
		m.RunsFailed.Inc()
	}
}

// CountVerdict records the final status of a completed run. Nil-safe.
func (m *SurveyMetrics) CountVerdict(pass bool) {
	if m == nil {
		return
	}
	if pass {
		m.VerdictPass.Inc()
	} else {
		m.VerdictFail.Inc()
	}
}

// Observe records a histogram value when the histogram is non-nil.
func (h *Histogram) ObserveIfSet(v float64) {
	if h != nil {
		h.Observe(v)
	}
}
