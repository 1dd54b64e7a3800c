// Package survey implements the analysis pipeline that turns a batch of
// equipment photographs plus free-text notes into a scored pass/fail report,
// grounded on comparable historical surveys.
package survey

import (
	"github.com/sitewise-ai/sitewise/internal/store"
)

// ComponentAnalysis is the per-image analysis produced by the
// analyze_components stage. Immutable once created.
type ComponentAnalysis struct {
	ImageIndex     int       `json:"image_index"`
	Analysis       string    `json:"analysis"`
	ImageEmbedding []float32 `json:"image_embedding"`
}

// SimilarSurveys holds the precedents retrieved for comparison context.
type SimilarSurveys struct {
	PassingExamples []store.Result `json:"passing_examples"`
	FailingExamples []store.Result `json:"failing_examples"`
}

// State is the single mutable record threaded through the pipeline. Stages
// never write it directly; they return a delta the orchestrator merges.
type State struct {
	Images            [][]byte            `json:"images"`
	TextNotes         string              `json:"text_notes"`
	SurveyID          string              `json:"survey_id"`
	ComponentAnalyses []ComponentAnalysis `json:"component_analyses"`
	SimilarSurveys    SimilarSurveys      `json:"similar_surveys"`
	FinalReport       string              `json:"final_report"`
	OverallStatus     store.Status        `json:"overall_status"`
	ConfidenceScore   float64             `json:"confidence_score"`
}

// NewState builds the initial pipeline state with the fail-safe defaults:
// status fail and neutral confidence until validation writes them.
func NewState(images [][]byte, textNotes, surveyID string) *State {
	return &State{
		Images:          images,
		TextNotes:       textNotes,
		SurveyID:        surveyID,
		OverallStatus:   store.StatusFail,
		ConfidenceScore: 0.5,
	}
}

// delta is a partial state update returned by one stage. The merge rule is
// per field: pointers and non-nil slices overwrite, componentAnalyses is an
// accumulator and always concatenates.
type delta struct {
	images            [][]byte
	componentAnalyses []ComponentAnalysis
	similarSurveys    *SimilarSurveys
	finalReport       *string
	overallStatus     *store.Status
	confidenceScore   *float64
}

// apply merges a stage delta into the state.
func (s *State) apply(d delta) {
	if d.images != nil {
		s.Images = d.images
	}
	s.ComponentAnalyses = append(s.ComponentAnalyses, d.componentAnalyses...)
	if d.similarSurveys != nil {
		s.SimilarSurveys = *d.similarSurveys
	}
	if d.finalReport != nil {
		s.FinalReport = *d.finalReport
	}
	if d.overallStatus != nil {
		s.OverallStatus = *d.overallStatus
	}
	if d.confidenceScore != nil {
		s.ConfidenceScore = *d.confidenceScore
	}
}

// Result is the outcome of a completed pipeline run.
type Result struct {
	State     *State `json:"state"`
	Persisted bool   `json:"persisted"`
}
