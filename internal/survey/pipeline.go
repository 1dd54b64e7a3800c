package survey

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sitewise-ai/sitewise/internal/llm"
	"github.com/sitewise-ai/sitewise/internal/observability"
	"github.com/sitewise-ai/sitewise/internal/store"
	"github.com/sitewise-ai/sitewise/internal/survey/verdict"
)

// Preprocessor cleans up a raw image before analysis.
type Preprocessor interface {
	Preprocess(ctx context.Context, image []byte) ([]byte, error)
}

// Stage names, in execution order.
const (
	StagePreprocess        = "preprocess"
	StageAnalyzeComponents = "analyze_components"
	StageRetrieveSimilar   = "retrieve_similar"
	StageGenerateReport    = "generate_report"
	StageValidateChecklist = "validate_checklist"
	StagePersist           = "persist"
)

// Stages lists the analysis stages in execution order, excluding the final
// persist step.
var Stages = []string{
	StagePreprocess,
	StageAnalyzeComponents,
	StageRetrieveSimilar,
	StageGenerateReport,
	StageValidateChecklist,
}

// How many precedents each retrieval query asks for.
const (
	passingPrecedents = 3
	failingPrecedents = 2
)

// Pipeline orchestrates the five analysis stages and persists the completed
// survey. One Pipeline serves concurrent runs; all per-run state lives in
// the State threaded through the stages.
type Pipeline struct {
	provider llm.Provider
	pre      Preprocessor
	store    store.Store
	log      *slog.Logger
	metrics  *observability.SurveyMetrics
}

// New creates a Pipeline. metrics may be nil.
func New(provider llm.Provider, pre Preprocessor, st store.Store, log *slog.Logger, metrics *observability.SurveyMetrics) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		provider: provider,
		pre:      pre,
		store:    st,
		log:      log,
		metrics:  metrics,
	}
}

// Run executes the full survey analysis. surveyID is generated when empty.
// The stages run in strict sequence; a failure in any stage aborts the run
// with a StageError and nothing is persisted. On success the completed
// record is persisted under surveyID and the final state returned.
func (p *Pipeline) Run(ctx context.Context, images [][]byte, textNotes, surveyID string) (*Result, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if surveyID == "" {
		surveyID = uuid.NewString()
	}

	ctx, span := observability.StartSurveySpan(ctx, surveyID, len(images))
	defer span.End()

	p.metrics.CountRun()
	p.log.Info("starting survey analysis", "survey_id", surveyID, "images", len(images))

	st := NewState(images, textNotes, surveyID)
	for _, stage := range Stages {
		if err := p.RunStage(ctx, stage, st); err != nil {
			p.metrics.CountFailure()
			p.log.Error("survey stage failed", "survey_id", surveyID, "stage", stage, "error", err)
			return nil, err
		}
	}

	observability.RecordVerdict(span, string(st.OverallStatus), st.ConfidenceScore)
	p.metrics.CountVerdict(st.OverallStatus == store.StatusPass)

	persisted, err := p.persist(ctx, st)
	if err != nil {
		p.metrics.CountFailure()
		return nil, err
	}

	p.log.Info("survey analysis complete",
		"survey_id", surveyID,
		"status", st.OverallStatus,
		"confidence", st.ConfidenceScore,
		"persisted", persisted,
	)
	return &Result{State: st, Persisted: persisted}, nil
}

// RunStage executes one named analysis stage and merges its delta into the
// state. Used by Run and by the Temporal activities, which execute stages
// one at a time.
func (p *Pipeline) RunStage(ctx context.Context, stage string, st *State) error {
	fn, err := p.stageFunc(stage)
	if err != nil {
		return err
	}

	ctx, span := observability.StartStageSpan(ctx, stage)
	defer span.End()

	start := time.Now()
	d, err := fn(ctx, st)
	observability.RecordStageResult(span, stage, err, time.Since(start))
	p.metrics.StageDuration(stage).ObserveIfSet(time.Since(start).Seconds())

	if err != nil {
		return stageError(stage, st, err)
	}
	st.apply(d)
	return nil
}

func (p *Pipeline) stageFunc(stage string) (func(context.Context, *State) (delta, error), error) {
	switch stage {
	case StagePreprocess:
		return p.preprocess, nil
	case StageAnalyzeComponents:
		return p.analyzeComponents, nil
	case StageRetrieveSimilar:
		return p.retrieveSimilar, nil
	case StageGenerateReport:
		return p.generateReport, nil
	case StageValidateChecklist:
		return p.validateChecklist, nil
	default:
		return nil, fmt.Errorf("survey: unknown stage %q", stage)
	}
}

// preprocess runs every image through the preprocessing capability and
// replaces the image sequence wholesale.
func (p *Pipeline) preprocess(ctx context.Context, st *State) (delta, error) {
	processed := make([][]byte, len(st.Images))
	for i, img := range st.Images {
		out, err := p.pre.Preprocess(ctx, img)
		if err != nil {
			return delta{}, fmt.Errorf("image %d: %w", i, err)
		}
		processed[i] = out
	}
	return delta{images: processed}, nil
}

// analyzeComponents produces one analysis record per image. A single failed
// image aborts the stage: downstream code indexes analyses by position, so a
// sparse sequence would misalign it.
func (p *Pipeline) analyzeComponents(ctx context.Context, st *State) (delta, error) {
	prompt := componentPrompt(st.TextNotes)

	analyses := make([]ComponentAnalysis, 0, len(st.Images))
	for i, img := range st.Images {
		text, err := p.analyze(ctx, img, prompt)
		if err != nil {
			return delta{}, fmt.Errorf("analyze image %d: %w", i, err)
		}

		embedding, err := p.embed(ctx, img)
		if err != nil {
			return delta{}, fmt.Errorf("embed image %d: %w", i, err)
		}

		analyses = append(analyses, ComponentAnalysis{
			ImageIndex:     i,
			Analysis:       text,
			ImageEmbedding: embedding,
		})
	}
	return delta{componentAnalyses: analyses}, nil
}

// retrieveSimilar queries the store for comparable passing and failing
// precedents using the first image's embedding as the query vector. The
// first image is taken as representative; embeddings are not averaged.
func (p *Pipeline) retrieveSimilar(ctx context.Context, st *State) (delta, error) {
	similar := &SimilarSurveys{
		PassingExamples: []store.Result{},
		FailingExamples: []store.Result{},
	}
	if len(st.ComponentAnalyses) == 0 {
		return delta{similarSurveys: similar}, nil
	}

	query := st.ComponentAnalyses[0].ImageEmbedding

	passing, err := p.store.Query(ctx, query, passingPrecedents, store.StatusPass)
	if err != nil {
		return delta{}, fmt.Errorf("query passing precedents: %w", err)
	}
	failing, err := p.store.Query(ctx, query, failingPrecedents, store.StatusFail)
	if err != nil {
		return delta{}, fmt.Errorf("query failing precedents: %w", err)
	}

	similar.PassingExamples = passing
	similar.FailingExamples = failing
	return delta{similarSurveys: similar}, nil
}

// generateReport folds all analyses and precedent context into a single
// report-synthesis call grounded on the first image.
func (p *Pipeline) generateReport(ctx context.Context, st *State) (delta, error) {
	if len(st.Images) == 0 {
		return delta{}, ErrNoImages
	}

	report, err := p.analyze(ctx, st.Images[0], reportPrompt(st))
	if err != nil {
		return delta{}, fmt.Errorf("synthesize report: %w", err)
	}

	report = llm.CleanOutput(report)
	return delta{finalReport: &report}, nil
}

// validateChecklist asks the model to restate the verdict in a parseable
// form and extracts status and confidence from the answer.
func (p *Pipeline) validateChecklist(ctx context.Context, st *State) (delta, error) {
	if len(st.Images) == 0 {
		return delta{}, ErrNoImages
	}

	answer, err := p.analyze(ctx, st.Images[0], validationPrompt(st.FinalReport))
	if err != nil {
		return delta{}, fmt.Errorf("validate report: %w", err)
	}

	v := verdict.Extract(llm.StripThinkingTags(answer))
	return delta{overallStatus: &v.Status, confidenceScore: &v.Confidence}, nil
}

// persist stores the completed survey. Nothing is persisted when the run was
// cancelled or produced no analyses; the caller still gets the result.
func (p *Pipeline) persist(ctx context.Context, st *State) (bool, error) {
	if len(st.ComponentAnalyses) == 0 {
		return false, nil
	}
	// A cancelled run must never write a partial record.
	if err := ctx.Err(); err != nil {
		return false, stageError(StagePersist, st, err)
	}

	rec := store.Record{
		ID:        st.SurveyID,
		Embedding: st.ComponentAnalyses[0].ImageEmbedding,
		Document:  st.FinalReport,
		Status:    st.OverallStatus,
		Timestamp: time.Now(),
		Metadata: map[string]string{
			"num_images": strconv.Itoa(len(st.Images)),
			"has_notes":  strconv.FormatBool(st.TextNotes != ""),
			"confidence": strconv.FormatFloat(st.ConfidenceScore, 'f', -1, 64),
		},
	}
	if err := p.store.Add(ctx, rec); err != nil {
		return false, stageError(StagePersist, st, err)
	}
	return true, nil
}

// Persist exposes the persist step for the Temporal workflow's final
// activity.
func (p *Pipeline) Persist(ctx context.Context, st *State) (bool, error) {
	return p.persist(ctx, st)
}

func (p *Pipeline) analyze(ctx context.Context, img []byte, prompt string) (string, error) {
	ctx, span := observability.StartInferenceSpan(ctx, p.provider.Name(), "analyze")
	defer span.End()
	return p.provider.Analyze(ctx, img, prompt)
}

func (p *Pipeline) embed(ctx context.Context, img []byte) ([]float32, error) {
	ctx, span := observability.StartInferenceSpan(ctx, p.provider.Name(), "embed")
	defer span.End()
	return p.provider.Embed(ctx, img)
}
