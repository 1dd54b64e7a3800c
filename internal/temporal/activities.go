package temporal

import (
	"context"

	"github.com/google/uuid"

	"github.com/sitewise-ai/sitewise/internal/survey"
)

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Pipeline *survey.Pipeline
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

func newSurveyID() string {
	return uuid.NewString()
}

func runStage(ctx context.Context, stage string, st *survey.State) (*survey.State, error) {
	if err := deps.Pipeline.RunStage(ctx, stage, st); err != nil {
		return nil, err
	}
	return st, nil
}

func PreprocessActivity(ctx context.Context, st *survey.State) (*survey.State, error) {
	return runStage(ctx, survey.StagePreprocess, st)
}

func AnalyzeComponentsActivity(ctx context.Context, st *survey.State) (*survey.State, error) {
	return runStage(ctx, survey.StageAnalyzeComponents, st)
}

func RetrieveSimilarActivity(ctx context.Context, st *survey.State) (*survey.State, error) {
	return runStage(ctx, survey.StageRetrieveSimilar, st)
}

func GenerateReportActivity(ctx context.Context, st *survey.State) (*survey.State, error) {
	return runStage(ctx, survey.StageGenerateReport, st)
}

func ValidateChecklistActivity(ctx context.Context, st *survey.State) (*survey.State, error) {
	return runStage(ctx, survey.StageValidateChecklist, st)
}

func PersistActivity(ctx context.Context, st *survey.State) (bool, error) {
	return deps.Pipeline.Persist(ctx, st)
}
