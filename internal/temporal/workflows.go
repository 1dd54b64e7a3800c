// Package temporal runs survey analyses as durable Temporal workflows. Each
// pipeline stage is one activity, so a crashed worker resumes from the last
// completed stage instead of re-running the whole survey.
package temporal

import (
	"fmt"
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sitewise-ai/sitewise/internal/survey"
)

// SurveyInput holds the workflow parameters.
type SurveyInput struct {
	Images    [][]byte
	TextNotes string
	SurveyID  string
}

// SurveyOutput holds the workflow result.
type SurveyOutput struct {
	State     *survey.State
	Persisted bool
}

// SurveyWorkflow orchestrates the five analysis stages and the final
// persist as sequential activities.
func SurveyWorkflow(ctx workflow.Context, input SurveyInput) (*SurveyOutput, error) {
	if len(input.Images) == 0 {
		return nil, sdktemporal.NewNonRetryableApplicationError("at least one image is required", "no_images", nil)
	}

	surveyID := input.SurveyID
	if surveyID == "" {
		if err := workflow.SideEffect(ctx, func(ctx workflow.Context) any {
			return newSurveyID()
		}).Get(&surveyID); err != nil {
			return nil, fmt.Errorf("generate survey id: %w", err)
		}
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	state := survey.NewState(input.Images, input.TextNotes, surveyID)

	stages := []struct {
		name     string
		activity any
	}{
		{survey.StagePreprocess, PreprocessActivity},
		{survey.StageAnalyzeComponents, AnalyzeComponentsActivity},
		{survey.StageRetrieveSimilar, RetrieveSimilarActivity},
		{survey.StageGenerateReport, GenerateReportActivity},
		{survey.StageValidateChecklist, ValidateChecklistActivity},
	}
	for _, stage := range stages {
		if err := workflow.ExecuteActivity(ctx, stage.activity, state).Get(ctx, &state); err != nil {
			return nil, fmt.Errorf("%s: %w", stage.name, err)
		}
	}

	var persisted bool
	if err := workflow.ExecuteActivity(ctx, PersistActivity, state).Get(ctx, &persisted); err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}

	return &SurveyOutput{State: state, Persisted: persisted}, nil
}
