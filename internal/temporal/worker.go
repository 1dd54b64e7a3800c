package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/sitewise-ai/sitewise/internal/survey"
)

// StartWorker creates and starts a Temporal worker serving survey workflows.
func StartWorker(c client.Client, taskQueue string) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflow(SurveyWorkflow)
	w.RegisterActivity(PreprocessActivity)
	w.RegisterActivity(AnalyzeComponentsActivity)
	w.RegisterActivity(RetrieveSimilarActivity)
	w.RegisterActivity(GenerateReportActivity)
	w.RegisterActivity(ValidateChecklistActivity)
	w.RegisterActivity(PersistActivity)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}

// Analyzer submits survey runs as Temporal workflows. It satisfies the same
// contract as the in-process pipeline, so the API server can swap between
// local and durable execution.
type Analyzer struct {
	client    client.Client
	taskQueue string
}

// NewAnalyzer wraps a Temporal client for workflow submission.
func NewAnalyzer(c client.Client, taskQueue string) *Analyzer {
	return &Analyzer{client: c, taskQueue: taskQueue}
}

// Run starts a SurveyWorkflow and blocks until it completes.
func (a *Analyzer) Run(ctx context.Context, images [][]byte, textNotes, surveyID string) (*survey.Result, error) {
	opts := client.StartWorkflowOptions{
		TaskQueue: a.taskQueue,
	}
	if surveyID != "" {
		opts.ID = "survey-" + surveyID
	}

	run, err := a.client.ExecuteWorkflow(ctx, opts, SurveyWorkflow, SurveyInput{
		Images:    images,
		TextNotes: textNotes,
		SurveyID:  surveyID,
	})
	if err != nil {
		return nil, fmt.Errorf("starting survey workflow: %w", err)
	}

	var out SurveyOutput
	if err := run.Get(ctx, &out); err != nil {
		return nil, fmt.Errorf("survey workflow failed: %w", err)
	}
	return &survey.Result{State: out.State, Persisted: out.Persisted}, nil
}
