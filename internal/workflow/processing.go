package workflow

import (
	"encoding/json"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-callback/internal/processing"
	"github.com/ahrav/go-callback/internal/suspend"
)

// Step labels of the processing workflow.
const (
	StepProcessInput    = "processInputData"
	StepWaitForCallback = "wait-for-external-callback"
	StepAggregate       = "aggregateResults"
)

// DefaultCallbackTimeout bounds the wait for the external callback.
const DefaultCallbackTimeout = 60 * time.Minute

// ProcessingRequest starts a ProcessingWorkflow.
type ProcessingRequest struct {
	InputData       processing.Input `json:"inputData"`
	StartTime       time.Time        `json:"startTime,omitempty"`
	CallbackTimeout time.Duration    `json:"callbackTimeout,omitempty"`
	PublishTimeout  time.Duration    `json:"publishTimeout,omitempty"`
	CallbackData    json.RawMessage  `json:"callbackData,omitempty"`
}

// OperationCount tallies the durable operations a run performed.
type OperationCount struct {
	Steps    int `json:"steps"`
	Parallel int `json:"parallel"`
	Map      int `json:"map"`
	Wait     int `json:"wait"`
}

// ProcessingResult is the output of a completed ProcessingWorkflow.
type ProcessingResult struct {
	WorkflowID      string                     `json:"workflowId"`
	RunID           string                     `json:"runId"`
	ProcessedItems  []processing.ProcessedItem `json:"processedItems"`
	ParallelResults []processing.StreamResult  `json:"parallelResults"`
	CallbackResult  *suspend.Result            `json:"callbackResult"`
	Summary         processing.Summary         `json:"summary"`

	TotalDuration       time.Duration `json:"totalDuration"`
	TotalProcessingTime time.Duration `json:"totalProcessingTime"`
	AvgProcessingTime   time.Duration `json:"avgProcessingTime"`

	CheckpointCount int            `json:"checkpointCount"`
	OperationCount  OperationCount `json:"operationCount"`

	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// ProcessingWorkflow turns input items into work items, waits for an
// external decision through a callback token, runs three work streams in
// parallel, processes every item, and aggregates the results.
//
// A callback failure fails the workflow with the delivered message. A
// callback timeout does not: the run proceeds with the timeout fallback
// recorded in CallbackResult.
func ProcessingWorkflow(ctx workflow.Context, req ProcessingRequest) (*ProcessingResult, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "processing.v", workflow.DefaultVersion, currentVersion)

	logger := workflow.GetLogger(ctx)
	info := workflow.GetInfo(ctx)

	startTime := req.StartTime
	if startTime.IsZero() {
		startTime = workflow.Now(ctx)
	}
	timeout := req.CallbackTimeout
	if timeout <= 0 {
		timeout = DefaultCallbackTimeout
	}

	// Handlers must exist before the first blocking call so early resumes
	// are not dropped.
	suspender, err := suspend.New(ctx, suspend.WithPublishTimeout(req.PublishTimeout))
	if err != nil {
		return nil, err
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})

	var a *processing.Activities

	var items []processing.WorkItem
	if err := workflow.ExecuteActivity(ctx, a.ProcessInputData, req.InputData).Get(ctx, &items); err != nil {
		return nil, err
	}
	logger.Info("Step completed", "step", StepProcessInput, "work_items", len(items))

	var callbackData any = map[string]any{"itemCount": len(items)}
	if len(req.CallbackData) > 0 {
		callbackData = req.CallbackData
	}
	cbResult, err := suspender.Suspend(ctx, StepWaitForCallback, timeout, callbackData)
	if err != nil {
		return nil, err
	}
	if cbResult.TimedOut {
		logger.Warn("Continuing without callback decision", "callback_id", cbResult.Token)
	}

	streams, err := runStreams(ctx, a, len(items))
	if err != nil {
		return nil, err
	}

	processed, err := processItems(ctx, a, items)
	if err != nil {
		return nil, err
	}

	endTime := workflow.Now(ctx)
	result := &ProcessingResult{
		WorkflowID:      info.WorkflowExecution.ID,
		RunID:           info.WorkflowExecution.RunID,
		ProcessedItems:  processed,
		ParallelResults: streams,
		CallbackResult:  cbResult,
		Summary:         processing.AggregateResults(processed),
		TotalDuration:   endTime.Sub(startTime),
		CheckpointCount: len(processed) + len(streams) + 4,
		OperationCount: OperationCount{
			Steps:    len(processed) + len(streams) + 3,
			Parallel: len(streams),
			Map:      len(processed),
			Wait:     1,
		},
		StartTime: startTime.UTC(),
		EndTime:   endTime.UTC(),
	}
	for _, p := range processed {
		result.TotalProcessingTime += p.ProcessingTime
	}
	if len(processed) > 0 {
		result.AvgProcessingTime = result.TotalProcessingTime / time.Duration(len(processed))
	}

	logger.Info("Processing workflow completed",
		"step", StepAggregate,
		"items", result.Summary.TotalItems,
		"success_rate", result.Summary.SuccessRate,
		"callback_timed_out", cbResult.TimedOut)
	return result, nil
}

// runStreams starts every work stream before waiting on any of them.
func runStreams(ctx workflow.Context, a *processing.Activities, itemCount int) ([]processing.StreamResult, error) {
	futures := make([]workflow.Future, len(processing.Streams))
	for i, s := range processing.Streams {
		futures[i] = workflow.ExecuteActivity(ctx, a.RunWorkStream, processing.StreamRequest{Stream: s, ItemCount: itemCount})
	}

	results := make([]processing.StreamResult, len(futures))
	for i, f := range futures {
		if err := f.Get(ctx, &results[i]); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// processItems maps ProcessWorkItem over items, preserving input order.
func processItems(ctx workflow.Context, a *processing.Activities, items []processing.WorkItem) ([]processing.ProcessedItem, error) {
	futures := make([]workflow.Future, len(items))
	for i, item := range items {
		futures[i] = workflow.ExecuteActivity(ctx, a.ProcessWorkItem, processing.ItemRequest{Item: item, Index: i})
	}

	out := make([]processing.ProcessedItem, len(items))
	for i, f := range futures {
		if err := f.Get(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
