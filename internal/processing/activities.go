package processing

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-callback/pkg/activity"
)

// Error types reported by processing activities.
const (
	ErrTypeInvalidInput    = "InvalidProcessingInput"
	ErrTypeInvalidWorkItem = "InvalidWorkItem"
	ErrTypeUnknownStream   = "UnknownWorkStream"
)

// ItemRequest is the input of the per-item activity.
type ItemRequest struct {
	Item  WorkItem `json:"item"`
	Index int      `json:"index"`
}

// Activities exposes the processing steps as Temporal activities.
type Activities struct {
	activity.BaseActivities
	now       func() time.Time
	simulated bool
}

// ActivitiesOption configures Activities.
type ActivitiesOption func(*Activities)

// WithSimulatedLatency makes streams and items sleep for their nominal
// processing time.
func WithSimulatedLatency() ActivitiesOption {
	return func(a *Activities) { a.simulated = true }
}

// WithClock overrides the activity time source.
func WithClock(now func() time.Time) ActivitiesOption {
	return func(a *Activities) { a.now = now }
}

// NewActivities creates processing activities.
func NewActivities(base activity.BaseActivities, opts ...ActivitiesOption) *Activities {
	a := &Activities{BaseActivities: base, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ProcessInputData generates work items from the workflow input.
func (a *Activities) ProcessInputData(ctx context.Context, in Input) ([]WorkItem, error) {
	items, err := ProcessData(in)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidInput, err)
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Generated work items",
		"workflow_id", wfCtx.WorkflowID,
		"items", len(items))
	return items, nil
}

// RunWorkStream executes one parallel work stream.
func (a *Activities) RunWorkStream(ctx context.Context, req StreamRequest) (StreamResult, error) {
	delay, ok := streamDelays[req.Stream]
	if !ok {
		return StreamResult{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("unknown work stream %d", req.Stream), ErrTypeUnknownStream, nil)
	}
	if err := a.sleep(ctx, delay); err != nil {
		return StreamResult{}, err
	}

	res := RunStream(req.Stream, req.ItemCount, a.now())
	activity.SafeLog(ctx, "Work stream completed", "task", res.Task, "type", res.Type)
	return res, nil
}

// ProcessWorkItem validates and processes a single work item.
func (a *Activities) ProcessWorkItem(ctx context.Context, req ItemRequest) (ProcessedItem, error) {
	if err := ValidateWorkItem(req.Item); err != nil {
		return ProcessedItem{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidWorkItem, err)
	}
	if err := a.sleep(ctx, time.Duration(req.Item.Priority)*ProcessingTimePerPriority); err != nil {
		return ProcessedItem{}, err
	}

	out := ProcessItem(req.Item, req.Index, a.now())
	activity.SafeLog(ctx, "Work item processed",
		"item_id", out.ID,
		"index", out.Index,
		"checkpoint_id", out.CheckpointID)
	return out, nil
}

func (a *Activities) sleep(ctx context.Context, d time.Duration) error {
	if !a.simulated || d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
