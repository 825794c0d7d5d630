// Package processing holds the work-item logic and activities of the durable
// processing workflow: input fan-out into work items, per-item processing,
// parallel work streams, and the final summary.
package processing

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Work item statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Priority bounds. Priorities are assigned round-robin by input index.
const (
	MinPriority = 1
	MaxPriority = 3
)

// ProcessingTimePerPriority is the simulated cost of one priority level.
const ProcessingTimePerPriority = 50 * time.Millisecond

var (
	// ErrInvalidInput is returned when the workflow input has no items.
	ErrInvalidInput = errors.New("invalid input data: items array is required")

	// ErrInvalidWorkItem is returned by ValidateWorkItem.
	ErrInvalidWorkItem = errors.New("invalid work item")
)

var validStatuses = []string{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Input is the payload the processing workflow starts with.
type Input struct {
	Items []json.RawMessage `json:"items"`
}

// WorkItem is one unit of work derived from an input item.
type WorkItem struct {
	ID       string          `json:"id"       validate:"required"`
	Data     json.RawMessage `json:"data"     validate:"required"`
	Priority int             `json:"priority" validate:"min=1,max=3"`
	Status   string          `json:"status"   validate:"required"`
}

// ProcessedItem is a work item after the map step.
type ProcessedItem struct {
	WorkItem
	Processed       bool          `json:"processed"`
	ProcessedAt     time.Time     `json:"processedAt"`
	ProcessingTime  time.Duration `json:"processingTime"`
	Index           int           `json:"index"`
	TransformedData string        `json:"transformedData"`
	CheckpointID    string        `json:"checkpointId"`
}

// Summary aggregates processed items.
type Summary struct {
	TotalItems     int     `json:"totalItems"`
	CompletedItems int     `json:"completedItems"`
	FailedItems    int     `json:"failedItems"`
	SuccessRate    float64 `json:"successRate"`
	Summary        string  `json:"summary"`
}

// ProcessData turns input items into pending work items with priorities
// 1..3 assigned by index.
func ProcessData(in Input) ([]WorkItem, error) {
	if in.Items == nil {
		return nil, ErrInvalidInput
	}

	items := make([]WorkItem, len(in.Items))
	for i, data := range in.Items {
		items[i] = WorkItem{
			ID:       fmt.Sprintf("work-item-%d", i+1),
			Data:     data,
			Priority: i%MaxPriority + MinPriority,
			Status:   StatusPending,
		}
	}
	return items, nil
}

// ValidateWorkItem checks required fields, the priority range, and the status.
func ValidateWorkItem(item WorkItem) error {
	if err := validate.Struct(item); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWorkItem, err)
	}
	if !slices.Contains(validStatuses, item.Status) {
		return fmt.Errorf("%w: status must be one of: %s", ErrInvalidWorkItem, strings.Join(validStatuses, ", "))
	}
	return nil
}

// ProcessItem transforms item at position index into its completed form.
func ProcessItem(item WorkItem, index int, now time.Time) ProcessedItem {
	done := item
	done.Status = StatusCompleted
	return ProcessedItem{
		WorkItem:        done,
		Processed:       true,
		ProcessedAt:     now.UTC(),
		ProcessingTime:  time.Duration(item.Priority) * ProcessingTimePerPriority,
		Index:           index,
		TransformedData: "processed-" + dataText(item.Data),
		CheckpointID:    fmt.Sprintf("checkpoint-%s-%d", item.ID, index),
	}
}

// AggregateResults summarizes processed items.
func AggregateResults(results []ProcessedItem) Summary {
	s := Summary{TotalItems: len(results)}
	for _, r := range results {
		if r.Processed {
			s.CompletedItems++
		} else {
			s.FailedItems++
		}
	}
	if s.TotalItems > 0 {
		s.SuccessRate = float64(s.CompletedItems) / float64(s.TotalItems)
	}
	if s.FailedItems == 0 {
		s.Summary = "All items processed successfully"
	} else {
		s.Summary = fmt.Sprintf("%d items completed, %d failed", s.CompletedItems, s.FailedItems)
	}
	return s
}

// dataText renders JSON strings without quotes and anything else verbatim.
func dataText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
