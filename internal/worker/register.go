package worker

import (
	"go.temporal.io/sdk/activity"

	"github.com/ahrav/go-callback/internal/processing"
	"github.com/ahrav/go-callback/internal/publish"
	"github.com/ahrav/go-callback/internal/workflow"
	pkgactivity "github.com/ahrav/go-callback/pkg/activity"
	"github.com/ahrav/go-callback/pkg/events"
)

// Registry is the registration surface shared by sdk workers and the test
// workflow environment.
type Registry interface {
	RegisterWorkflow(w any)
	RegisterActivity(a any)
	RegisterActivityWithOptions(a any, options activity.RegisterOptions)
}

// Dependencies carries the collaborators activities need.
type Dependencies struct {
	Publisher publish.Publisher
	EventSink events.EventSink

	// ProcessingOptions configure the processing activities.
	ProcessingOptions []processing.ActivitiesOption
}

// RegisterAll registers all workflows and activities with r. It must be
// called once during worker startup before the worker starts.
func RegisterAll(r Registry, deps Dependencies) {
	sink := deps.EventSink
	if sink == nil {
		sink = events.NewNoOpEventSink()
	}
	base := pkgactivity.NewBaseActivities(sink)

	publishActivities := publish.NewActivities(base, deps.Publisher)
	processingActivities := processing.NewActivities(base, deps.ProcessingOptions...)

	r.RegisterWorkflow(workflow.ProcessingWorkflow)

	r.RegisterActivityWithOptions(publishActivities.PublishCallbackToken, activity.RegisterOptions{Name: publish.ActivityName})
	r.RegisterActivity(processingActivities.ProcessInputData)
	r.RegisterActivity(processingActivities.RunWorkStream)
	r.RegisterActivity(processingActivities.ProcessWorkItem)
}
