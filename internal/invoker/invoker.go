// Package invoker is the command surface for resuming suspended steps:
//
//	resume <token> [success|failure] [payloadOrMessage]
package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ahrav/go-callback/internal/domain"
	"github.com/ahrav/go-callback/internal/resume"
)

// Exit codes returned by Run.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// Action names accepted on the command line.
const (
	ActionSuccess = "success"
	ActionFailure = "failure"
)

// ErrUsage reports malformed command-line arguments.
var ErrUsage = errors.New("usage error")

// Request is a parsed resume command.
type Request struct {
	Token   string
	Action  string
	Payload string
}

// Outcome converts the request into the outcome handed to the dispatcher.
func (r Request) Outcome() domain.Outcome {
	if r.Action == ActionFailure {
		return domain.Failure(r.Payload)
	}
	if r.Payload == "" {
		return domain.Success(nil)
	}
	return domain.Success([]byte(r.Payload))
}

// ParseArgs parses `<token> [success|failure] [payloadOrMessage]`. The
// action defaults to success; any other action is rejected.
func ParseArgs(args []string) (Request, error) {
	if len(args) < 1 {
		return Request{}, fmt.Errorf("%w: callback token is required", ErrUsage)
	}
	if len(args) > 3 {
		return Request{}, fmt.Errorf("%w: expected at most 3 arguments, got %d", ErrUsage, len(args))
	}

	req := Request{Token: args[0], Action: ActionSuccess}
	if len(args) > 1 && args[1] != "" {
		req.Action = args[1]
	}
	if req.Action != ActionSuccess && req.Action != ActionFailure {
		return Request{}, fmt.Errorf("%w: unknown action %q (want %s or %s)", ErrUsage, req.Action, ActionSuccess, ActionFailure)
	}
	if len(args) > 2 {
		req.Payload = args[2]
	}
	return req, nil
}

// Resumer delivers an outcome for a token.
type Resumer interface {
	Resume(ctx context.Context, token string, outcome domain.Outcome) (*resume.Delivery, error)
}

// Invoker drives a Resumer from command-line arguments. Progress goes to Out
// and diagnostics to Err.
type Invoker struct {
	resumer  Resumer
	program  string
	out      io.Writer
	err      io.Writer
	jsonMode bool
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithJSONOutput makes Run print a domain.CallbackResponse on stdout instead
// of progress lines.
func WithJSONOutput() Option {
	return func(i *Invoker) { i.jsonMode = true }
}

// New creates an Invoker. program is used in the usage text.
func New(r Resumer, program string, stdout, stderr io.Writer, opts ...Option) *Invoker {
	i := &Invoker{resumer: r, program: program, out: stdout, err: stderr}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run executes one resume command and returns the process exit code.
func (i *Invoker) Run(ctx context.Context, args []string) int {
	req, err := ParseArgs(args)
	if err != nil {
		fmt.Fprintf(i.err, "Error: %v\n\n", err)
		i.Usage()
		return ExitFailure
	}

	if !i.jsonMode {
		fmt.Fprintf(i.out, "Resuming workflow with callback token: %s\n", req.Token)
		fmt.Fprintf(i.out, "Action: %s\n", req.Action)
	}

	delivery, err := i.resumer.Resume(ctx, req.Token, req.Outcome())
	if err != nil {
		i.report(err)
		return ExitFailure
	}
	if req.Payload != "" && delivery.Defaulted {
		fmt.Fprintln(i.err, "Invalid JSON payload, using default success payload")
	}
	if i.jsonMode {
		return i.writeResponse(delivery)
	}

	if delivery.Kind == domain.OutcomeFailure {
		fmt.Fprintln(i.out, "Successfully sent failure to workflow")
		fmt.Fprintf(i.out, "Error message: %s\n", delivery.Message)
		return ExitOK
	}

	fmt.Fprintln(i.out, "Successfully resumed workflow")
	fmt.Fprintf(i.out, "Payload sent:\n%s\n", indent(delivery.Payload))
	return ExitOK
}

func (i *Invoker) report(err error) {
	fmt.Fprintf(i.err, "Failed to resume workflow: %v\n", err)

	var dErr *resume.DispatchError
	if !errors.As(err, &dErr) {
		return
	}
	fmt.Fprintf(i.err, "Hint: %s\n", dErr.Hint)
	if dErr.TokenRejected() {
		fmt.Fprintln(i.err, "The token cannot be resumed; request a new callback token.")
	}
}

func (i *Invoker) writeResponse(d *resume.Delivery) int {
	var resp domain.CallbackResponse
	if d.Kind == domain.OutcomeFailure {
		resp = domain.NewCallbackResponse(d.Token, false, nil, d.Message, d.SentAt)
	} else {
		resp = domain.NewCallbackResponse(d.Token, true, d.Payload, "", d.SentAt)
	}

	enc := json.NewEncoder(i.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		fmt.Fprintf(i.err, "Failed to write response: %v\n", err)
		return ExitFailure
	}
	return ExitOK
}

// Usage writes the usage block to the diagnostic stream.
func (i *Invoker) Usage() {
	p := i.program
	fmt.Fprintf(i.err, "Usage: %s <callbackToken> [success|failure] [payload]\n", p)
	fmt.Fprintln(i.err)
	fmt.Fprintln(i.err, "Examples:")
	fmt.Fprintln(i.err, "  # Resume with success and validation data")
	fmt.Fprintf(i.err, "  %s callback-123 success '{\"items\":[{\"id\":1}],\"validated\":true}'\n", p)
	fmt.Fprintln(i.err)
	fmt.Fprintln(i.err, "  # Resume with failure")
	fmt.Fprintf(i.err, "  %s callback-123 failure \"User rejected validation\"\n", p)
	fmt.Fprintln(i.err)
	fmt.Fprintln(i.err, "  # Default success (no payload)")
	fmt.Fprintf(i.err, "  %s callback-123\n", p)
}

func indent(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
