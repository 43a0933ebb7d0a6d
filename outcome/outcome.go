// Package outcome defines the planner's write-only action-outcome
// reporting interface and the in-process recorder implementation. On every
// Action node transition the refinement engine emits an Event; the engine
// never consumes outcomes back.
package outcome

import (
	"context"
	"sync"

	"github.com/latticeplan/htn/isotime"
)

// Outcome is the terminal disposition of an executed action.
type Outcome int

const (
	Success Outcome = iota
	Failure
)

// String renders the outcome the way it appears in serialized events.
func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "failure"
}

// Event is one action-execution record, emitted in action-execution order
// (spec.md §4.9, §5).
type Event struct {
	PlanID    string
	Action    string
	Args      []string
	StartTime isotime.Micros
	EndTime   isotime.Micros
	Outcome   Outcome
	Reason    string // populated only when Outcome == Failure
}

// Reporter is the write-only sink the engine emits events to. Report must
// not block the refinement loop indefinitely; implementations that front a
// remote sink should buffer or drop under backpressure rather than stall
// planning.
type Reporter interface {
	Report(ctx context.Context, evt Event)
}

// Recorder is an in-process Reporter that accumulates events in memory, for
// tests and for embedding the planner without an external outcome bus.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Report appends evt to the recorder's in-memory log.
func (r *Recorder) Report(ctx context.Context, evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a copy of every event recorded so far, in emission order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// noopReporter discards every event.
type noopReporter struct{}

func (noopReporter) Report(ctx context.Context, evt Event) {}

// Noop is a Reporter that discards every event, for callers that do not
// need outcome reporting.
var Noop Reporter = noopReporter{}
