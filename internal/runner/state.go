package runner

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/v0xg/webscenario/internal/failure"
)

// State is a scenario's position in its lifecycle.
type State string

const (
	Pending State = "pending"
	Running State = "running"
	Passed  State = "passed"
	Failed  State = "failed"
	Errored State = "errored"
)

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == Passed || s == Failed || s == Errored
}

// canTransition lists the only legal moves.
func canTransition(from, to State) bool {
	switch from {
	case Pending:
		return to == Running
	case Running:
		return to.Terminal()
	default:
		return false
	}
}

// Classify maps the error that ended an attempt to a terminal state. Test
// mismatches fail; harness and environment faults error.
func Classify(err error) State {
	if err == nil {
		return Passed
	}
	if failure.IsMismatch(err) {
		return Failed
	}
	return Errored
}

// PanicError wraps a panic recovered from a step.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func recovered(v interface{}) error {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

// Result is the record of one scenario after the run.
type Result struct {
	ID       string        `json:"-"`
	Suite    string        `json:"suite"`
	Group    string        `json:"group,omitempty"`
	Name     string        `json:"name"`
	State    State         `json:"state"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"-"`
	Attempts int           `json:"attempts"`

	// Failure details; empty when Passed.
	FailureKind   failure.Kind `json:"failureKind,omitempty"`
	FailureDetail string       `json:"failureDetail,omitempty"`
	FailedStep    string       `json:"failedStep,omitempty"`

	// Screenshot is the PNG captured when the last attempt did not pass.
	Screenshot []byte `json:"-"`
	// Recording is the path of the step GIF, when recording is on.
	Recording string `json:"recording,omitempty"`
}

// DurationMs is the scenario's wall time in milliseconds.
func (r Result) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

func (r *Result) transition(to State) error {
	if !canTransition(r.State, to) {
		return fmt.Errorf("scenario %q: illegal transition %s -> %s", r.Name, r.State, to)
	}
	r.State = to
	return nil
}

// Summary aggregates a run.
type Summary struct {
	RunID    string
	Start    time.Time
	Duration time.Duration
	Results  []Result
}

// Count returns how many results ended in state.
func (s *Summary) Count(state State) int {
	n := 0
	for _, r := range s.Results {
		if r.State == state {
			n++
		}
	}
	return n
}

// OK reports whether every scenario passed.
func (s *Summary) OK() bool {
	return s.Count(Passed) == len(s.Results)
}
