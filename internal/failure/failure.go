// Package failure defines the harness error taxonomy. Every error that ends a
// scenario is one of these four kinds (or unclassified), and the runner maps
// the kind to a terminal state.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorises a scenario-ending error.
type Kind string

const (
	KindInfrastructure Kind = "infrastructure"
	KindLocator        Kind = "locator"
	KindActionTimeout  Kind = "action_timeout"
	KindAssertion      Kind = "assertion"
	KindUnknown        Kind = "unknown"
)

// InfrastructureError reports a browser or session fault: launch failure,
// context creation failure, a crashed page. It is never retried.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("infrastructure error during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("infrastructure error during %s", e.Op)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// LocatorError reports a selector that did not resolve to exactly one element
// before its timeout. Count is the number of matches seen on the last poll.
// Nth is set when the selector picked a match by index.
type LocatorError struct {
	Selector string
	Count    int
	Nth      *int
	Err      error
}

func (e *LocatorError) Error() string {
	var reason string
	switch {
	case e.Count == 0:
		reason = "no element matched"
	case e.Nth != nil:
		reason = fmt.Sprintf("nth=%d out of range, %d elements matched", *e.Nth, e.Count)
	default:
		reason = fmt.Sprintf("%d elements matched, expected exactly one", e.Count)
	}
	msg := fmt.Sprintf("locator %s: %s", e.Selector, reason)
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *LocatorError) Unwrap() error { return e.Err }

// ActionTimeoutError reports an element that never became actionable.
type ActionTimeoutError struct {
	Action    string
	Selector  string
	LastState string
	Err       error
}

func (e *ActionTimeoutError) Error() string {
	msg := fmt.Sprintf("%s %s: element never became actionable (last state: %s)", e.Action, e.Selector, e.LastState)
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *ActionTimeoutError) Unwrap() error { return e.Err }

// AssertionError reports an expected-vs-actual mismatch after polling, or an
// observation that was undefined.
type AssertionError struct {
	Predicate string
	Expected  string
	Actual    string
	Undefined bool
	Err       error
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Predicate)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	if e.Undefined {
		fmt.Fprintf(&buf, "  actual: <undefined>")
	} else {
		fmt.Fprintf(&buf, "  actual: %q", e.Actual)
	}
	return buf.String()
}

func (e *AssertionError) Unwrap() error { return e.Err }

// KindOf classifies err by the first taxonomy error found in its chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var (
		infra   *InfrastructureError
		loc     *LocatorError
		action  *ActionTimeoutError
		assertE *AssertionError
	)
	switch {
	case errors.As(err, &infra):
		return KindInfrastructure
	case errors.As(err, &loc):
		return KindLocator
	case errors.As(err, &action):
		return KindActionTimeout
	case errors.As(err, &assertE):
		return KindAssertion
	default:
		return KindUnknown
	}
}

// IsMismatch reports whether err is a test outcome (the application did not
// behave as expected) rather than a harness or environment fault.
func IsMismatch(err error) bool {
	switch KindOf(err) {
	case KindLocator, KindActionTimeout, KindAssertion:
		return true
	default:
		return false
	}
}
