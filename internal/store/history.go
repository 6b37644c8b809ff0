package store

import (
	"context"
	"fmt"

	"github.com/v0xg/webscenario/internal/runner"
)

// Outcome is one stored result of a scenario.
type Outcome struct {
	RunID         string
	State         runner.State
	Attempts      int
	DurationMs    int64
	FailureDetail string
}

// ScenarioHistory is the recent record of one scenario.
type ScenarioHistory struct {
	Suite    string
	Scenario string
	// Outcomes are newest first.
	Outcomes []Outcome
}

// Count returns how many outcomes ended in state.
func (h ScenarioHistory) Count(state runner.State) int {
	n := 0
	for _, o := range h.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}

// Flaky reports whether the scenario both passed and did not pass in the
// window, or needed a retry to pass.
func (h ScenarioHistory) Flaky() bool {
	passed := h.Count(runner.Passed)
	if passed > 0 && passed < len(h.Outcomes) {
		return true
	}
	for _, o := range h.Outcomes {
		if o.State == runner.Passed && o.Attempts > 1 {
			return true
		}
	}
	return false
}

// Last returns the newest outcome.
func (h ScenarioHistory) Last() Outcome {
	if len(h.Outcomes) == 0 {
		return Outcome{}
	}
	return h.Outcomes[0]
}

// History returns every scenario's last window outcomes, ordered by suite and
// scenario name. A window of zero or less keeps all outcomes.
func (s *Store) History(ctx context.Context, window int) ([]ScenarioHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.suite, r.scenario, r.run_id, r.state, r.attempts, r.duration_ms, r.failure_detail
		FROM results r
		JOIN runs ON runs.id = r.run_id
		ORDER BY r.suite ASC, r.scenario ASC, runs.started_at DESC, r.run_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	history := []ScenarioHistory{}
	for rows.Next() {
		var (
			suite, scenario, state string
			o                      Outcome
		)
		if err := rows.Scan(&suite, &scenario, &o.RunID, &state, &o.Attempts, &o.DurationMs, &o.FailureDetail); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		o.State = runner.State(state)

		n := len(history)
		if n == 0 || history[n-1].Suite != suite || history[n-1].Scenario != scenario {
			history = append(history, ScenarioHistory{Suite: suite, Scenario: scenario})
			n++
		}
		h := &history[n-1]
		if window > 0 && len(h.Outcomes) >= window {
			continue
		}
		h.Outcomes = append(h.Outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}

// Flakes returns the scenarios in History that are flaky.
func (s *Store) Flakes(ctx context.Context, window int) ([]ScenarioHistory, error) {
	all, err := s.History(ctx, window)
	if err != nil {
		return nil, err
	}
	flaky := []ScenarioHistory{}
	for _, h := range all {
		if h.Flaky() {
			flaky = append(flaky, h)
		}
	}
	return flaky, nil
}
