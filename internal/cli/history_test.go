package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/webscenario/internal/runner"
	"github.com/v0xg/webscenario/internal/store"
)

// seedHistory records three runs: "has title" always passes, "join" flips.
func seedHistory(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := store.Open(path)
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	joins := []runner.State{runner.Passed, runner.Failed, runner.Passed}
	for i, state := range joins {
		sum := &runner.Summary{
			RunID: []string{"run-a", "run-b", "run-c"}[i],
			Start: start.Add(time.Duration(i) * time.Hour),
			Results: []runner.Result{
				{Suite: "relax", Name: "has title", State: runner.Passed, Attempts: 1},
				{Suite: "relax", Name: "join", State: state, Attempts: 1},
			},
		}
		require.NoError(t, db.SaveRun(context.Background(), sum))
	}
	return path
}

func TestHistoryText(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.execute("history", seedHistory(t)))

	out := h.stdout.String()
	assert.Contains(t, out, "✓ relax › has title  ✓✓✓\n")
	assert.Contains(t, out, "~ relax › join  ✓✗✓  flaky\n")
	assert.Contains(t, out, "2 scenarios, 1 flaky")
}

func TestHistoryFlakyOnly(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.execute("history", "--flaky", seedHistory(t)))

	out := h.stdout.String()
	assert.NotContains(t, out, "has title")
	assert.Contains(t, out, "relax › join")
}

func TestHistoryWindow(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.execute("history", "--window", "1", seedHistory(t)))
	assert.Contains(t, h.stdout.String(), "✓ relax › join  ✓\n")
	assert.Contains(t, h.stdout.String(), "0 flaky")
}

func TestHistoryJSON(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.execute("history", "--format", "json", seedHistory(t)))

	var entries []historyEntry
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "join", entries[1].Scenario)
	assert.Equal(t, []string{"passed", "failed", "passed"}, entries[1].Outcomes)
	assert.Equal(t, 2, entries[1].Passed)
	assert.Equal(t, 1, entries[1].Failed)
	assert.True(t, entries[1].Flaky)
	assert.False(t, entries[0].Flaky)
}

func TestHistoryErrors(t *testing.T) {
	h := newHarness()
	err := h.execute("history", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "history database not found")

	h = newHarness()
	err = h.execute("history", "--format", "yaml", seedHistory(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}
