package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/v0xg/webscenario/internal/runner"
	"github.com/v0xg/webscenario/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Window int
	Flaky  bool
	Format string
}

// historyEntry is the JSON shape of one scenario's history.
type historyEntry struct {
	Suite    string   `json:"suite"`
	Scenario string   `json:"scenario"`
	Outcomes []string `json:"outcomes"`
	Passed   int      `json:"passed"`
	Failed   int      `json:"failed"`
	Errored  int      `json:"errored"`
	Flaky    bool     `json:"flaky"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <db>",
		Short: "Show per-scenario outcomes across recorded runs",
		Long: `Show each scenario's recent outcomes from a history database written by
"webscenario run --history", oldest first, and flag flaky scenarios: those
that both passed and did not pass in the window, or needed a retry to pass.

Examples:
  webscenario history runs.db
  webscenario history runs.db --window 20 --flaky
  webscenario history runs.db --format json`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Window, "window", 10, "number of most recent runs per scenario (0 for all)")
	cmd.Flags().BoolVar(&opts.Flaky, "flaky", false, "only show flaky scenarios")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	return cmd
}

func showHistory(cmd *cobra.Command, opts *HistoryOptions, path string) error {
	if opts.Format != "text" && opts.Format != "json" {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of [text json]", opts.Format))
	}
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "history database not found", err)
	}
	db, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history", err)
	}
	defer db.Close()

	var history []store.ScenarioHistory
	if opts.Flaky {
		history, err = db.Flakes(cmd.Context(), opts.Window)
	} else {
		history, err = db.History(cmd.Context(), opts.Window)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeHistoryJSON(out, history)
	}
	return writeHistoryText(out, history)
}

func writeHistoryJSON(w io.Writer, history []store.ScenarioHistory) error {
	entries := make([]historyEntry, 0, len(history))
	for _, h := range history {
		e := historyEntry{
			Suite:    h.Suite,
			Scenario: h.Scenario,
			Passed:   h.Count(runner.Passed),
			Failed:   h.Count(runner.Failed),
			Errored:  h.Count(runner.Errored),
			Flaky:    h.Flaky(),
		}
		for i := len(h.Outcomes) - 1; i >= 0; i-- {
			e.Outcomes = append(e.Outcomes, string(h.Outcomes[i].State))
		}
		entries = append(entries, e)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func writeHistoryText(w io.Writer, history []store.ScenarioHistory) error {
	if len(history) == 0 {
		_, err := fmt.Fprintln(w, "No recorded scenarios.")
		return err
	}
	flaky := 0
	for _, h := range history {
		var trail strings.Builder
		for i := len(h.Outcomes) - 1; i >= 0; i-- {
			trail.WriteString(stateSymbol(h.Outcomes[i].State))
		}
		marker := stateSymbol(h.Last().State)
		suffix := ""
		if h.Flaky() {
			marker = "~"
			suffix = "  flaky"
			flaky++
		}
		fmt.Fprintf(w, "%s %s › %s  %s%s\n", marker, h.Suite, h.Scenario, trail.String(), suffix)
	}
	_, err := fmt.Fprintf(w, "\n%d scenarios, %d flaky\n", len(history), flaky)
	return err
}
