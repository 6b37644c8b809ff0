// Package report renders run summaries as a terminal list, JSON, Markdown
// or a standalone HTML page.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/v0xg/webscenario/internal/runner"
)

// Formats accepted by New.
const (
	FormatList     = "list"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Reporter writes a summary to w.
type Reporter interface {
	Report(w io.Writer, s *runner.Summary) error
}

// New returns the reporter for format.
func New(format string) (Reporter, error) {
	switch format {
	case "", FormatList:
		return listReporter{}, nil
	case FormatJSON:
		return jsonReporter{}, nil
	case FormatMarkdown, "md":
		return markdownReporter{}, nil
	case FormatHTML:
		return htmlReporter{}, nil
	default:
		return nil, fmt.Errorf("unknown reporter %q (supported: %s)", format, strings.Join(Formats(), ", "))
	}
}

// Formats lists the reporter names.
func Formats() []string {
	f := []string{FormatList, FormatJSON, FormatMarkdown, FormatHTML}
	sort.Strings(f)
	return f
}

// Record is the per-scenario entry shared by the structured formats.
type Record struct {
	Name          string `json:"name"`
	Suite         string `json:"suite"`
	Group         string `json:"group,omitempty"`
	State         string `json:"state"`
	DurationMs    int64  `json:"durationMs"`
	Attempts      int    `json:"attempts"`
	FailureKind   string `json:"failureKind,omitempty"`
	FailureDetail string `json:"failureDetail,omitempty"`
	FailedStep    string `json:"failedStep,omitempty"`
	Recording     string `json:"recording,omitempty"`
}

// Records converts results for serialisation.
func Records(s *runner.Summary) []Record {
	out := make([]Record, len(s.Results))
	for i, r := range s.Results {
		out[i] = Record{
			Name:          r.Name,
			Suite:         r.Suite,
			Group:         r.Group,
			State:         string(r.State),
			DurationMs:    r.DurationMs(),
			Attempts:      r.Attempts,
			FailureKind:   string(r.FailureKind),
			FailureDetail: r.FailureDetail,
			FailedStep:    r.FailedStep,
			Recording:     r.Recording,
		}
	}
	return out
}

func symbol(s runner.State) string {
	switch s {
	case runner.Passed:
		return "✓"
	case runner.Failed:
		return "✗"
	case runner.Errored:
		return "!"
	default:
		return "?"
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func totals(s *runner.Summary) string {
	return fmt.Sprintf("%d scenarios: %d passed, %d failed, %d errored (%s)",
		len(s.Results),
		s.Count(runner.Passed),
		s.Count(runner.Failed),
		s.Count(runner.Errored),
		formatDuration(s.Duration))
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
