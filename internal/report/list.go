package report

import (
	"fmt"
	"io"

	"github.com/v0xg/webscenario/internal/runner"
)

type listReporter struct{}

func (listReporter) Report(w io.Writer, s *runner.Summary) error {
	for _, r := range s.Results {
		line := fmt.Sprintf("%s %s › %s (%s)", symbol(r.State), r.Suite, r.Name, formatDuration(r.Duration))
		if r.State != runner.Passed {
			line += fmt.Sprintf(" [%s", r.State)
			if r.Attempts > 1 {
				line += fmt.Sprintf(", %d attempts", r.Attempts)
			}
			line += "]"
		} else if r.Attempts > 1 {
			line += fmt.Sprintf(" [passed on attempt %d]", r.Attempts)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if r.FailedStep != "" {
			fmt.Fprintln(w, indent("at "+r.FailedStep, "    "))
		}
		if r.FailureDetail != "" {
			fmt.Fprintln(w, indent(r.FailureDetail, "    "))
		}
		if r.Recording != "" {
			fmt.Fprintln(w, indent("recording: "+r.Recording, "    "))
		}
	}
	_, err := fmt.Fprintf(w, "\n%s\n", totals(s))
	return err
}
