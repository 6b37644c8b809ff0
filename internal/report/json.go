package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/v0xg/webscenario/internal/runner"
)

type jsonReport struct {
	RunID      string    `json:"runId"`
	Start      time.Time `json:"start"`
	DurationMs int64     `json:"durationMs"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Errored    int       `json:"errored"`
	Scenarios  []Record  `json:"scenarios"`
}

type jsonReporter struct{}

func (jsonReporter) Report(w io.Writer, s *runner.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(jsonReport{
		RunID:      s.RunID,
		Start:      s.Start.UTC(),
		DurationMs: s.Duration.Milliseconds(),
		Passed:     s.Count(runner.Passed),
		Failed:     s.Count(runner.Failed),
		Errored:    s.Count(runner.Errored),
		Scenarios:  Records(s),
	})
}
