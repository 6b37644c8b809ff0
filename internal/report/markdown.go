package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/v0xg/webscenario/internal/runner"
)

type markdownReporter struct{}

func (markdownReporter) Report(w io.Writer, s *runner.Summary) error {
	_, err := w.Write(renderMarkdown(s))
	return err
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ")

func renderMarkdown(s *runner.Summary) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# webscenario report\n\n")
	fmt.Fprintf(&b, "Run `%s`: %s\n\n", s.RunID, totals(s))

	b.WriteString("| | Suite | Scenario | State | Attempts | Duration |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, r := range s.Results {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %s |\n",
			symbol(r.State),
			cellEscaper.Replace(r.Suite),
			cellEscaper.Replace(r.Name),
			r.State,
			r.Attempts,
			formatDuration(r.Duration))
	}

	var failures []runner.Result
	for _, r := range s.Results {
		if r.State != runner.Passed {
			failures = append(failures, r)
		}
	}
	if len(failures) == 0 {
		return b.Bytes()
	}

	b.WriteString("\n## Failures\n")
	for _, r := range failures {
		fmt.Fprintf(&b, "\n### %s › %s\n\n", r.Suite, r.Name)
		state := string(r.State)
		if r.FailureKind != "" {
			state += fmt.Sprintf(" (%s)", r.FailureKind)
		}
		fmt.Fprintf(&b, "- **State:** %s\n", state)
		if r.FailedStep != "" {
			fmt.Fprintf(&b, "- **Step:** %s\n", codeSpan(r.FailedStep))
		}
		if r.Recording != "" {
			fmt.Fprintf(&b, "- **Recording:** [%s](%s)\n", r.Recording, r.Recording)
		}
		if r.FailureDetail != "" {
			fmt.Fprintf(&b, "\n%s", codeBlock(strings.TrimRight(r.FailureDetail, "\n")))
		}
		if len(r.Screenshot) > 0 {
			if uri, err := Thumbnail(r.Screenshot); err == nil {
				fmt.Fprintf(&b, "\n![screenshot of %s](%s)\n", r.Name, uri)
			}
		}
	}
	return b.Bytes()
}

// longestRun returns the length of the longest run of c in s.
func longestRun(s string, c byte) int {
	longest, n := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] != c {
			n = 0
			continue
		}
		n++
		longest = max(longest, n)
	}
	return longest
}

// codeSpan delimits s with more backticks than any run inside it.
func codeSpan(s string) string {
	ticks := strings.Repeat("`", longestRun(s, '`')+1)
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		s = " " + s + " "
	}
	return ticks + s + ticks
}

// codeBlock fences s with at least three backticks and more than any run
// inside it.
func codeBlock(s string) string {
	fence := strings.Repeat("`", max(3, longestRun(s, '`')+1))
	return fence + "\n" + s + "\n" + fence + "\n"
}
