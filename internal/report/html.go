package report

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/v0xg/webscenario/internal/runner"
)

const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 72rem; margin: 2rem auto; padding: 0 1rem; color: #1f2328; }
table { border-collapse: collapse; width: 100%%; }
th, td { border: 1px solid #d0d7de; padding: .4rem .6rem; text-align: left; }
pre { background: #f6f8fa; padding: .8rem; overflow-x: auto; }
img { border: 1px solid #d0d7de; }
</style>
</head>
<body>
`

const htmlTail = `</body>
</html>
`

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

type htmlReporter struct{}

func (htmlReporter) Report(w io.Writer, s *runner.Summary) error {
	var body bytes.Buffer
	if err := markdown.Convert(renderMarkdown(s), &body); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	title := html.EscapeString("webscenario report " + s.RunID)
	if _, err := fmt.Fprintf(w, htmlHead, title); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	_, err := io.WriteString(w, htmlTail)
	return err
}
