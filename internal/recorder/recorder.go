// Package recorder turns per-step screenshots of one scenario attempt into an
// animated GIF with the pointer drawn at each click.
package recorder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/v0xg/webscenario/internal/browser"
	"github.com/v0xg/webscenario/internal/gifgen"
	"github.com/v0xg/webscenario/internal/overlay"
)

// Frame timing.
const (
	GlideFrames = 4
	glideDelay  = 60 * time.Millisecond
	clickDelay  = 300 * time.Millisecond
	stepDelay   = time.Second
	finalDelay  = 2 * time.Second
)

// Options configures recordings.
type Options struct {
	Dir      string
	MaxWidth uint
}

// Recorder collects the frames of one attempt.
type Recorder struct {
	path     string
	maxWidth uint

	mu     sync.Mutex
	frames []gifgen.Frame
	last   image.Image
	cursor *overlay.Cursor
}

// New returns a recorder writing to <dir>/<suite>/<scenario>-attempt<N>.gif.
func New(opts Options, suite, scenario string, attempt int) *Recorder {
	name := fmt.Sprintf("%s-attempt%d.gif", slug(scenario), attempt)
	return &Recorder{
		path:     filepath.Join(opts.Dir, slug(suite), name),
		maxWidth: opts.MaxWidth,
	}
}

// Capture screenshots page after step. When the step acted on an element,
// the pointer glides to point over the previous frame and clicks there
// before the new frame is shown.
func (r *Recorder) Capture(ctx context.Context, page browser.Page, step string, point *browser.Point) error {
	shot, err := page.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("record %s: %w", step, err)
	}
	img, _, err := image.Decode(bytes.NewReader(shot))
	if err != nil {
		return fmt.Errorf("record %s: decode screenshot: %w", step, err)
	}
	img, scale := gifgen.Fit(img, r.maxWidth)

	r.mu.Lock()
	defer r.mu.Unlock()

	if point != nil {
		target := overlay.Cursor{
			X: int(float64(point.X) * scale),
			Y: int(float64(point.Y) * scale),
		}
		if r.last != nil {
			from := r.start()
			for _, pos := range overlay.Glide(from, target, GlideFrames) {
				r.frames = append(r.frames, gifgen.Frame{Image: overlay.Draw(r.last, pos), Delay: glideDelay})
			}
			click := target
			click.Click = true
			r.frames = append(r.frames, gifgen.Frame{Image: overlay.Draw(r.last, click), Delay: clickDelay})
		}
		r.cursor = &target
	}

	frame := img
	if r.cursor != nil {
		frame = overlay.Draw(img, *r.cursor)
	}
	r.frames = append(r.frames, gifgen.Frame{Image: frame, Delay: stepDelay})
	r.last = img
	return nil
}

// start is where the next glide begins: the last click, or the frame centre.
func (r *Recorder) start() overlay.Cursor {
	if r.cursor != nil {
		return *r.cursor
	}
	b := r.last.Bounds()
	return overlay.Cursor{X: b.Min.X + b.Dx()/2, Y: b.Min.Y + b.Dy()/2}
}

func (r *Recorder) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Finish writes the GIF and returns its path, or "" when nothing was
// captured.
func (r *Recorder) Finish() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.frames) == 0 {
		return "", nil
	}
	r.frames[len(r.frames)-1].Delay = finalDelay
	if _, err := gifgen.WriteFile(r.path, r.frames); err != nil {
		return "", fmt.Errorf("write recording %s: %w", r.path, err)
	}
	r.frames = nil
	r.last = nil
	return r.path, nil
}

// slug makes a name safe for a file path.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, c := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			b.WriteRune(c)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "scenario"
	}
	return out
}
