// Package browsertest provides in-memory fakes of the browser interfaces.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/v0xg/webscenario/internal/browser"
)

// ErrClosed is returned by fakes used after Close.
var ErrClosed = errors.New("browsertest: closed")

// FakeDriver hands out FakePages and records how many are open.
type FakeDriver struct {
	// NewPageErr, when set, fails every NewPage call.
	NewPageErr error
	// Setup, when set, prepares each new page before it is returned.
	Setup func(p *FakePage)
	// BindPages ties each page to the context it was opened with. Once that
	// context is done the page can no longer be closed.
	BindPages bool

	mu     sync.Mutex
	pages  []*FakePage
	closed bool
}

func (d *FakeDriver) Name() string { return "fake" }

func (d *FakeDriver) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if d.NewPageErr != nil {
		return nil, d.NewPageErr
	}
	p := NewPage()
	if d.BindPages {
		p.bound = ctx
	}
	if d.Setup != nil {
		d.Setup(p)
	}
	d.pages = append(d.pages, p)
	return p, nil
}

func (d *FakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *FakeDriver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Pages returns every page handed out so far.
func (d *FakeDriver) Pages() []*FakePage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakePage(nil), d.pages...)
}

// OpenPages counts pages not yet closed.
func (d *FakeDriver) OpenPages() int {
	d.mu.Lock()
	pages := append([]*FakePage(nil), d.pages...)
	d.mu.Unlock()
	n := 0
	for _, p := range pages {
		if !p.Closed() {
			n++
		}
	}
	return n
}

// FakePage is a scripted page. Each FakePage models its own browser context:
// Storage is never shared between pages.
type FakePage struct {
	// OnNavigate runs on every Navigate after the URL is recorded.
	OnNavigate func(p *FakePage, url string) error
	// EvalFunc answers Eval; without it Eval returns "".
	EvalFunc func(js string) (string, error)
	// ScreenshotErr fails Screenshot when set.
	ScreenshotErr error
	// CloseErr fails the next Close, which leaves the page open.
	CloseErr error

	mu          sync.Mutex
	bound       context.Context
	url         string
	title       string
	body        *string
	content     *string
	elements    []*FakeElement
	storage     map[string]string
	navigations []string
	screenshots int
	closed      bool
}

// NewPage returns a blank page with an empty body.
func NewPage() *FakePage {
	empty := ""
	return &FakePage{body: &empty, storage: map[string]string{}}
}

func (p *FakePage) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

func (p *FakePage) SetBody(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.body = &text
}

// SetContent sets what BodyContent returns. Until it is called BodyContent
// mirrors the body text.
func (p *FakePage) SetContent(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content = &text
}

// ClearBody makes the body text undefined.
func (p *FakePage) ClearBody() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.body = nil
	p.content = nil
}

func (p *FakePage) AddElement(els ...*FakeElement) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements = append(p.elements, els...)
}

// Reset removes every element and clears title and body.
func (p *FakePage) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	empty := ""
	p.elements = nil
	p.title = ""
	p.body = &empty
	p.content = nil
}

func (p *FakePage) SetStorage(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.storage[key] = value
}

func (p *FakePage) Storage(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.storage[key]
	return v, ok
}

func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *FakePage) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

func (p *FakePage) Screenshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screenshots
}

func (p *FakePage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.url = url
	p.navigations = append(p.navigations, url)
	hook := p.OnNavigate
	p.mu.Unlock()
	if hook != nil {
		return hook(p, url)
	}
	return nil
}

func (p *FakePage) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", ErrClosed
	}
	return p.title, nil
}

func (p *FakePage) BodyText(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", false, ErrClosed
	}
	if p.body == nil {
		return "", false, nil
	}
	return *p.body, true, nil
}

func (p *FakePage) BodyContent(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", false, ErrClosed
	}
	if p.body == nil {
		return "", false, nil
	}
	if p.content != nil {
		return *p.content, true, nil
	}
	return *p.body, true, nil
}

func (p *FakePage) Find(ctx context.Context, sel browser.Selector) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	var out []browser.Element
	for _, el := range p.elements {
		if el.matches(sel) {
			out = append(out, el)
		}
	}
	return out, nil
}

func (p *FakePage) Eval(ctx context.Context, js string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.EvalFunc != nil {
		return p.EvalFunc(js)
	}
	return "", nil
}

// screenshotPNG is a valid 1x1 PNG.
var screenshotPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0xf8, 0xcf, 0xc0, 0xf0,
	0x1f, 0x00, 0x05, 0x00, 0x01, 0xff, 0x89, 0x99, 0x3d, 0x1d, 0x00, 0x00,
	0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func (p *FakePage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshots++
	return append([]byte(nil), screenshotPNG...), nil
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bound != nil && p.bound.Err() != nil {
		return fmt.Errorf("browsertest: close page: %w", p.bound.Err())
	}
	if err := p.CloseErr; err != nil {
		p.CloseErr = nil
		return err
	}
	p.closed = true
	return nil
}

// FakeElement is a node on a FakePage. A detached element is invisible to Find.
type FakeElement struct {
	Role    string
	Name    string
	Content string
	CSS     string

	// OnClick runs after a successful click.
	OnClick func() error

	mu     sync.Mutex
	state  browser.ElementState
	clicks int
	value  string
}

// Actionable is the state of a ready, unobstructed element at (x, y).
func Actionable(x, y float64) browser.ElementState {
	return browser.ElementState{Attached: true, Visible: true, Enabled: true, Unobscured: true, X: x, Y: y}
}

// Button returns an actionable button whose name is its text.
func Button(name string) *FakeElement {
	return &FakeElement{Role: "button", Name: name, Content: name, state: Actionable(100, 50)}
}

// Link returns an actionable link whose name is its text.
func Link(name string) *FakeElement {
	return &FakeElement{Role: "link", Name: name, Content: name, state: Actionable(200, 80)}
}

// TextBox returns an actionable, empty text box.
func TextBox(name string) *FakeElement {
	return &FakeElement{Role: "textbox", Name: name, state: Actionable(300, 200)}
}

// TextNode returns an actionable element carrying only text.
func TextNode(text string) *FakeElement {
	return &FakeElement{Content: text, state: Actionable(400, 300)}
}

// Node returns an actionable element addressed by a CSS string.
func Node(css, text string) *FakeElement {
	return &FakeElement{CSS: css, Content: text, state: Actionable(500, 400)}
}

func (e *FakeElement) matches(sel browser.Selector) bool {
	e.mu.Lock()
	attached := e.state.Attached
	e.mu.Unlock()
	if !attached {
		return false
	}
	switch sel.Kind {
	case browser.ByRole:
		if e.Role != sel.Role {
			return false
		}
		if sel.Name != "" && !browser.MatchName(e.Name, sel.Name, sel.Exact) {
			return false
		}
	case browser.ByText:
		if e.Content == "" || !browser.MatchName(e.Content, sel.Text, sel.Exact) {
			return false
		}
	case browser.ByCSS:
		if e.CSS == "" || e.CSS != sel.CSS {
			return false
		}
	default:
		return false
	}
	if sel.HasText != "" && !browser.MatchName(e.Content, sel.HasText, false) {
		return false
	}
	return true
}

func (e *FakeElement) SetState(s browser.ElementState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}

func (e *FakeElement) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

func (e *FakeElement) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

func (e *FakeElement) State(ctx context.Context) (browser.ElementState, error) {
	if err := ctx.Err(); err != nil {
		return browser.ElementState{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, nil
}

func (e *FakeElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	if !e.state.Actionable() {
		e.mu.Unlock()
		return errors.New("browsertest: element is not actionable")
	}
	e.clicks++
	hook := e.OnClick
	e.mu.Unlock()
	if hook != nil {
		return hook()
	}
	return nil
}

func (e *FakeElement) Fill(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Actionable() {
		return errors.New("browsertest: element is not actionable")
	}
	e.value = text
	return nil
}

func (e *FakeElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.Content, nil
}
