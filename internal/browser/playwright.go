package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// stateProbeTimeout bounds how long a state probe waits for a detached handle.
const stateProbeTimeout = 250 * time.Millisecond

type playwrightDriver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options
}

func launchPlaywright(opts Options) (Driver, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	br, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	return &playwrightDriver{pw: pw, browser: br, opts: opts}, nil
}

func (d *playwrightDriver) Name() string { return DriverPlaywright }

func (d *playwrightDriver) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bc, err := d.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: d.opts.Width, Height: d.opts.Height},
	})
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	page, err := bc.NewPage()
	if err != nil {
		_ = bc.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &playwrightPage{context: bc, page: page}, nil
}

func (d *playwrightDriver) Close() error {
	return errors.Join(d.browser.Close(), d.pw.Stop())
}

type playwrightPage struct {
	context playwright.BrowserContext
	page    playwright.Page
}

// timeoutMS converts the context deadline into Playwright's millisecond
// timeout option.
func timeoutMS(ctx context.Context, fallback time.Duration) *float64 {
	d := fallback
	if deadline, ok := ctx.Deadline(); ok {
		d = time.Until(deadline)
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *playwrightPage) Navigate(ctx context.Context, url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   timeoutMS(ctx, 30*time.Second),
	})
	return err
}

func (p *playwrightPage) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Title()
}

func (p *playwrightPage) BodyText(ctx context.Context) (string, bool, error) {
	return p.evalBody(ctx, bodyTextJS)
}

func (p *playwrightPage) BodyContent(ctx context.Context) (string, bool, error) {
	return p.evalBody(ctx, bodyContentJS)
}

func (p *playwrightPage) evalBody(ctx context.Context, js string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, err := p.page.Evaluate(js)
	if err != nil {
		return "", false, err
	}
	s, ok := v.(string)
	if !ok {
		return "", false, nil
	}
	return s, true, nil
}

func (p *playwrightPage) locator(sel Selector) playwright.Locator {
	var loc playwright.Locator
	switch sel.Kind {
	case ByRole:
		opts := playwright.PageGetByRoleOptions{Exact: playwright.Bool(sel.Exact)}
		if sel.Name != "" {
			opts.Name = sel.Name
		}
		loc = p.page.GetByRole(playwright.AriaRole(sel.Role), opts)
	case ByText:
		loc = p.page.GetByText(sel.Text, playwright.PageGetByTextOptions{Exact: playwright.Bool(sel.Exact)})
	default:
		loc = p.page.Locator(sel.CSS)
	}
	if sel.HasText != "" {
		loc = loc.Filter(playwright.LocatorFilterOptions{HasText: sel.HasText})
	}
	return loc
}

func (p *playwrightPage) Find(ctx context.Context, sel Selector) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := p.locator(sel).All()
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(all))
	for _, loc := range all {
		out = append(out, &playwrightElement{loc: loc})
	}
	return out, nil
}

func (p *playwrightPage) Eval(ctx context.Context, js string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := p.page.Evaluate(js)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p *playwrightPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Screenshot()
}

func (p *playwrightPage) Close() error {
	return errors.Join(p.page.Close(), p.context.Close())
}

type playwrightElement struct {
	loc playwright.Locator
}

func (e *playwrightElement) State(ctx context.Context) (ElementState, error) {
	if err := ctx.Err(); err != nil {
		return ElementState{}, err
	}
	v, err := e.loc.Evaluate(elementStateJS, nil, playwright.LocatorEvaluateOptions{
		Timeout: playwright.Float(float64(stateProbeTimeout.Milliseconds())),
	})
	if err != nil {
		// The handle resolves lazily; a timeout here means the node is gone.
		return ElementState{}, nil
	}
	m, _ := v.(map[string]interface{})
	num := func(k string) float64 {
		switch n := m[k].(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
		return 0
	}
	flag := func(k string) bool {
		b, _ := m[k].(bool)
		return b
	}
	return ElementState{
		Attached:   flag("attached"),
		Visible:    flag("visible"),
		Enabled:    flag("enabled"),
		Unobscured: flag("unobscured"),
		X:          num("x"),
		Y:          num("y"),
	}, nil
}

func (e *playwrightElement) Click(ctx context.Context) error {
	return e.loc.Click(playwright.LocatorClickOptions{Timeout: timeoutMS(ctx, 5*time.Second)})
}

func (e *playwrightElement) Fill(ctx context.Context, text string) error {
	return e.loc.Fill(text, playwright.LocatorFillOptions{Timeout: timeoutMS(ctx, 5*time.Second)})
}

func (e *playwrightElement) Text(ctx context.Context) (string, error) {
	return e.loc.InnerText(playwright.LocatorInnerTextOptions{Timeout: timeoutMS(ctx, 5*time.Second)})
}
