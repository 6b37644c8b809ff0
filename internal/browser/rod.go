package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// closeTimeout bounds tearing a page and its browser context down.
const closeTimeout = 10 * time.Second

type rodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	opts     Options
}

func launchRod(ctx context.Context, opts Options) (Driver, error) {
	path, _ := launcher.LookPath()
	l := launcher.New().Context(ctx).Bin(path).Headless(opts.Headless)
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chromium: %w", err)
	}

	return &rodDriver{launcher: l, browser: b, opts: opts}, nil
}

func (d *rodDriver) Name() string { return DriverRod }

func (d *rodDriver) NewPage(ctx context.Context) (Page, error) {
	inc, err := d.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := inc.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		inc.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             d.opts.Width,
		Height:            d.opts.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		page.Close()
		inc.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	detached := context.Background()
	return &rodPage{context: inc.Context(detached), page: page.Context(detached)}, nil
}

func (d *rodDriver) Close() error {
	err := d.browser.Close()
	d.launcher.Kill()
	return err
}

type rodPage struct {
	context *rod.Browser
	page    *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p *rodPage) Title(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(titleJS)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (p *rodPage) BodyText(ctx context.Context) (string, bool, error) {
	return p.evalBody(ctx, bodyTextJS)
}

func (p *rodPage) BodyContent(ctx context.Context) (string, bool, error) {
	return p.evalBody(ctx, bodyContentJS)
}

func (p *rodPage) evalBody(ctx context.Context, js string) (string, bool, error) {
	res, err := p.page.Context(ctx).Eval(js)
	if err != nil {
		return "", false, err
	}
	if res.Value.Nil() {
		return "", false, nil
	}
	return res.Value.Str(), true, nil
}

func (p *rodPage) Find(ctx context.Context, sel Selector) ([]Element, error) {
	els, err := p.page.Context(ctx).ElementsByJS(rod.Eval(findJS,
		string(sel.Kind), sel.Role, sel.Name, sel.Text, sel.CSS, sel.Exact, sel.HasText))
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (p *rodPage) Eval(ctx context.Context, js string) (string, error) {
	res, err := p.page.Context(ctx).Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.String(), nil
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(false, nil)
}

func (p *rodPage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return errors.Join(p.page.Context(ctx).Close(), p.context.Context(ctx).Close())
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) State(ctx context.Context) (ElementState, error) {
	res, err := e.el.Context(ctx).Eval(`() => (` + elementStateJS + `)(this)`)
	if err != nil {
		// A handle whose node was garbage collected or whose frame navigated
		// away can no longer be evaluated against.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ElementState{}, err
		}
		return ElementState{}, nil
	}
	v := res.Value
	return ElementState{
		Attached:   v.Get("attached").Bool(),
		Visible:    v.Get("visible").Bool(),
		Enabled:    v.Get("enabled").Bool(),
		Unobscured: v.Get("unobscured").Bool(),
		X:          v.Get("x").Num(),
		Y:          v.Get("y").Num(),
	}, nil
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Fill(ctx context.Context, text string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return err
	}
	if text == "" {
		return el.Type(input.Backspace)
	}
	return el.Input(text)
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}
