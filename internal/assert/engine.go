package assert

import (
	"context"
	"errors"
	"fmt"

	"github.com/v0xg/webscenario/internal/browser"
	"github.com/v0xg/webscenario/internal/failure"
	"github.com/v0xg/webscenario/internal/locator"
	"github.com/v0xg/webscenario/internal/wait"
)

// Predicate names.
const (
	TitleMatches   = "titleMatches"
	TextPresent    = "textPresent"
	ElementVisible = "elementVisible"
)

// maxActual caps how much observed text an AssertionError carries.
const maxActual = 500

// Engine checks predicates against a live page.
type Engine struct {
	resolver *locator.Resolver
	opts     wait.Options
}

func New(resolver *locator.Resolver, opts wait.Options) *Engine {
	return &Engine{resolver: resolver, opts: opts}
}

// Check waits for predicate to hold for p.
func (e *Engine) Check(ctx context.Context, page browser.Page, predicate string, p Pattern) error {
	switch predicate {
	case TitleMatches:
		return e.TitleMatches(ctx, page, p)
	case TextPresent:
		return e.TextPresent(ctx, page, p)
	default:
		return fmt.Errorf("unknown predicate %q", predicate)
	}
}

// TitleMatches waits for the document title to match p.
func (e *Engine) TitleMatches(ctx context.Context, page browser.Page, p Pattern) error {
	return e.poll(ctx, TitleMatches, p.describe(true), func(ctx context.Context) (string, bool, error) {
		title, err := page.Title(ctx)
		if err != nil {
			return "", true, err
		}
		return title, true, nil
	}, p.MatchWhole)
}

// TextPresent waits for p to match either the rendered body text or the raw
// body content. A page without a body fails at once.
func (e *Engine) TextPresent(ctx context.Context, page browser.Page, p Pattern) error {
	var content string
	observe := func(ctx context.Context) (string, bool, error) {
		text, defined, err := page.BodyText(ctx)
		if err != nil || !defined {
			return text, defined, err
		}
		content, _, err = page.BodyContent(ctx)
		return text, true, err
	}
	return e.poll(ctx, TextPresent, p.describe(false), observe, func(text string) bool {
		return p.MatchWithin(text) || p.MatchWithin(content)
	})
}

// Visible resolves sel to one element and waits for it to be visible.
func (e *Engine) Visible(ctx context.Context, page browser.Page, sel browser.Selector) error {
	el, err := e.resolver.Resolve(ctx, page, sel)
	if err != nil {
		return err
	}

	var last browser.ElementState
	err = wait.Until(ctx, e.opts, func(ctx context.Context) (bool, error) {
		st, err := el.State(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, nil
		}
		last = st
		return st.Attached && st.Visible, nil
	})
	if err == nil {
		return nil
	}
	if wait.IsTimeout(err) {
		return &failure.AssertionError{
			Predicate: fmt.Sprintf("%s %s", ElementVisible, sel),
			Expected:  "attached, visible",
			Actual:    last.String(),
		}
	}
	return err
}

type observeFunc func(ctx context.Context) (value string, defined bool, err error)

func (e *Engine) poll(ctx context.Context, predicate, expected string, observe observeFunc, match func(string) bool) error {
	var (
		actual    string
		observed  bool
		undefined bool
		lastErr   error
	)
	err := wait.Until(ctx, e.opts, func(ctx context.Context) (bool, error) {
		v, defined, err := observe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			lastErr = err
			return false, nil
		}
		if !defined {
			undefined = true
			return false, errUndefined
		}
		actual, observed, lastErr = v, true, nil
		return match(v), nil
	})
	switch {
	case err == nil:
		return nil
	case undefined:
		return &failure.AssertionError{Predicate: predicate, Expected: expected, Undefined: true}
	case wait.IsTimeout(err):
		ae := &failure.AssertionError{
			Predicate: predicate,
			Expected:  expected,
			Actual:    truncate(actual, maxActual),
			Err:       lastErr,
		}
		if !observed && lastErr != nil {
			ae.Undefined = true
		}
		return ae
	default:
		return err
	}
}

var errUndefined = errors.New("observation undefined")

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
