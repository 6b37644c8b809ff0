// Package locator resolves selectors to exactly one live element.
package locator

import (
	"context"
	"errors"
	"fmt"

	"github.com/v0xg/webscenario/internal/browser"
	"github.com/v0xg/webscenario/internal/failure"
	"github.com/v0xg/webscenario/internal/wait"
)

// Resolver polls the page until a selector identifies a single element.
type Resolver struct {
	opts wait.Options
}

func New(opts wait.Options) *Resolver {
	return &Resolver{opts: opts}
}

// Resolve returns the one element matching sel. Zero matches or several
// matches without nth fail with a LocatorError once the timeout elapses.
func (r *Resolver) Resolve(ctx context.Context, page browser.Page, sel browser.Selector) (browser.Element, error) {
	if err := sel.Validate(); err != nil {
		return nil, fmt.Errorf("invalid selector %s: %w", sel, err)
	}

	var (
		found   browser.Element
		count   int
		lastErr error
	)
	err := wait.Until(ctx, r.opts, func(ctx context.Context) (bool, error) {
		els, err := page.Find(ctx, sel)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			// Finding can fail while a navigation swaps the document.
			count, lastErr = 0, err
			return false, nil
		}
		lastErr = nil

		if sel.Nth != nil {
			if *sel.Nth < len(els) {
				found = els[*sel.Nth]
				return true, nil
			}
			count = len(els)
			return false, nil
		}

		count = len(els)
		if count == 1 {
			found = els[0]
			return true, nil
		}
		return false, nil
	})
	if err == nil {
		return found, nil
	}
	if wait.IsTimeout(err) {
		if lastErr == nil && !errors.Is(err, wait.ErrTimeout) {
			lastErr = err
		}
		return nil, &failure.LocatorError{Selector: sel.String(), Count: count, Nth: sel.Nth, Err: lastErr}
	}
	return nil, err
}
