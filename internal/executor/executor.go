// Package executor performs user actions inside a session: navigation,
// clicks and text entry. Click and fill wait for their target to become
// actionable first.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/v0xg/webscenario/internal/browser"
	"github.com/v0xg/webscenario/internal/failure"
	"github.com/v0xg/webscenario/internal/locator"
	"github.com/v0xg/webscenario/internal/scenario"
	"github.com/v0xg/webscenario/internal/session"
	"github.com/v0xg/webscenario/internal/wait"
)

// DefaultNavigationTimeout bounds a page load.
const DefaultNavigationTimeout = 30 * time.Second

// Options configures execution behavior
type Options struct {
	// Wait bounds element resolution and the actionability poll.
	Wait wait.Options
	// NavigationTimeout bounds each page load.
	NavigationTimeout time.Duration
}

// Executor runs actions against a session's page.
type Executor struct {
	resolver *locator.Resolver
	opts     Options
	logger   *slog.Logger
}

func New(resolver *locator.Resolver, opts Options, logger *slog.Logger) *Executor {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{resolver: resolver, opts: opts, logger: logger}
}

// Perform runs an action step. Assertion steps are not actions.
func (e *Executor) Perform(ctx context.Context, s *session.Session, st scenario.Step) (Result, error) {
	switch st.Kind {
	case scenario.Navigate:
		return e.Navigate(ctx, s, st.URL)
	case scenario.Click:
		return e.Click(ctx, s, st.Selector)
	case scenario.Fill:
		return e.Fill(ctx, s, st.Selector, st.Text)
	default:
		return Result{}, fmt.Errorf("%s is not an action", st.Kind)
	}
}

// Navigate loads target, resolved against the session's base URL, and
// returns once the load event fired. Load failures are infrastructure errors.
func (e *Executor) Navigate(ctx context.Context, s *session.Session, target string) (Result, error) {
	url, err := s.Resolve(target)
	if err != nil {
		return Result{}, err
	}

	navCtx, cancel := context.WithTimeout(ctx, e.opts.NavigationTimeout)
	defer cancel()

	start := time.Now()
	if err := s.Page.Navigate(navCtx, url); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, &failure.InfrastructureError{Op: "navigate " + url, Err: err}
	}
	e.logger.Debug("navigated", "session", s.ID, "url", url, "took", time.Since(start))

	return Result{Action: ActionNavigate, URL: url}, nil
}

// Click resolves sel, waits until the element is actionable and clicks its
// centre.
func (e *Executor) Click(ctx context.Context, s *session.Session, sel browser.Selector) (Result, error) {
	el, state, err := e.prepare(ctx, s, ActionClick, sel)
	if err != nil {
		return Result{}, err
	}

	actCtx, cancel := context.WithTimeout(ctx, e.waitTimeout())
	defer cancel()
	if err := el.Click(actCtx); err != nil {
		return Result{}, fmt.Errorf("click %s: %w", sel, err)
	}

	point := state.Center()
	e.logger.Debug("clicked", "session", s.ID, "selector", sel.String(), "x", point.X, "y", point.Y)
	return Result{Action: ActionClick, Point: &point}, nil
}

// Fill replaces the element's value with text.
func (e *Executor) Fill(ctx context.Context, s *session.Session, sel browser.Selector, text string) (Result, error) {
	el, state, err := e.prepare(ctx, s, ActionFill, sel)
	if err != nil {
		return Result{}, err
	}

	actCtx, cancel := context.WithTimeout(ctx, e.waitTimeout())
	defer cancel()
	if err := el.Fill(actCtx, text); err != nil {
		return Result{}, fmt.Errorf("fill %s: %w", sel, err)
	}

	point := state.Center()
	e.logger.Debug("filled", "session", s.ID, "selector", sel.String(), "chars", len(text))
	return Result{Action: ActionFill, Point: &point}, nil
}

func (e *Executor) waitTimeout() time.Duration {
	if e.opts.Wait.Timeout > 0 {
		return e.opts.Wait.Timeout
	}
	return wait.DefaultTimeout
}

// prepare resolves the target and polls its state until it is actionable.
func (e *Executor) prepare(ctx context.Context, s *session.Session, action string, sel browser.Selector) (browser.Element, browser.ElementState, error) {
	el, err := e.resolver.Resolve(ctx, s.Page, sel)
	if err != nil {
		return nil, browser.ElementState{}, err
	}

	var (
		last    browser.ElementState
		lastErr error
	)
	err = wait.Until(ctx, e.opts.Wait, func(ctx context.Context) (bool, error) {
		st, err := el.State(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			lastErr = err
			return false, nil
		}
		last, lastErr = st, nil
		return st.Actionable(), nil
	})
	if err == nil {
		return el, last, nil
	}
	if wait.IsTimeout(err) {
		return nil, last, &failure.ActionTimeoutError{
			Action:    action,
			Selector:  sel.String(),
			LastState: last.String(),
			Err:       lastErr,
		}
	}
	return nil, last, err
}
