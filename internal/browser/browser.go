// Package browser abstracts the browser automation backends (go-rod and
// Playwright) behind a small Driver / Page / Element surface. Everything above
// this package sees only these interfaces, so the harness logic is exercised
// in tests against browsertest fakes.
package browser

import (
	"context"
	"fmt"
	"strings"
)

// Driver names accepted by Launch.
const (
	DriverRod        = "rod"
	DriverPlaywright = "playwright"
)

// Options configures a browser launch.
type Options struct {
	Driver   string
	Headless bool
	Width    int
	Height   int
	// ProfileDir is an optional user data directory (rod only).
	ProfileDir string
}

// Driver owns one browser process and hands out isolated contexts.
type Driver interface {
	Name() string
	// NewPage opens a page in a fresh browser context that shares no cookies
	// or storage with any other page returned by this driver. ctx bounds the
	// opening only; the page lives until Close.
	NewPage(ctx context.Context) (Page, error)
	// Close shuts the browser process down.
	Close() error
}

// Page is one tab inside an isolated context. Closing it destroys the context.
type Page interface {
	// Navigate loads url and returns once the load event has fired.
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	// BodyText returns the rendered text of the document body. defined is
	// false when there is no body to read.
	BodyText(ctx context.Context) (text string, defined bool, err error)
	// BodyContent returns the raw text nodes of the body joined without
	// separators, so adjacent table cells read as one run.
	BodyContent(ctx context.Context) (text string, defined bool, err error)
	// Find returns every attached element currently matching sel, in
	// document order. It ignores sel.Nth; disambiguation is the caller's job.
	Find(ctx context.Context, sel Selector) ([]Element, error)
	// Eval runs a JavaScript function expression and returns its result
	// stringified.
	Eval(ctx context.Context, js string) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Element is a live handle to one DOM node.
type Element interface {
	State(ctx context.Context) (ElementState, error)
	Click(ctx context.Context) error
	Fill(ctx context.Context, text string) error
	Text(ctx context.Context) (string, error)
}

// Point is a coordinate in viewport space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ElementState is a snapshot of the properties that make an element actionable.
type ElementState struct {
	Attached   bool    `json:"attached"`
	Visible    bool    `json:"visible"`
	Enabled    bool    `json:"enabled"`
	Unobscured bool    `json:"unobscured"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// Actionable reports whether the element can receive user input.
func (s ElementState) Actionable() bool {
	return s.Attached && s.Visible && s.Enabled && s.Unobscured
}

// Center returns the element's centre point.
func (s ElementState) Center() Point {
	return Point{X: int(s.X), Y: int(s.Y)}
}

func (s ElementState) String() string {
	if !s.Attached {
		return "detached"
	}
	parts := []string{"attached"}
	if s.Visible {
		parts = append(parts, "visible")
	} else {
		parts = append(parts, "hidden")
	}
	if s.Enabled {
		parts = append(parts, "enabled")
	} else {
		parts = append(parts, "disabled")
	}
	if s.Unobscured {
		parts = append(parts, "unobscured")
	} else {
		parts = append(parts, "obscured")
	}
	return strings.Join(parts, ", ")
}

// Launch starts the browser selected by opts.Driver.
func Launch(ctx context.Context, opts Options) (Driver, error) {
	if opts.Width == 0 {
		opts.Width = 1280
	}
	if opts.Height == 0 {
		opts.Height = 720
	}
	switch opts.Driver {
	case "", DriverRod:
		return launchRod(ctx, opts)
	case DriverPlaywright:
		return launchPlaywright(opts)
	default:
		return nil, fmt.Errorf("unknown driver: %s (supported: rod, playwright)", opts.Driver)
	}
}
