package locator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/webscenario/internal/browser"
	"github.com/v0xg/webscenario/internal/browser/browsertest"
	"github.com/v0xg/webscenario/internal/failure"
	"github.com/v0xg/webscenario/internal/wait"
)

var fast = wait.Options{Timeout: 150 * time.Millisecond, Interval: 10 * time.Millisecond}

func TestResolve_ExactRoleName(t *testing.T) {
	page := browsertest.NewPage()
	btn := browsertest.Button("execute query")
	page.AddElement(btn, browsertest.Button("Get Started"))

	el, err := New(fast).Resolve(context.Background(), page, browser.Role("button", "execute query"))
	require.NoError(t, err)
	assert.Same(t, btn, el)
}

func TestResolve_NearMatchFails(t *testing.T) {
	page := browsertest.NewPage()
	page.AddElement(browsertest.Button("execute query"))

	_, err := New(fast).Resolve(context.Background(), page, browser.Role("button", "Execute Query"))
	require.Error(t, err)

	var locErr *failure.LocatorError
	require.True(t, errors.As(err, &locErr))
	assert.Equal(t, 0, locErr.Count)
	assert.Equal(t, `role=button[name="Execute Query"]`, locErr.Selector)
}

func TestResolve_PartialName(t *testing.T) {
	page := browsertest.NewPage()
	page.AddElement(browsertest.Link("UIBK - R, S, T"))

	_, err := New(fast).Resolve(context.Background(), page, browser.Role("link", "uibk").Partial())
	require.NoError(t, err)
}

func TestResolve_Ambiguous(t *testing.T) {
	page := browsertest.NewPage()
	page.AddElement(browsertest.Button("Select DB"), browsertest.Button("Select DB"))

	start := time.Now()
	_, err := New(fast).Resolve(context.Background(), page, browser.Role("button", "Select DB"))
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), fast.Timeout)

	var locErr *failure.LocatorError
	require.True(t, errors.As(err, &locErr))
	assert.Equal(t, 2, locErr.Count)
	assert.Contains(t, err.Error(), "2 elements matched")
}

func TestResolve_NthDisambiguates(t *testing.T) {
	page := browsertest.NewPage()
	first := browsertest.Button("Select DB")
	second := browsertest.Button("Select DB")
	page.AddElement(first, second)

	el, err := New(fast).Resolve(context.Background(), page, browser.Role("button", "Select DB").WithNth(1))
	require.NoError(t, err)
	assert.Same(t, second, el)

	_, err = New(fast).Resolve(context.Background(), page, browser.Role("button", "Select DB").WithNth(5))
	var locErr *failure.LocatorError
	require.True(t, errors.As(err, &locErr))
	assert.Equal(t, 2, locErr.Count, "out-of-range nth reports the real match count")
	assert.ErrorContains(t, err, "nth=5 out of range, 2 elements matched")
	assert.NotContains(t, err.Error(), "expected exactly one")
}

func TestResolve_NthWithNoMatches(t *testing.T) {
	_, err := New(fast).Resolve(context.Background(), browsertest.NewPage(), browser.Role("button", "Select DB").WithNth(0))
	var locErr *failure.LocatorError
	require.True(t, errors.As(err, &locErr))
	assert.Equal(t, 0, locErr.Count)
	assert.ErrorContains(t, err, "no element matched")
}

func TestResolve_HasTextFilter(t *testing.T) {
	page := browsertest.NewPage()
	page.AddElement(
		browsertest.Node(".CodeMirror-line", "pi a R"),
		browsertest.Node(".CodeMirror-line", "sigma b > 100 S"),
	)

	sel := browser.CSS(".CodeMirror-line").WithHasText("sigma")
	el, err := New(fast).Resolve(context.Background(), page, sel)
	require.NoError(t, err)
	text, err := el.Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sigma b > 100 S", text)
}

func TestResolve_WaitsForLateElement(t *testing.T) {
	page := browsertest.NewPage()
	time.AfterFunc(40*time.Millisecond, func() {
		page.AddElement(browsertest.Button("Get Started"))
	})

	_, err := New(fast).Resolve(context.Background(), page, browser.Role("button", "Get Started"))
	require.NoError(t, err)
}

func TestResolve_DetachedIsNotMatched(t *testing.T) {
	page := browsertest.NewPage()
	btn := browsertest.Button("Get Started")
	btn.SetState(browser.ElementState{})
	page.AddElement(btn)

	_, err := New(fast).Resolve(context.Background(), page, browser.Role("button", "Get Started"))
	assert.Equal(t, failure.KindLocator, failure.KindOf(err))
}

func TestResolve_InvalidSelector(t *testing.T) {
	_, err := New(fast).Resolve(context.Background(), browsertest.NewPage(), browser.Selector{})
	require.Error(t, err)
	assert.Equal(t, failure.KindUnknown, failure.KindOf(err))
}

func TestResolve_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(fast).Resolve(ctx, browsertest.NewPage(), browser.CSS("#x"))
	assert.ErrorIs(t, err, context.Canceled)
}
