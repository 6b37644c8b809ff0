package crawler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/webscenario/internal/browser"
	"github.com/v0xg/webscenario/internal/browser/browsertest"
	"github.com/v0xg/webscenario/internal/wait"
)

const relaxMap = `{
	"url": "http://relax.test/relax",
	"title": "RelaX - relational algebra calculator",
	"elements": [
		{"role": "button", "name": "Get Started", "css": "#start", "type": "button", "text": "Get Started"},
		{"role": "textbox", "css": "div.CodeMirror > textarea:nth-child(1)", "type": "text"},
		{"role": "link", "name": "UIBK - R, S, T", "css": "a.dataset", "type": "link", "text": "UIBK - R, S, T"}
	],
	"navigation": [{"css": "a[href=\"/relax/help\"]", "text": "Help", "href": "/relax/help"}],
	"isSPA": true
}`

var fast = Options{Settle: wait.Options{Timeout: 50 * time.Millisecond, Interval: 5 * time.Millisecond}}

func TestCrawl(t *testing.T) {
	page := browsertest.NewPage()
	page.EvalFunc = func(js string) (string, error) {
		if js == interactiveCountJS {
			return "3", nil
		}
		return relaxMap, nil
	}

	pm, err := Crawl(context.Background(), page, "http://relax.test/relax", fast)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://relax.test/relax"}, page.Navigations())
	assert.Equal(t, "RelaX - relational algebra calculator", pm.Title)
	assert.True(t, pm.IsSPA)
	require.Len(t, pm.Elements, 3)
	require.Len(t, pm.Navigation, 1)
	assert.Equal(t, "/relax/help", pm.Navigation[0].Href)

	assert.Equal(t, browser.Role("button", "Get Started"), pm.Elements[0].Selector())
	assert.Equal(t, browser.CSS("div.CodeMirror > textarea:nth-child(1)"), pm.Elements[1].Selector())
	assert.Equal(t, `"RelaX - relational algebra calculator": 1 button, 1 link, 1 text`, pm.String())
}

func TestCrawl_NoInteractiveElementsStillMaps(t *testing.T) {
	page := browsertest.NewPage()
	counts := 0
	page.EvalFunc = func(js string) (string, error) {
		if js == interactiveCountJS {
			counts++
			return "0", nil
		}
		return `{"url": "about:blank", "title": "", "elements": [], "navigation": [], "isSPA": false}`, nil
	}

	pm, err := Crawl(context.Background(), page, "about:blank", fast)
	require.NoError(t, err)
	assert.Empty(t, pm.Elements)
	assert.Greater(t, counts, 1)
	assert.Equal(t, `"": 0 elements`, pm.String())
}

func TestCrawl_NavigateError(t *testing.T) {
	page := browsertest.NewPage()
	page.OnNavigate = func(_ *browsertest.FakePage, _ string) error {
		return errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	_, err := Crawl(context.Background(), page, "http://nowhere.test", fast)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "navigate http://nowhere.test")
}

func TestCrawl_BadPayload(t *testing.T) {
	page := browsertest.NewPage()
	page.EvalFunc = func(js string) (string, error) {
		if js == interactiveCountJS {
			return "1", nil
		}
		return "not json", nil
	}
	_, err := Crawl(context.Background(), page, "http://relax.test", fast)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode page map")
}

func TestCrawl_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReCrawl(ctx, browsertest.NewPage(), fast)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPageMapJS_UsesHelpers(t *testing.T) {
	assert.True(t, strings.HasPrefix(pageMapJS, "() => {"))
	assert.Contains(t, pageMapJS, "const roleOf")
	assert.Contains(t, pageMapJS, "JSON.stringify")
}
