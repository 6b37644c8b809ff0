package browser_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pageassert "github.com/v0xg/webscenario/internal/assert"
	"github.com/v0xg/webscenario/internal/browser"
	"github.com/v0xg/webscenario/internal/locator"
	"github.com/v0xg/webscenario/internal/wait"
)

// relaxPage is a stand-in for the calculator: one button reveals the query
// editor, executing renders the tuples as a table.
const relaxPage = `<!doctype html>
<html><head><title>RelaX - relational algebra calculator</title>
<script>
function execute() {
  document.getElementById('out').innerHTML =
    "<tr><th>R.a</th><th>R.b</th><th>S.c</th><th>S.d</th></tr>" +
    "<tr><td>1</td><td>'a'</td><td>'d'</td><td>100</td></tr>" +
    "<tr><td>4</td><td>'d'</td><td>'f'</td><td>200</td></tr>";
}
</script>
</head>
<body>
<h1>RelaX - relational algebra calculator</h1>
<button id="start" onclick="document.getElementById('calc').hidden = false">Get Started</button>
<div id="calc" hidden>
  <textarea aria-label="query"></textarea>
  <button onclick="execute()">execute query</button>
  <button disabled>Execute Query Later</button>
  <table id="out"></table>
</div>
</body></html>`

const browserTestsEnv = "WEBSCENARIO_BROWSER_TESTS"

// launch starts a real browser, skipping when browser tests are off or no
// browser can be started.
func launch(t *testing.T, driver string) browser.Driver {
	t.Helper()
	if os.Getenv(browserTestsEnv) == "" {
		t.Skipf("set %s=1 to run real browser tests", browserTestsEnv)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	d, err := browser.Launch(ctx, browser.Options{Driver: driver, Headless: true})
	if err != nil {
		t.Skipf("%s browser unavailable: %v", driver, err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func serve(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(relaxPage))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestDrivers(t *testing.T) {
	for _, name := range []string{browser.DriverRod, browser.DriverPlaywright} {
		t.Run(name, func(t *testing.T) {
			d := launch(t, name)
			url := serve(t)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			page, err := d.NewPage(ctx)
			require.NoError(t, err)
			defer page.Close()

			require.NoError(t, page.Navigate(ctx, url+"/relax"))
			title, err := page.Title(ctx)
			require.NoError(t, err)
			assert.Equal(t, "RelaX - relational algebra calculator", title)

			hidden, err := page.Find(ctx, browser.Role("button", "execute query"))
			require.NoError(t, err)
			assert.Empty(t, hidden, "role queries skip hidden nodes")

			start, err := page.Find(ctx, browser.Role("button", "Get Started"))
			require.NoError(t, err)
			require.Len(t, start, 1)
			require.NoError(t, start[0].Click(ctx))

			exact, err := page.Find(ctx, browser.Role("button", "Execute Query"))
			require.NoError(t, err)
			assert.Empty(t, exact, "role names match exactly")
			partial, err := page.Find(ctx, browser.Role("button", "Execute Query").Partial())
			require.NoError(t, err)
			assert.Len(t, partial, 2)

			box, err := page.Find(ctx, browser.Role("textbox", "query"))
			require.NoError(t, err)
			require.Len(t, box, 1)
			require.NoError(t, box[0].Fill(ctx, "R join S"))

			execute, err := page.Find(ctx, browser.Role("button", "execute query"))
			require.NoError(t, err)
			require.Len(t, execute, 1)
			state, err := execute[0].State(ctx)
			require.NoError(t, err)
			assert.True(t, state.Actionable(), state.String())
			require.NoError(t, execute[0].Click(ctx))

			body, defined, err := page.BodyText(ctx)
			require.NoError(t, err)
			assert.True(t, defined)
			assert.Contains(t, body, "R.a")
			content, defined, err := page.BodyContent(ctx)
			require.NoError(t, err)
			assert.True(t, defined)
			assert.Contains(t, content, "4'd''f'200")
			assert.NotContains(t, content, "innerHTML", "script bodies are not content")

			opts := wait.Options{Timeout: 2 * time.Second, Interval: 50 * time.Millisecond}
			engine := pageassert.New(locator.New(opts), opts)
			require.NoError(t, engine.Check(ctx, page, pageassert.TextPresent, pageassert.MustPattern("1'a''d'100")))
			require.NoError(t, engine.Check(ctx, page, pageassert.TextPresent, pageassert.MustPattern("4 'd' 'f' 200")))

			rows, err := page.Find(ctx, browser.Text("1'a''d'100"))
			require.NoError(t, err)
			assert.NotEmpty(t, rows, "text selectors see table cells joined")

			shot, err := page.Screenshot(ctx)
			require.NoError(t, err)
			assert.NotEmpty(t, shot)
		})
	}
}

func TestDriverPagesAreIsolated(t *testing.T) {
	d := launch(t, browser.DriverRod)
	url := serve(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := d.NewPage(ctx)
	require.NoError(t, err)
	defer a.Close()
	b, err := d.NewPage(ctx)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Navigate(ctx, url))
	require.NoError(t, b.Navigate(ctx, url))

	_, err = a.Eval(ctx, `() => { localStorage.setItem("db", "uibk"); document.cookie = "s=1"; return "ok" }`)
	require.NoError(t, err)

	got, err := b.Eval(ctx, `() => String(localStorage.getItem("db")) + "|" + document.cookie`)
	require.NoError(t, err)
	assert.Equal(t, "null|", got)
}
