package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/webscenario/internal/browser/browsertest"
	"github.com/v0xg/webscenario/internal/scenario"
)

const relaxPageMap = `{
	"url": "http://relax.test/relax",
	"title": "RelaX - relational algebra calculator",
	"elements": [
		{"role": "button", "name": "Get Started", "css": "#start", "type": "button", "text": "Get Started"},
		{"role": "textbox", "css": "textarea", "type": "text"}
	],
	"navigation": [],
	"isSPA": true
}`

const relaxSteps = `[
	{"click": {"role": "button", "name": "Get Started"}},
	{"fill": {"selector": {"role": "textbox"}, "text": "R join S"}},
	{"assertText": "4'd''f'200"}
]`

// crawlable answers the crawler's scripts: the page map query serialises
// with JSON.stringify, the readiness probe does not.
func crawlable(p *browsertest.FakePage) {
	p.EvalFunc = func(js string) (string, error) {
		if strings.Contains(js, "JSON.stringify") {
			return relaxPageMap, nil
		}
		return "2", nil
	}
}

func TestGenerateToStdout(t *testing.T) {
	h := newHarness()
	h.driver.Setup = crawlable
	h.provider.reply = relaxSteps

	err := h.execute("generate", "http://relax.test/relax", "join R and S")
	require.NoError(t, err)

	assert.Contains(t, h.stderr.String(), "→ Crawling http://relax.test/relax... done (found 2 interactive elements)")
	assert.Contains(t, h.stderr.String(), "→ Generating scenario via fake... done (4 steps)")

	suite, err := scenario.Parse(h.stdout.Bytes(), "generated.yaml")
	require.NoError(t, err)
	assert.Equal(t, "RelaX - relational algebra calculator", suite.Name)
	require.Len(t, suite.Scenarios, 1)
	assert.Equal(t, "join R and S", suite.Scenarios[0].Name)
	assert.Equal(t, scenario.Navigate, suite.Scenarios[0].Steps[0].Kind)

	require.Len(t, h.provider.users, 1)
	assert.Contains(t, h.provider.users[0], "Get Started")
	assert.Equal(t, 0, h.driver.OpenPages())
}

func TestGenerateToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "join.yaml")
	h := newHarness()
	h.driver.Setup = crawlable
	h.provider.reply = relaxSteps

	require.NoError(t, h.execute("generate", "-o", out, "--headed", "http://relax.test/relax", "join R and S"))
	assert.Empty(t, h.stdout.String())
	assert.Contains(t, h.stderr.String(), "✓ Suite written to "+out)
	require.Len(t, h.launched, 1)
	assert.False(t, h.launched[0].Headless)

	_, err := scenario.Load(out)
	require.NoError(t, err)
}

func TestGenerateUnusableReply(t *testing.T) {
	h := newHarness()
	h.driver.Setup = crawlable
	h.provider.reply = "I cannot help with that."

	err := h.execute("generate", "http://relax.test/relax", "join R and S")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario generation failed")
	assert.Contains(t, h.stderr.String(), "→ Generating scenario via fake... failed")
	assert.Len(t, h.provider.users, 2)
}

func TestGenerateUnknownProvider(t *testing.T) {
	h := newHarness()
	err := h.execute("generate", "--provider", "bard", "http://relax.test/relax", "join")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Empty(t, h.launched, "no browser before the provider is known")
}

func TestGenerateNeedsURLAndPrompt(t *testing.T) {
	h := newHarness()
	err := h.execute("generate", "http://relax.test/relax")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
	assert.Empty(t, h.launched)
}
