package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/webscenario/internal/browser"
	"github.com/v0xg/webscenario/internal/crawler"
	"github.com/v0xg/webscenario/internal/scenario"
)

type fakeProvider struct {
	replies []string
	err     error
	users   []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, system, user string) (string, error) {
	f.users = append(f.users, user)
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

var relaxPage = &crawler.PageMap{
	URL:   "http://relax.test/relax",
	Title: "RelaX - relational algebra calculator",
	Elements: []crawler.Element{
		{Role: "button", Name: "Get Started", CSS: "#start", Type: "button", Text: "Get Started"},
	},
}

const relaxReply = `Here you go:
[
	{"click": {"role": "button", "name": "Get Started"}},
	{"fill": {"selector": {"role": "textbox"}, "text": "R join S [x]"}},
	{"click": {"role": "button", "name": "execute query"}},
	{"assertText": "1'a''d'100"},
	{"assertTitle": "/RelaX/"}
]
Let me know if you need more.`

func TestParseStepsJSON(t *testing.T) {
	steps, err := parseStepsJSON(relaxReply)
	require.NoError(t, err)
	require.Len(t, steps, 5)

	assert.Equal(t, scenario.Click, steps[0].Kind)
	assert.Equal(t, browser.Role("button", "Get Started"), steps[0].Selector)
	assert.Equal(t, scenario.Fill, steps[1].Kind)
	assert.Equal(t, "R join S [x]", steps[1].Text)
	assert.Equal(t, scenario.AssertText, steps[3].Kind)
	assert.Equal(t, "1'a''d'100", steps[3].Pattern.String())
	assert.True(t, steps[4].Pattern.IsRegex())
}

func TestParseStepsJSON_Errors(t *testing.T) {
	cases := map[string]string{
		"no array":      "I cannot help with that.",
		"unbalanced":    `[{"click": {"css": "#a"}}`,
		"unknown step":  `[{"hover": {"css": "#a"}}]`,
		"empty":         `[]`,
		"invalid json":  `[{"click": }]`,
		"bad selector":  `[{"click": {"role": "button", "css": "#a"}}]`,
		"empty pattern": `[{"assertText": ""}]`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseStepsJSON(reply)
			assert.Error(t, err)
		})
	}
}

func TestExtractArray_IgnoresBracketsInStrings(t *testing.T) {
	raw, err := extractArray(`x [{"text": "a ] b [ c \" ]"}] y`)
	require.NoError(t, err)
	assert.Equal(t, `[{"text": "a ] b [ c \" ]"}]`, string(raw))
}

func TestGenerateSuite(t *testing.T) {
	p := &fakeProvider{replies: []string{relaxReply}}
	suite, err := NewGenerator(p).GenerateSuite(context.Background(), relaxPage, " join the sample relations ")
	require.NoError(t, err)

	assert.Equal(t, "RelaX - relational algebra calculator", suite.Name)
	require.Len(t, suite.Scenarios, 1)
	sc := suite.Scenarios[0]
	assert.Equal(t, "join the sample relations", sc.Name)
	require.Len(t, sc.Steps, 6)
	assert.Equal(t, scenario.Navigate, sc.Steps[0].Kind)
	assert.Equal(t, "http://relax.test/relax", sc.Steps[0].URL)

	require.Len(t, p.users, 1)
	assert.Contains(t, p.users[0], `"name": "Get Started"`)
	assert.Contains(t, p.users[0], "User request:  join the sample relations ")
}

func TestGenerateSuite_RetriesUnusableReply(t *testing.T) {
	p := &fakeProvider{replies: []string{"sorry", `[{"navigate": "/relax"}, {"assertTitle": "/RelaX/"}]`}}
	suite, err := NewGenerator(p).GenerateSuite(context.Background(), relaxPage, "title")
	require.NoError(t, err)

	require.Len(t, p.users, 2)
	assert.Contains(t, p.users[1], "could not be used: no JSON array found")
	require.Len(t, suite.Scenarios[0].Steps, 2, "an existing leading navigate is kept")
	assert.Equal(t, "/relax", suite.Scenarios[0].Steps[0].URL)
}

func TestGenerateSteps_GivesUp(t *testing.T) {
	p := &fakeProvider{replies: []string{"sorry"}}
	_, err := NewGenerator(p).GenerateSteps(context.Background(), relaxPage, "title")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse fake response")
	assert.Len(t, p.users, MaxAttempts)
}

func TestGenerateSteps_ProviderError(t *testing.T) {
	p := &fakeProvider{err: errors.New("rate limited")}
	_, err := NewGenerator(p).GenerateSteps(context.Background(), relaxPage, "title")
	assert.EqualError(t, err, "rate limited")
}

func TestGenerateSuite_NameFallsBackToHost(t *testing.T) {
	p := &fakeProvider{replies: []string{`[{"assertText": "hello"}]`}}
	suite, err := NewGenerator(p).GenerateSuite(context.Background(), &crawler.PageMap{URL: "http://relax.test/x"}, "hello")
	require.NoError(t, err)
	assert.Equal(t, "relax.test", suite.Name)
}

func TestEncodeSuite_RoundTrips(t *testing.T) {
	p := &fakeProvider{replies: []string{relaxReply}}
	suite, err := NewGenerator(p).GenerateSuite(context.Background(), relaxPage, "join")
	require.NoError(t, err)

	data, err := EncodeSuite(suite)
	require.NoError(t, err)
	assert.Contains(t, string(data), "suite: RelaX - relational algebra calculator")

	parsed, err := scenario.Parse(data, "generated.yaml")
	require.NoError(t, err)
	require.Len(t, parsed.Scenarios, 1)
	assert.Equal(t, suite.Scenarios[0].Steps[1].Selector, parsed.Scenarios[0].Steps[1].Selector)
	assert.Equal(t, suite.Scenarios[0].Steps[2].Text, parsed.Scenarios[0].Steps[2].Text)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider("gemini", "")
	assert.EqualError(t, err, "unknown provider: gemini (supported: claude, openai)")

	t.Setenv("WEBSCENARIO_ANTHROPIC_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err = NewProvider("claude", "")
	assert.EqualError(t, err, "WEBSCENARIO_ANTHROPIC_KEY or ANTHROPIC_API_KEY environment variable required")

	t.Setenv("OPENAI_API_KEY", "sk-test")
	p, err := NewProvider("openai", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}
