package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/v0xg/webscenario/internal/crawler"
	"github.com/v0xg/webscenario/internal/scenario"
)

// MaxAttempts bounds how often a provider is asked again after an unusable
// reply.
const MaxAttempts = 2

// Generator drafts suites from page maps.
type Generator struct {
	provider Provider
}

// NewGenerator returns a generator backed by p.
func NewGenerator(p Provider) *Generator {
	return &Generator{provider: p}
}

// GenerateSteps asks the provider for the steps that carry out prompt on the
// mapped page. An unusable reply is sent back once with the problem attached.
func (g *Generator) GenerateSteps(ctx context.Context, pm *crawler.PageMap, prompt string) ([]scenario.Step, error) {
	pageMapJSON, err := json.MarshalIndent(pm, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal page map: %w", err)
	}

	user := buildUserPrompt(string(pageMapJSON), prompt)
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		reply, err := g.provider.Complete(ctx, systemPrompt, user)
		if err != nil {
			return nil, err
		}
		steps, err := parseStepsJSON(reply)
		if err == nil {
			return steps, nil
		}
		lastErr = fmt.Errorf("parse %s response: %w\nResponse: %s", g.provider.Name(), err, reply)
		user = buildRetryPrompt(string(pageMapJSON), prompt, err)
	}
	return nil, lastErr
}

// GenerateSuite wraps generated steps into a one-scenario suite that starts by
// navigating to the crawled page.
func (g *Generator) GenerateSuite(ctx context.Context, pm *crawler.PageMap, prompt string) (*scenario.Suite, error) {
	steps, err := g.GenerateSteps(ctx, pm, prompt)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 || steps[0].Kind != scenario.Navigate {
		steps = append([]scenario.Step{{Kind: scenario.Navigate, URL: pm.URL}}, steps...)
	}

	name := pm.Title
	if name == "" {
		if u, err := url.Parse(pm.URL); err == nil && u.Host != "" {
			name = u.Host
		} else {
			name = "generated"
		}
	}
	suite := &scenario.Suite{
		Name:      name,
		Scenarios: []scenario.Scenario{{Name: strings.TrimSpace(prompt), Steps: steps}},
		Path:      pm.URL,
	}
	if err := scenario.Validate(suite); err != nil {
		return nil, err
	}
	return suite, nil
}

// EncodeSuite renders a suite as YAML.
func EncodeSuite(s *scenario.Suite) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseStepsJSON extracts a JSON array of steps from a response that may
// contain surrounding text, and decodes it with the suite file rules.
func parseStepsJSON(response string) ([]scenario.Step, error) {
	raw, err := extractArray(response)
	if err != nil {
		return nil, err
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var steps []scenario.Step
	if err := yaml.Unmarshal(compact.Bytes(), &steps); err != nil {
		return nil, err
	}
	for i, st := range steps {
		if st.Kind == "" {
			return nil, fmt.Errorf("steps[%d]: empty step", i)
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no steps in response")
	}
	return steps, nil
}

// extractArray returns the first balanced JSON array in s, skipping brackets
// inside strings.
func extractArray(s string) ([]byte, error) {
	start := strings.Index(s, "[")
	if start == -1 {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth == 0 {
				return []byte(s[start : i+1]), nil
			}
		}
	}
	return nil, fmt.Errorf("no matching closing bracket found")
}
