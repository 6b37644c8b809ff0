package scenario

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/v0xg/webscenario/internal/assert"
	"github.com/v0xg/webscenario/internal/browser"
)

// StepKind tags a Step variant.
type StepKind string

const (
	Navigate      StepKind = "navigate"
	Click         StepKind = "click"
	Fill          StepKind = "fill"
	AssertTitle   StepKind = "assertTitle"
	AssertText    StepKind = "assertText"
	AssertVisible StepKind = "assertVisible"
)

var stepKinds = []StepKind{Navigate, Click, Fill, AssertTitle, AssertText, AssertVisible}

// Step is one instruction of a scenario. Only the fields of its Kind are set.
//
// In YAML a step is a single-key mapping:
//
//	- navigate: /relax
//	- click: {role: button, name: Get Started}
//	- fill: {selector: {role: textbox}, text: R join S}
//	- assertTitle: /RelaX/
//	- assertText: "4'd''f'200"
//	- assertVisible: {role: button, name: execute query}
type Step struct {
	Kind     StepKind
	URL      string
	Selector browser.Selector
	Text     string
	Pattern  assert.Pattern
	// Line is the source line in the suite file, 0 when built in code.
	Line int
}

// IsAction reports whether the step changes the page rather than checking it.
func (s Step) IsAction() bool {
	return s.Kind == Navigate || s.Kind == Click || s.Kind == Fill
}

func (s Step) String() string {
	switch s.Kind {
	case Navigate:
		return "navigate " + s.URL
	case Click:
		return "click " + s.Selector.String()
	case Fill:
		return fmt.Sprintf("fill %s with %q", s.Selector, s.Text)
	case AssertTitle:
		return "assert title " + s.Pattern.String()
	case AssertText:
		return "assert text " + s.Pattern.String()
	case AssertVisible:
		return "assert visible " + s.Selector.String()
	default:
		return "<invalid step>"
	}
}

func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: step must be a mapping with exactly one of: %s", node.Line, kindList())
	}
	key, value := node.Content[0], node.Content[1]

	step := Step{Kind: StepKind(key.Value), Line: key.Line}
	switch step.Kind {
	case Navigate:
		if value.Kind != yaml.ScalarNode || strings.TrimSpace(value.Value) == "" {
			return fmt.Errorf("line %d: navigate needs a non-empty url", value.Line)
		}
		step.URL = value.Value
	case Click, AssertVisible:
		sel, err := decodeSelector(value)
		if err != nil {
			return err
		}
		step.Selector = sel
	case Fill:
		var raw struct {
			Selector yaml.Node `yaml:"selector"`
			Text     *string   `yaml:"text"`
		}
		if err := decodeStrict(value, []string{"selector", "text"}, &raw); err != nil {
			return err
		}
		if raw.Selector.Kind == 0 {
			return fmt.Errorf("line %d: fill needs a selector", value.Line)
		}
		if raw.Text == nil {
			return fmt.Errorf("line %d: fill needs text", value.Line)
		}
		sel, err := decodeSelector(&raw.Selector)
		if err != nil {
			return err
		}
		step.Selector = sel
		step.Text = *raw.Text
	case AssertTitle, AssertText:
		if err := value.Decode(&step.Pattern); err != nil {
			return err
		}
	default:
		return fmt.Errorf("line %d: unknown step %q (expected one of: %s)", key.Line, key.Value, kindList())
	}

	*s = step
	return nil
}

func (s Step) MarshalYAML() (interface{}, error) {
	var value interface{}
	switch s.Kind {
	case Navigate:
		value = s.URL
	case Click, AssertVisible:
		value = encodeSelector(s.Selector)
	case Fill:
		value = struct {
			Selector interface{} `yaml:"selector"`
			Text     string      `yaml:"text"`
		}{encodeSelector(s.Selector), s.Text}
	case AssertTitle, AssertText:
		value = s.Pattern.String()
	default:
		return nil, fmt.Errorf("cannot encode step kind %q", s.Kind)
	}
	return map[string]interface{}{string(s.Kind): value}, nil
}

func kindList() string {
	names := make([]string, len(stepKinds))
	for i, k := range stepKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

type selectorYAML struct {
	Role    string `yaml:"role,omitempty"`
	Name    string `yaml:"name,omitempty"`
	Text    string `yaml:"text,omitempty"`
	CSS     string `yaml:"css,omitempty"`
	Exact   *bool  `yaml:"exact,omitempty"`
	HasText string `yaml:"hasText,omitempty"`
	Nth     *int   `yaml:"nth,omitempty"`
}

var selectorKeys = []string{"role", "name", "text", "css", "exact", "hasText", "nth"}

// decodeSelector accepts a bare CSS string or a selector mapping.
func decodeSelector(node *yaml.Node) (browser.Selector, error) {
	if node.Kind == yaml.ScalarNode {
		sel := browser.CSS(node.Value)
		if err := sel.Validate(); err != nil {
			return browser.Selector{}, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return sel, nil
	}

	var raw selectorYAML
	if err := decodeStrict(node, selectorKeys, &raw); err != nil {
		return browser.Selector{}, err
	}

	set := 0
	for _, v := range []string{raw.Role, raw.Text, raw.CSS} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return browser.Selector{}, fmt.Errorf("line %d: selector needs exactly one of role, text or css", node.Line)
	}

	var sel browser.Selector
	switch {
	case raw.Role != "":
		sel = browser.Role(raw.Role, raw.Name)
	case raw.Text != "":
		sel = browser.Text(raw.Text)
	default:
		sel = browser.CSS(raw.CSS)
	}
	if raw.Name != "" && sel.Kind != browser.ByRole {
		return browser.Selector{}, fmt.Errorf("line %d: name only applies to role selectors", node.Line)
	}
	if raw.Exact != nil {
		if sel.Kind == browser.ByCSS {
			return browser.Selector{}, fmt.Errorf("line %d: exact does not apply to css selectors", node.Line)
		}
		sel.Exact = *raw.Exact
	}
	sel.HasText = raw.HasText
	sel.Nth = raw.Nth

	if err := sel.Validate(); err != nil {
		return browser.Selector{}, fmt.Errorf("line %d: %w", node.Line, err)
	}
	return sel, nil
}

func encodeSelector(sel browser.Selector) interface{} {
	if sel.Kind == browser.ByCSS && sel.HasText == "" && sel.Nth == nil {
		return sel.CSS
	}
	raw := selectorYAML{HasText: sel.HasText, Nth: sel.Nth}
	switch sel.Kind {
	case browser.ByRole:
		raw.Role, raw.Name = sel.Role, sel.Name
		if !sel.Exact {
			f := false
			raw.Exact = &f
		}
	case browser.ByText:
		raw.Text = sel.Text
		if sel.Exact {
			t := true
			raw.Exact = &t
		}
	default:
		raw.CSS = sel.CSS
	}
	return raw
}

// decodeStrict decodes a mapping node, rejecting keys outside allowed.
// Node.Decode does not inherit the parent decoder's KnownFields setting.
func decodeStrict(node *yaml.Node, allowed []string, v interface{}) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	known := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		known[k] = true
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k := node.Content[i]
		if !known[k.Value] {
			sorted := append([]string(nil), allowed...)
			sort.Strings(sorted)
			return fmt.Errorf("line %d: field %s not found (allowed: %s)", k.Line, k.Value, strings.Join(sorted, ", "))
		}
	}
	return node.Decode(v)
}
