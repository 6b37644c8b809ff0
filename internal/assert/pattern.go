// Package assert evaluates page predicates with bounded polling.
package assert

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/v0xg/webscenario/internal/browser"
)

// Pattern is either a regular expression written as /body/flags or a
// literal string.
type Pattern struct {
	raw     string
	re      *regexp.Regexp
	literal string
}

// ParsePattern parses s. The only supported regex flag is i.
func ParsePattern(s string) (Pattern, error) {
	if strings.TrimSpace(s) == "" {
		return Pattern{}, errors.New("pattern must not be empty")
	}
	if strings.HasPrefix(s, "/") {
		if end := strings.LastIndex(s, "/"); end > 0 {
			body, flags := s[1:end], s[end+1:]
			if body == "" {
				return Pattern{}, fmt.Errorf("pattern %q: empty regular expression", s)
			}
			for _, f := range flags {
				if f != 'i' {
					return Pattern{}, fmt.Errorf("pattern %q: unsupported flag %q", s, f)
				}
			}
			expr := body
			if strings.Contains(flags, "i") {
				expr = "(?i)" + body
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				return Pattern{}, fmt.Errorf("pattern %q: %w", s, err)
			}
			return Pattern{raw: s, re: re}, nil
		}
	}
	return Pattern{raw: s, literal: s}, nil
}

// MustPattern is ParsePattern for constants; it panics on error.
func MustPattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) IsRegex() bool { return p.re != nil }

func (p Pattern) String() string { return p.raw }

// MatchWhole applies title semantics: a regex is searched for, a literal
// must equal the whitespace-normalised value.
func (p Pattern) MatchWhole(s string) bool {
	if p.re != nil {
		return p.re.MatchString(s)
	}
	return browser.NormalizeSpace(s) == browser.NormalizeSpace(p.literal)
}

// MatchWithin applies text semantics: a regex is searched for, a literal
// must be contained in the whitespace-normalised value.
func (p Pattern) MatchWithin(s string) bool {
	if p.re != nil {
		return p.re.MatchString(s)
	}
	return strings.Contains(browser.NormalizeSpace(s), browser.NormalizeSpace(p.literal))
}

func (p Pattern) describe(whole bool) string {
	switch {
	case p.re != nil:
		return "matches " + p.raw
	case whole:
		return "equals " + strconv.Quote(p.literal)
	default:
		return "contains " + strconv.Quote(p.literal)
	}
}

func (p *Pattern) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: pattern must be a string", value.Line)
	}
	parsed, err := ParsePattern(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*p = parsed
	return nil
}

func (p Pattern) MarshalYAML() (interface{}, error) {
	return p.raw, nil
}

func (p Pattern) MarshalText() ([]byte, error) {
	return []byte(p.raw), nil
}
