package browser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SelectorKind identifies how a selector finds elements.
type SelectorKind string

const (
	ByRole SelectorKind = "role"
	ByText SelectorKind = "text"
	ByCSS  SelectorKind = "css"
)

// Selector is a declarative description of one element.
//
// Role selectors match the accessible name by equality when Exact is set and
// by case-insensitive substring otherwise. Text selectors follow the same
// rule against the element's own text. HasText narrows any selector to
// elements whose text contains the value; Nth picks one of several matches.
type Selector struct {
	Kind    SelectorKind `json:"kind"`
	Role    string       `json:"role,omitempty"`
	Name    string       `json:"name,omitempty"`
	Text    string       `json:"text,omitempty"`
	CSS     string       `json:"css,omitempty"`
	Exact   bool         `json:"exact"`
	HasText string       `json:"hasText,omitempty"`
	Nth     *int         `json:"nth,omitempty"`
}

// Role returns an exact-name role selector.
func Role(role, name string) Selector {
	return Selector{Kind: ByRole, Role: role, Name: name, Exact: true}
}

// Text returns a substring text selector.
func Text(text string) Selector {
	return Selector{Kind: ByText, Text: text}
}

// CSS returns a CSS selector.
func CSS(css string) Selector {
	return Selector{Kind: ByCSS, CSS: css}
}

// WithHasText returns a copy narrowed to elements containing text.
func (s Selector) WithHasText(text string) Selector {
	s.HasText = text
	return s
}

// WithNth returns a copy that picks the n-th match.
func (s Selector) WithNth(n int) Selector {
	s.Nth = &n
	return s
}

// Partial returns a copy matching names or text by substring.
func (s Selector) Partial() Selector {
	s.Exact = false
	return s
}

// Validate checks that the selector is well formed.
func (s Selector) Validate() error {
	switch s.Kind {
	case ByRole:
		if s.Role == "" {
			return errors.New("role selector requires a role")
		}
	case ByText:
		if strings.TrimSpace(s.Text) == "" {
			return errors.New("text selector requires non-empty text")
		}
	case ByCSS:
		if strings.TrimSpace(s.CSS) == "" {
			return errors.New("css selector requires a non-empty css path")
		}
	case "":
		return errors.New("selector kind is required (role, text or css)")
	default:
		return fmt.Errorf("unknown selector kind %q", s.Kind)
	}
	if s.Nth != nil && *s.Nth < 0 {
		return fmt.Errorf("nth must be non-negative, got %d", *s.Nth)
	}
	return nil
}

// String renders the selector in a compact, Playwright-like notation used in
// diagnostics.
func (s Selector) String() string {
	var b strings.Builder
	switch s.Kind {
	case ByRole:
		b.WriteString("role=")
		b.WriteString(s.Role)
		if s.Name != "" {
			b.WriteString("[name=")
			b.WriteString(strconv.Quote(s.Name))
			if !s.Exact {
				b.WriteString("i")
			}
			b.WriteString("]")
		}
	case ByText:
		b.WriteString("text=")
		if s.Exact {
			b.WriteString(strconv.Quote(s.Text))
		} else {
			b.WriteString(s.Text)
		}
	case ByCSS:
		b.WriteString("css=")
		b.WriteString(s.CSS)
	default:
		b.WriteString("<invalid selector>")
	}
	if s.HasText != "" {
		b.WriteString(" >> has-text=")
		b.WriteString(strconv.Quote(s.HasText))
	}
	if s.Nth != nil {
		fmt.Fprintf(&b, " >> nth=%d", *s.Nth)
	}
	return b.String()
}

// NormalizeSpace collapses runs of whitespace and trims the ends, the way
// accessible names and text matching see content.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MatchName applies the name/text matching rule shared by every driver.
func MatchName(actual, want string, exact bool) bool {
	actual = NormalizeSpace(actual)
	want = NormalizeSpace(want)
	if exact {
		return actual == want
	}
	return strings.Contains(strings.ToLower(actual), strings.ToLower(want))
}
