package crawler

import (
	"fmt"
	"strings"

	"github.com/v0xg/webscenario/internal/browser"
)

// PageMap represents the analyzed structure of a web page
type PageMap struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Elements   []Element `json:"elements"`
	Navigation []NavItem `json:"navigation"`
	IsSPA      bool      `json:"isSPA"`
}

// Element represents an interactive element on the page
type Element struct {
	Role        string `json:"role,omitempty"`
	Name        string `json:"name,omitempty"`
	CSS         string `json:"css"`
	Type        string `json:"type"` // button, input type, link, select, checkbox, radio
	Text        string `json:"text,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// Selector returns the most robust selector for the element: its role and
// accessible name when it has both, its CSS path otherwise.
func (e Element) Selector() browser.Selector {
	if e.Role != "" && e.Name != "" {
		return browser.Role(e.Role, e.Name)
	}
	return browser.CSS(e.CSS)
}

// NavItem represents a navigation link
type NavItem struct {
	CSS  string `json:"css"`
	Text string `json:"text"`
	Href string `json:"href"`
}

// String is a short human summary, used in progress output.
func (m *PageMap) String() string {
	counts := map[string]int{}
	for _, e := range m.Elements {
		counts[e.Type]++
	}
	var parts []string
	for _, t := range []string{"button", "link", "text", "select", "checkbox", "radio"} {
		if counts[t] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[t], t))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d elements", len(m.Elements)))
	}
	return fmt.Sprintf("%q: %s", m.Title, strings.Join(parts, ", "))
}
