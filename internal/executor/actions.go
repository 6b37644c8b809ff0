package executor

import "github.com/v0xg/webscenario/internal/browser"

// Action names used in diagnostics.
const (
	ActionNavigate = "navigate"
	ActionClick    = "click"
	ActionFill     = "fill"
)

// Result describes the visible effect of one performed action.
type Result struct {
	Action string
	// URL is the absolute address loaded by a navigation.
	URL string
	// Point is where a click or fill landed; nil for navigation.
	Point *browser.Point
}
