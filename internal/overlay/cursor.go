// Package overlay draws a pointer and click ripple onto recorded frames.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// CursorSize is the size of the cursor sprite
const CursorSize = 20

// RippleRadius is the radius of the click marker.
const RippleRadius = 15

var (
	outlineColor = color.RGBA{0, 0, 0, 255}
	fillColor    = color.RGBA{255, 255, 255, 255}
	// RippleColor marks the click point.
	RippleColor = color.RGBA{66, 133, 244, 255}
)

// Palette holds the colours the overlay draws with, so a quantiser can
// reserve them.
var Palette = color.Palette{outlineColor, fillColor, RippleColor}

// Cursor is a pointer position on a frame.
type Cursor struct {
	X, Y  int
	Click bool
}

// Glide returns n positions easing from one cursor to another, ending on to.
func Glide(from, to Cursor, n int) []Cursor {
	if n <= 0 {
		return nil
	}
	out := make([]Cursor, n)
	for i := 0; i < n; i++ {
		p := easeInOut(float64(i+1) / float64(n))
		out[i] = Cursor{
			X: from.X + int(math.Round(p*float64(to.X-from.X))),
			Y: from.Y + int(math.Round(p*float64(to.Y-from.Y))),
		}
	}
	return out
}

// easeInOut provides smooth acceleration and deceleration
func easeInOut(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}

// Draw returns a copy of frame with the cursor on top. frame is not modified.
func Draw(frame image.Image, pos Cursor) image.Image {
	bounds := frame.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, frame, bounds.Min, draw.Src)

	if pos.Click {
		drawClickRipple(result, pos.X, pos.Y)
	}
	drawCursor(result, pos.X, pos.Y)
	return result
}

// drawCursor draws a simple arrow cursor
func drawCursor(img *image.RGBA, x, y int) {
	cursorPoints := []struct{ dx, dy int }{
		{0, 0},
		{0, 16},
		{4, 12},
		{7, 18},
		{10, 17},
		{7, 11},
		{12, 11},
	}

	for dy := 0; dy < 18; dy++ {
		for dx := 0; dx < 13; dx++ {
			if isInsideCursor(dx, dy) {
				setPixelSafe(img, x+dx, y+dy, fillColor)
			}
		}
	}

	for i := 0; i < len(cursorPoints); i++ {
		p1 := cursorPoints[i]
		p2 := cursorPoints[(i+1)%len(cursorPoints)]
		drawLine(img, x+p1.dx, y+p1.dy, x+p2.dx, y+p2.dy, outlineColor)
	}
}

// isInsideCursor checks if a point is inside the cursor shape
func isInsideCursor(dx, dy int) bool {
	if dy < 0 || dy > 16 || dx < 0 {
		return false
	}
	if dy <= 11 {
		return dx <= dy*12/16
	}
	return dx <= 4
}

// drawLine draws a line between two points using Bresenham's algorithm
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		setPixelSafe(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// drawClickRipple draws a two-pixel ring around the click point.
func drawClickRipple(img *image.RGBA, x, y int) {
	for angle := 0.0; angle < 360; angle++ {
		rad := angle * math.Pi / 180
		for r := RippleRadius; r < RippleRadius+2; r++ {
			px := x + int(math.Round(float64(r)*math.Cos(rad)))
			py := y + int(math.Round(float64(r)*math.Sin(rad)))
			setPixelSafe(img, px, py, RippleColor)
		}
	}
}

func setPixelSafe(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{x, y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
