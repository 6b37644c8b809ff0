// Package gifgen encodes recorded frames as an animated GIF.
package gifgen

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/nfnt/resize"

	"github.com/v0xg/webscenario/internal/overlay"
)

// DefaultMaxWidth bounds frame width when none is configured.
const DefaultMaxWidth = 800

// Frame is one image shown for Delay.
type Frame struct {
	Image image.Image
	Delay time.Duration
}

// Fit scales img down to maxWidth, keeping its aspect ratio, and returns the
// factor applied. Narrower images are returned as is with factor 1.
func Fit(img image.Image, maxWidth uint) (image.Image, float64) {
	if maxWidth == 0 {
		maxWidth = DefaultMaxWidth
	}
	w := img.Bounds().Dx()
	if w <= int(maxWidth) {
		return img, 1
	}
	scale := float64(maxWidth) / float64(w)
	return resize.Resize(maxWidth, 0, img, resize.Lanczos3), scale
}

// Encode writes frames as a looping GIF.
func Encode(w io.Writer, frames []Frame) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to encode")
	}

	palette := generatePalette(frames)
	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: 0,
	}
	for i, f := range frames {
		b := f.Image.Bounds()
		paletted := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette)
		draw.FloydSteinberg.Draw(paletted, paletted.Bounds(), f.Image, b.Min)
		g.Image[i] = paletted
		g.Delay[i] = hundredths(f.Delay)
	}
	return gif.EncodeAll(w, g)
}

// WriteFile encodes frames to path, creating its directory, and returns the
// file size.
func WriteFile(path string, frames []Frame) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := Encode(f, frames); err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// hundredths converts d to GIF delay units, never below the 20ms most
// viewers honour.
func hundredths(d time.Duration) int {
	n := int(d / (10 * time.Millisecond))
	if n < 2 {
		return 2
	}
	return n
}

// generatePalette builds a 256 colour palette from the most frequent colours
// across all frames. Overlay colours are always present.
func generatePalette(frames []Frame) color.Palette {
	colorMap := make(map[color.RGBA]int)

	// Sample every 4th pixel, and quantise to 5 bits per channel so near
	// shades share an entry.
	const step = 4
	for _, f := range frames {
		b := f.Image.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y += step {
			for x := b.Min.X; x < b.Max.X; x += step {
				r, g, bl, _ := f.Image.At(x, y).RGBA()
				c := color.RGBA{
					R: uint8(r>>8) &^ 7,
					G: uint8(g>>8) &^ 7,
					B: uint8(bl>>8) &^ 7,
					A: 255,
				}
				colorMap[c]++
			}
		}
	}

	type colorCount struct {
		c     color.RGBA
		count int
	}
	colors := make([]colorCount, 0, len(colorMap))
	for c, count := range colorMap {
		colors = append(colors, colorCount{c, count})
	}
	sort.Slice(colors, func(i, j int) bool {
		if colors[i].count != colors[j].count {
			return colors[i].count > colors[j].count
		}
		a, b := colors[i].c, colors[j].c
		return uint32(a.R)<<16|uint32(a.G)<<8|uint32(a.B) < uint32(b.R)<<16|uint32(b.G)<<8|uint32(b.B)
	})

	palette := make(color.Palette, 0, 256)
	palette = append(palette, overlay.Palette...)
	for i := 0; i < len(colors) && len(palette) < 256; i++ {
		palette = append(palette, colors[i].c)
	}
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{gray, gray, gray, 255})
	}
	return palette
}
