package gifgen

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/webscenario/internal/overlay"
)

func solid(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestEncode(t *testing.T) {
	frames := []Frame{
		{Image: solid(40, 20, color.RGBA{255, 0, 0, 255}), Delay: 500 * time.Millisecond},
		{Image: solid(40, 20, color.RGBA{0, 255, 0, 255}), Delay: time.Second},
		{Image: solid(40, 20, color.RGBA{0, 0, 255, 255}), Delay: time.Millisecond},
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, frames))

	g, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	require.Len(t, g.Image, 3)
	assert.Equal(t, []int{50, 100, 2}, g.Delay)
	assert.Equal(t, 0, g.LoopCount)
	assert.Equal(t, image.Rect(0, 0, 40, 20), g.Image[0].Bounds())
}

func TestEncode_NoFrames(t *testing.T) {
	assert.Error(t, Encode(&bytes.Buffer{}, nil))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.gif")
	size, err := WriteFile(path, []Frame{{Image: solid(10, 10, color.RGBA{1, 2, 3, 255})}})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), size)
}

func TestFit(t *testing.T) {
	img, scale := Fit(solid(1600, 900, color.RGBA{A: 255}), 800)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 450, img.Bounds().Dy())
	assert.InDelta(t, 0.5, scale, 1e-9)

	small := solid(300, 200, color.RGBA{A: 255})
	img, scale = Fit(small, 800)
	assert.Same(t, small, img)
	assert.Equal(t, 1.0, scale)
}

func TestGeneratePalette_ReservesOverlayColours(t *testing.T) {
	p := generatePalette([]Frame{{Image: solid(8, 8, color.RGBA{10, 20, 30, 255})}})
	require.Len(t, p, 256)
	for _, c := range overlay.Palette {
		assert.Contains(t, p, c)
	}
	assert.Contains(t, p, color.Color(color.RGBA{8, 16, 24, 255}))
}
