package report

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"

	"github.com/nfnt/resize"
)

// Thumbnail bounds.
const (
	thumbWidth  = 480
	thumbHeight = 270
)

// Thumbnail shrinks a PNG screenshot and returns it as a data URI.
func Thumbnail(screenshot []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(screenshot))
	if err != nil {
		return "", err
	}
	thumb := resize.Thumbnail(thumbWidth, thumbHeight, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
