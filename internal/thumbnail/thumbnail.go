package thumbnail

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// DefaultWidth is the target width of generated thumbnails; height follows
// the source aspect ratio.
const DefaultWidth = 320

// FromImage decodes the source image and returns a JPEG thumbnail resized to
// width. Width <= 0 falls back to DefaultWidth.
func FromImage(data []byte, width int) ([]byte, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("thumbnail: decode: %w", err)
	}
	small := imaging.Resize(img, width, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, small, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("thumbnail: encode: %w", err)
	}
	return buf.Bytes(), nil
}
