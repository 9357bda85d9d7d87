// Package imaging shrinks captured photos so documents stay under the
// remote store's per-document size ceiling.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoding for camera screenshots
	"strings"

	xdraw "golang.org/x/image/draw"
)

// DefaultMaxDimension caps the longest image edge before re-encoding.
const DefaultMaxDimension = 800

// Compressor re-encodes data-URI images as JPEG, downscaling first and then
// walking the quality setting down until the payload fits.
type Compressor struct {
	MaxDimension int
}

// New returns a Compressor with the default dimension cap.
func New() *Compressor {
	return &Compressor{MaxDimension: DefaultMaxDimension}
}

// NeedsCompression reports whether a payload should be re-encoded. Plain
// URLs (already offloaded to blob storage) and payloads under the ceiling
// pass through untouched.
func NeedsCompression(payload string, maxKB int) bool {
	if strings.HasPrefix(payload, "http") {
		return false
	}
	return len(payload) > maxKB*1024
}

// Compress returns a data URI of at most roughly maxKB. When even the lowest
// quality setting cannot reach the target, the smallest attempt is returned
// rather than an error; the caller decides whether to drop the field.
func (c *Compressor) Compress(dataURI string, maxKB int) (string, error) {
	if !NeedsCompression(dataURI, maxKB) {
		return dataURI, nil
	}

	raw, err := decodeDataURI(dataURI)
	if err != nil {
		return "", err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}

	img = c.downscale(img)

	var smallest string
	for quality := 80; quality >= 10; quality -= 10 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", fmt.Errorf("encoding jpeg at quality %d: %w", quality, err)
		}
		encoded := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
		if len(encoded) <= maxKB*1024 {
			return encoded, nil
		}
		smallest = encoded
	}

	return smallest, nil
}

// downscale resizes so the longest edge is at most MaxDimension, preserving
// the aspect ratio.
func (c *Compressor) downscale(img image.Image) image.Image {
	maxDim := c.MaxDimension
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= maxDim && height <= maxDim {
		return img
	}

	if width > height {
		height = height * maxDim / width
		width = maxDim
	} else {
		width = width * maxDim / height
		height = maxDim
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

// decodeDataURI extracts the raw bytes of a base64 data URI.
func decodeDataURI(dataURI string) ([]byte, error) {
	if !strings.HasPrefix(dataURI, "data:") {
		return nil, fmt.Errorf("not a data URI")
	}
	idx := strings.Index(dataURI, ";base64,")
	if idx < 0 {
		return nil, fmt.Errorf("data URI is not base64 encoded")
	}
	raw, err := base64.StdEncoding.DecodeString(dataURI[idx+len(";base64,"):])
	if err != nil {
		return nil, fmt.Errorf("decoding base64 payload: %w", err)
	}
	return raw, nil
}
