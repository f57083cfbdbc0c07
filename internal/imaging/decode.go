// Package imaging decodes, scales and encodes the raster data carried by
// image payloads and produced by the 3D viewer.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"

	_ "github.com/ftrvxmtrx/tga"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decoded is a decoded raster with its sniffed format.
type Decoded struct {
	Image  *image.NRGBA
	Format string // registered decoder name, e.g. "png"
	MIME   string
}

// Decode reads any registered raster format into NRGBA.
func Decode(raw []byte) (*Decoded, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	return &Decoded{
		Image:  ToNRGBA(img),
		Format: format,
		MIME:   DetectMIME(raw),
	}, nil
}

// DetectMIME sniffs the content type of raw bytes.
func DetectMIME(raw []byte) string {
	return mimetype.Detect(raw).String()
}

// ToNRGBA converts any image to NRGBA format with its origin at (0,0).
func ToNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
