package imaging

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// ContentBounds returns the bounding box of pixels with non-zero alpha, or an
// empty rectangle for a fully transparent image.
func ContentBounds(img *image.NRGBA) image.Rectangle {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := b.Min.X; x < b.Max.X; x++ {
			if row[(x-b.Min.X)*4+3] == 0 {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// FrameContent crops img to its visible content and centers it on a
// transparent size×size canvas, scaled so the longer side spans fill of it.
func FrameContent(img *image.NRGBA, size int, fill float64) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, size, size))
	content := ContentBounds(img)
	if content.Empty() || size <= 0 {
		return canvas
	}
	if fill <= 0 || fill > 1 {
		fill = 1
	}

	cw, ch := content.Dx(), content.Dy()
	scale := float64(size) * fill / math.Max(float64(cw), float64(ch))
	w := max(1, int(float64(cw)*scale+0.5))
	h := max(1, int(float64(ch)*scale+0.5))

	x0, y0 := (size-w)/2, (size-h)/2
	dst := image.Rect(x0, y0, x0+w, y0+h)
	draw.CatmullRom.Scale(canvas, dst, img, content, draw.Src, nil)
	return canvas
}
