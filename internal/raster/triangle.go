package raster

import "math"

// Vertex is a screen-space vertex: pixel X/Y, depth (larger is nearer) and
// the lighting scalar computed from its normal.
type Vertex struct {
	X, Y, Z float64
	Shade   float64
}

// RasterizeTriangle fills one triangle with z-buffering and Gouraud-shaded
// lighting. Zero allocations in the pixel loop.
func RasterizeTriangle(fb *FrameBuffer, v0, v1, v2 Vertex, lc *LightConfig) int {
	w, h := fb.Width, fb.Height

	minX := int(math.Floor(math.Min(math.Min(v0.X, v1.X), v2.X)))
	maxX := int(math.Ceil(math.Max(math.Max(v0.X, v1.X), v2.X)))
	minY := int(math.Floor(math.Min(math.Min(v0.Y, v1.Y), v2.Y)))
	maxY := int(math.Ceil(math.Max(math.Max(v0.Y, v1.Y), v2.Y)))

	if minX < 0 {
		minX = 0
	}
	if maxX >= w {
		maxX = w - 1
	}
	if minY < 0 {
		minY = 0
	}
	if maxY >= h {
		maxY = h - 1
	}
	if minX > maxX || minY > maxY {
		return 0
	}

	// Barycentric setup
	det := (v1.Y-v2.Y)*(v0.X-v2.X) + (v2.X-v1.X)*(v0.Y-v2.Y)
	if det > -1e-8 && det < 1e-8 {
		return 0
	}
	invDet := 1.0 / det

	dy12 := v1.Y - v2.Y
	dx21 := v2.X - v1.X
	dy20 := v2.Y - v0.Y
	dx02 := v0.X - v2.X

	written := 0
	for sy := minY; sy <= maxY; sy++ {
		dsy := float64(sy) + 0.5 - v2.Y
		rowOff := sy * w
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) + 0.5 - v2.X
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1.0 - w0 - w1

			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}

			z := w0*v0.Z + w1*v1.Z + w2*v2.Z
			zIdx := rowOff + sx
			if z <= fb.ZBuf[zIdx] {
				continue
			}
			fb.ZBuf[zIdx] = z

			shade := w0*v0.Shade + w1*v1.Shade + w2*v2.Shade
			r, g, b := lc.shadeColor(shade)

			pxIdx := zIdx * 4
			fb.Color[pxIdx] = r
			fb.Color[pxIdx+1] = g
			fb.Color[pxIdx+2] = b
			fb.Color[pxIdx+3] = 255
			written++
		}
	}
	return written
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
