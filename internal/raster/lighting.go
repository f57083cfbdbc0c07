package raster

import (
	"math"

	"asset-studio/internal/mathutil"
)

// DirectionalLight shines uniformly along Dir (pointing from the surface
// towards the light).
type DirectionalLight struct {
	Dir       mathutil.Vec3
	Intensity float64
}

// LightConfig is an ambient term plus a key and a fill directional light.
type LightConfig struct {
	Ambient   float64
	Key       DirectionalLight
	Fill      DirectionalLight
	Exposure  float64
	InvGamma  float64
	BaseColor [3]uint8
}

// DefaultLightConfig returns the viewer's standard lighting rig.
func DefaultLightConfig() LightConfig {
	return LightConfig{
		Ambient: 0.45,
		Key: DirectionalLight{
			Dir:       mathutil.Vec3{1, 1, 1}.Normalize(),
			Intensity: 0.85,
		},
		Fill: DirectionalLight{
			Dir:       mathutil.Vec3{-1, -0.5, -1}.Normalize(),
			Intensity: 0.35,
		},
		Exposure:  1.05,
		InvGamma:  1.0 / 2.2,
		BaseColor: [3]uint8{160, 170, 190},
	}
}

// Shade returns the combined lighting scalar for a unit normal.
func (lc *LightConfig) Shade(normal mathutil.Vec3) float64 {
	s := lc.Ambient
	if d := normal.Dot(lc.Key.Dir); d > 0 {
		s += d * lc.Key.Intensity
	}
	if d := normal.Dot(lc.Fill.Dir); d > 0 {
		s += d * lc.Fill.Intensity
	}
	return s
}

// Precomputed sRGB-to-linear lookup table (256 entries).
var srgbToLinear [256]float64

func init() {
	for i := 0; i < 256; i++ {
		srgbToLinear[i] = math.Pow(float64(i)/255.0, 2.2)
	}
}

// ACESTonemap applies ACES Filmic tone mapping to a linear value.
func ACESTonemap(x float64) float64 {
	return (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
}

// shadeColor lights an sRGB base color and returns the encoded result.
func (lc *LightConfig) shadeColor(shade float64) (uint8, uint8, uint8) {
	out := [3]uint8{}
	for k := 0; k < 3; k++ {
		lin := srgbToLinear[lc.BaseColor[k]] * shade * lc.Exposure
		out[k] = clamp255(math.Pow(ACESTonemap(lin), lc.InvGamma) * 255)
	}
	return out[0], out[1], out[2]
}
