package mathutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestProperty_NormalizeToUnitSphere(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 64).Draw(rt, "n")
		points := make([]Vec3, n)
		for i := range points {
			for k := 0; k < 3; k++ {
				points[i][k] = rapid.Float64Range(-1e4, 1e4).Draw(rt, "coord")
			}
		}
		src := BoundingSphere(points)
		if src.Radius < 1e-6 {
			rt.Skip("degenerate point set")
		}

		got := NormalizeToUnitSphere(points)
		assert.Equal(rt, src, got)

		after := BoundingSphere(points)
		assert.InDelta(rt, 1.0, after.Radius, 1e-9)
		for k := 0; k < 3; k++ {
			assert.InDelta(rt, 0.0, after.Center[k], 1e-9)
		}
		for _, p := range points {
			assert.LessOrEqual(rt, p.Len(), 1+1e-9)
			assert.False(rt, math.IsNaN(p.Len()))
		}
	})
}
