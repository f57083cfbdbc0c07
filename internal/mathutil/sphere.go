package mathutil

import "math"

// Sphere is a bounding sphere.
type Sphere struct {
	Center Vec3
	Radius float64
}

// BoundingSphere returns the sphere centred on the axis-aligned bounding box
// of points whose radius reaches the farthest point.
func BoundingSphere(points []Vec3) Sphere {
	if len(points) == 0 {
		return Sphere{}
	}
	lo := Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, p := range points {
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], p[k])
			hi[k] = math.Max(hi[k], p[k])
		}
	}
	center := lo.Add(hi).Scale(0.5)

	var maxSq float64
	for _, p := range points {
		d := p.Sub(center)
		if sq := d.Dot(d); sq > maxSq {
			maxSq = sq
		}
	}
	return Sphere{Center: center, Radius: math.Sqrt(maxSq)}
}

// NormalizeToUnitSphere translates points so the bounding-sphere center sits at
// the origin and scales them uniformly by 1/radius. It returns the sphere of
// the input. Degenerate (single point) input is only translated.
func NormalizeToUnitSphere(points []Vec3) Sphere {
	s := BoundingSphere(points)
	scale := 1.0
	if s.Radius > 1e-12 {
		scale = 1 / s.Radius
	}
	for i := range points {
		points[i] = points[i].Sub(s.Center).Scale(scale)
	}
	return s
}
