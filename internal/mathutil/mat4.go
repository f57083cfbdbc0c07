package mathutil

import "math"

// Mat4 is a 4×4 matrix stored row-major.
type Mat4 [16]float64

func Mat4Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mat4Mul returns a × b.
func Mat4Mul(a, b Mat4) Mat4 {
	var m Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m[r*4+c] = a[r*4+0]*b[0*4+c] + a[r*4+1]*b[1*4+c] +
				a[r*4+2]*b[2*4+c] + a[r*4+3]*b[3*4+c]
		}
	}
	return m
}

// MulPoint transforms a 3D point (w=1) by the 4×4 matrix, ignoring w.
func (m Mat4) MulPoint(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2] + m[3],
		m[4]*v[0] + m[5]*v[1] + m[6]*v[2] + m[7],
		m[8]*v[0] + m[9]*v[1] + m[10]*v[2] + m[11],
	}
}

// Project transforms a point and performs the perspective divide.
// w is returned so callers can reject points behind the camera.
func (m Mat4) Project(v Vec3) (Vec3, float64) {
	w := m[12]*v[0] + m[13]*v[1] + m[14]*v[2] + m[15]
	p := m.MulPoint(v)
	if w == 0 {
		return p, 0
	}
	return Vec3{p[0] / w, p[1] / w, p[2] / w}, w
}

// Perspective builds a right-handed projection matrix mapping the view
// frustum to clip space. fovY is in radians.
func Perspective(fovY, aspect, near, far float64) Mat4 {
	f := 1 / math.Tan(fovY/2)
	nf := 1 / (near - far)
	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) * nf, 2 * far * near * nf,
		0, 0, -1, 0,
	}
}

// LookAt builds a view matrix for a camera at eye looking at target.
func LookAt(eye, target, up Vec3) Mat4 {
	z := eye.Sub(target).Normalize()
	x := up.Cross(z).Normalize()
	if x.Len() == 0 {
		// up is parallel to the view direction
		x = Vec3{1, 0, 0}
	}
	y := z.Cross(x)
	return Mat4{
		x[0], x[1], x[2], -x.Dot(eye),
		y[0], y[1], y[2], -y.Dot(eye),
		z[0], z[1], z[2], -z.Dot(eye),
		0, 0, 0, 1,
	}
}
