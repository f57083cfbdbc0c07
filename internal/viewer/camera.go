package viewer

import (
	"math"

	"asset-studio/internal/mathutil"
)

// Camera is a perspective camera.
type Camera struct {
	FovY   float64 // radians
	Aspect float64
	Near   float64
	Far    float64
}

// NewCamera returns a 60° camera suited to a unit-radius scene.
func NewCamera(aspect float64) Camera {
	return Camera{FovY: mathutil.Deg2Rad(60), Aspect: aspect, Near: 0.01, Far: 100}
}

// Projection returns the camera's projection matrix.
func (c Camera) Projection() mathutil.Mat4 {
	return mathutil.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

// OrbitControls orbit a camera around a target on a sphere, with damping.
type OrbitControls struct {
	Target      mathutil.Vec3
	Azimuth     float64 // around +Y
	Polar       float64 // from +Y, in (0, π)
	Distance    float64
	MinDistance float64
	MaxDistance float64
	RotateSpeed float64 // radians per pixel
	ZoomSpeed   float64
	Damping     float64 // fraction of velocity removed per update
	AutoRotate  float64 // radians per update

	home   [3]float64
	vAz    float64
	vPolar float64
}

// NewOrbitControls places the camera at distance looking at the origin.
func NewOrbitControls(distance float64) *OrbitControls {
	c := &OrbitControls{
		Azimuth:     0,
		Polar:       math.Pi / 2,
		Distance:    distance,
		MinDistance: 1.2,
		MaxDistance: 20,
		RotateSpeed: 0.01,
		ZoomSpeed:   0.001,
		Damping:     0.1,
	}
	c.home = [3]float64{c.Azimuth, c.Polar, c.Distance}
	return c
}

// Handle applies an input event.
func (c *OrbitControls) Handle(ev InputEvent) {
	switch ev.Kind {
	case InputDrag:
		c.vAz -= ev.DX * c.RotateSpeed
		c.vPolar -= ev.DY * c.RotateSpeed
	case InputWheel:
		c.Distance = mathutil.Clamp(c.Distance*(1+ev.Delta*c.ZoomSpeed), c.MinDistance, c.MaxDistance)
	case InputReset:
		c.Azimuth, c.Polar, c.Distance = c.home[0], c.home[1], c.home[2]
		c.vAz, c.vPolar = 0, 0
	}
}

// Update integrates pending rotation and returns whether the camera moved.
func (c *OrbitControls) Update() bool {
	moved := c.vAz != 0 || c.vPolar != 0 || c.AutoRotate != 0
	c.Azimuth += c.vAz + c.AutoRotate
	c.Polar = mathutil.Clamp(c.Polar+c.vPolar, 1e-3, math.Pi-1e-3)

	keep := 1 - c.Damping
	c.vAz *= keep
	c.vPolar *= keep
	if math.Abs(c.vAz) < 1e-6 {
		c.vAz = 0
	}
	if math.Abs(c.vPolar) < 1e-6 {
		c.vPolar = 0
	}
	return moved
}

// Eye returns the camera position: +Z at Distance, tilted by the polar angle
// and turned by the azimuth.
func (c *OrbitControls) Eye() mathutil.Vec3 {
	r := mathutil.Mat3Mul(mathutil.RotY(c.Azimuth), mathutil.RotX(c.Polar-math.Pi/2))
	return c.Target.Add(r.MulVec3(mathutil.Vec3{0, 0, c.Distance}))
}

// View returns the view matrix for the current orbit.
func (c *OrbitControls) View() mathutil.Mat4 {
	return mathutil.LookAt(c.Eye(), c.Target, mathutil.Vec3{0, 1, 0})
}
