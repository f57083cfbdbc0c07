package raster

import (
	"asset-studio/internal/mathutil"
)

// Mesh is an indexed triangle mesh prepared for rendering.
type Mesh struct {
	Positions []mathutil.Vec3
	Normals   []mathutil.Vec3
	Faces     [][3]uint32
}

// ComputeVertexNormals accumulates area-weighted face normals per vertex.
func ComputeVertexNormals(positions []mathutil.Vec3, faces [][3]uint32) []mathutil.Vec3 {
	normals := make([]mathutil.Vec3, len(positions))
	n := uint32(len(positions))
	for _, f := range faces {
		if f[0] >= n || f[1] >= n || f[2] >= n {
			continue
		}
		p0, p1, p2 := positions[f[0]], positions[f[1]], positions[f[2]]
		// Cross product length is twice the area, which gives the weighting.
		fn := p1.Sub(p0).Cross(p2.Sub(p0))
		for _, i := range f {
			normals[i] = normals[i].Add(fn)
		}
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	return normals
}

// Stats describes one rendered frame.
type Stats struct {
	Triangles int
	Pixels    int
}

// Render clears fb and draws m with the given model, view and projection
// matrices. Lights are fixed in world space; normals are rotated by model.
func Render(fb *FrameBuffer, m *Mesh, model, view, proj mathutil.Mat4, lc *LightConfig) Stats {
	fb.Clear()
	if m == nil || len(m.Positions) == 0 {
		return Stats{}
	}

	mvp := mathutil.Mat4Mul(proj, mathutil.Mat4Mul(view, model))
	normalRot := model.Upper3()
	halfW := float64(fb.Width) / 2
	halfH := float64(fb.Height) / 2

	verts := make([]Vertex, len(m.Positions))
	visible := make([]bool, len(m.Positions))
	for i, p := range m.Positions {
		ndc, w := mvp.Project(p)
		if w <= 0 {
			continue
		}
		visible[i] = true
		shade := lc.Ambient
		if i < len(m.Normals) {
			shade = lc.Shade(normalRot.MulVec3(m.Normals[i]).Normalize())
		}
		verts[i] = Vertex{
			X:     (ndc[0] + 1) * halfW,
			Y:     (1 - ndc[1]) * halfH,
			Z:     -ndc[2],
			Shade: shade,
		}
	}

	var st Stats
	n := uint32(len(verts))
	for _, f := range m.Faces {
		if f[0] >= n || f[1] >= n || f[2] >= n {
			continue
		}
		if !visible[f[0]] || !visible[f[1]] || !visible[f[2]] {
			continue
		}
		if px := RasterizeTriangle(fb, verts[f[0]], verts[f[1]], verts[f[2]], lc); px > 0 {
			st.Triangles++
			st.Pixels += px
		}
	}
	return st
}
