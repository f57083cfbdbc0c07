package payload

import (
	"encoding/json"
	"fmt"
	"math"

	"asset-studio/internal/apperr"
	"asset-studio/internal/modality"
)

// Geometry is an indexed triangle mesh.
type Geometry struct {
	Vertices [][3]float32 `json:"vertices"`
	Faces    [][3]uint32  `json:"faces"`
}

// MeshSummary is the statistics-only shape the backend uses for mesh previews.
type MeshSummary struct {
	Vertices int           `json:"vertices"`
	Faces    int           `json:"faces"`
	Bounds   [2][3]float64 `json:"bounds"`
}

// MeshData is a decoded mesh payload. Exactly one of Geometry and Summary is set.
type MeshData struct {
	Geometry *Geometry
	Summary  *MeshSummary
}

type meshProbe struct {
	Vertices json.RawMessage `json:"vertices"`
	Faces    json.RawMessage `json:"faces"`
	Bounds   json.RawMessage `json:"bounds"`
}

// ParseMesh decodes a mesh payload. Malformed input yields a PayloadParse error.
func ParseMesh(p Payload) (*MeshData, error) {
	if err := p.Expect(modality.Mesh); err != nil {
		return nil, err
	}

	var probe meshProbe
	if err := json.Unmarshal([]byte(p.Data), &probe); err != nil {
		return nil, apperr.PayloadParse("mesh payload is not a JSON object").WithCause(err)
	}
	if len(probe.Vertices) == 0 || string(probe.Vertices) == "null" {
		return nil, apperr.PayloadParse("mesh payload has no vertices field")
	}

	// Previews carry counts instead of arrays.
	if probe.Vertices[0] != '[' {
		var s MeshSummary
		if err := json.Unmarshal([]byte(p.Data), &s); err != nil {
			return nil, apperr.PayloadParse("malformed mesh summary").WithCause(err)
		}
		return &MeshData{Summary: &s}, nil
	}

	var g Geometry
	if err := json.Unmarshal([]byte(p.Data), &g); err != nil {
		return nil, apperr.PayloadParse("malformed mesh geometry").WithCause(err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &MeshData{Geometry: &g}, nil
}

// Validate checks that every face references an existing vertex and every
// coordinate is finite.
func (g *Geometry) Validate() error {
	if len(g.Vertices) == 0 {
		return apperr.PayloadParse("mesh has no vertices")
	}
	for i, v := range g.Vertices {
		for _, c := range v {
			f := float64(c)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return apperr.PayloadParse(fmt.Sprintf("vertex %d has a non-finite coordinate", i))
			}
		}
	}
	n := uint32(len(g.Vertices))
	for i, f := range g.Faces {
		if f[0] >= n || f[1] >= n || f[2] >= n {
			return apperr.PayloadParse(fmt.Sprintf("face %d references a vertex out of range", i))
		}
	}
	return nil
}

// Summarize computes the statistics the backend reports for previews.
func (g *Geometry) Summarize() MeshSummary {
	s := MeshSummary{Vertices: len(g.Vertices), Faces: len(g.Faces)}
	if len(g.Vertices) == 0 {
		return s
	}
	for k := 0; k < 3; k++ {
		s.Bounds[0][k] = math.Inf(1)
		s.Bounds[1][k] = math.Inf(-1)
	}
	for _, v := range g.Vertices {
		for k := 0; k < 3; k++ {
			c := float64(v[k])
			s.Bounds[0][k] = math.Min(s.Bounds[0][k], c)
			s.Bounds[1][k] = math.Max(s.Bounds[1][k], c)
		}
	}
	return s
}

// String renders the summary the way the preview panel shows it.
func (s MeshSummary) String() string {
	return fmt.Sprintf("vertices: %d, faces: %d, bounds: [%.3f %.3f %.3f] .. [%.3f %.3f %.3f]",
		s.Vertices, s.Faces,
		s.Bounds[0][0], s.Bounds[0][1], s.Bounds[0][2],
		s.Bounds[1][0], s.Bounds[1][1], s.Bounds[1][2])
}

// EncodeGeometry produces the wire form of g.
func EncodeGeometry(g *Geometry) (string, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("payload: encode geometry: %w", err)
	}
	return string(data), nil
}
