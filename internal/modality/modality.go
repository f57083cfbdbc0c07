package modality

// Modality identifies the kind of asset loaded into a session.
type Modality string

const (
	Image Modality = "image"
	Text  Modality = "text"
	Audio Modality = "audio"
	Mesh  Modality = "mesh"
)

// All lists the supported modalities in display order.
var All = []Modality{Image, Text, Audio, Mesh}

// Parse maps the backend's file_type field to a Modality.
// The backend reports meshes as "3d".
func Parse(wire string) (Modality, bool) {
	switch wire {
	case "image":
		return Image, true
	case "text":
		return Text, true
	case "audio":
		return Audio, true
	case "3d", "mesh":
		return Mesh, true
	}
	return Modality(wire), false
}

// Wire returns the path segment the backend expects for this modality.
func (m Modality) Wire() string {
	if m == Mesh {
		return "3d"
	}
	return string(m)
}

// Valid reports whether m is one of the four supported modalities.
func (m Modality) Valid() bool {
	switch m {
	case Image, Text, Audio, Mesh:
		return true
	}
	return false
}

func (m Modality) String() string { return string(m) }
