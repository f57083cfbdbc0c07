// Package render turns modality-tagged payloads into displayable results.
package render

import (
	"fmt"
	"image"
	"strings"
	"time"

	"asset-studio/internal/payload"
	"asset-studio/internal/viewer"
)

// Promoter accepts a result as the input for the next augmentation call.
type Promoter interface {
	SelectResultAsInput(p payload.Payload) error
}

// Result is a displayable handle for one payload.
type Result interface {
	Payload() payload.Payload
	// Promote selects this result as the augmentation input.
	Promote() error
	// Describe is a one-line human summary.
	Describe() string
}

type base struct {
	p        payload.Payload
	promoter Promoter
}

func (b base) Payload() payload.Payload { return b.p }

func (b base) Promote() error {
	if b.promoter == nil {
		return fmt.Errorf("render: no promoter for %s result", b.p.Modality)
	}
	return b.promoter.SelectResultAsInput(b.p)
}

func (b base) title() string {
	if b.p.IsPreview() {
		return "Original"
	}
	return b.p.Technique
}

// ImageView is a decoded raster with a WebP thumbnail.
type ImageView struct {
	base
	Image     *image.NRGBA
	Format    string
	MIME      string
	Thumbnail []byte // WebP
}

func (v *ImageView) Describe() string {
	b := v.Image.Bounds()
	return fmt.Sprintf("%s: %s image %dx%d", v.title(), v.Format, b.Dx(), b.Dy())
}

// TextView is a plain text block.
type TextView struct {
	base
	Text string
}

func (v *TextView) Describe() string {
	return fmt.Sprintf("%s: %s", v.title(), excerpt(v.Text, 80))
}

// AudioView is a decoded audio clip.
type AudioView struct {
	base
	Data     []byte
	MIME     string
	Duration time.Duration // zero if unknown
}

func (v *AudioView) Describe() string {
	if v.Duration > 0 {
		return fmt.Sprintf("%s: %s, %d bytes, %s", v.title(), v.MIME, len(v.Data), v.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("%s: %s, %d bytes", v.title(), v.MIME, len(v.Data))
}

// MeshView is a geometry payload mounted into a live viewer.
type MeshView struct {
	base
	MountID string
	Mounted bool
	Viewer  viewer.Info
}

func (v *MeshView) Describe() string {
	if !v.Mounted {
		return fmt.Sprintf("%s: mesh (no mount point %q)", v.title(), v.MountID)
	}
	return fmt.Sprintf("%s: mesh %d vertices, %d faces in viewer %q",
		v.title(), v.Viewer.Vertices, v.Viewer.Faces, v.MountID)
}

// MeshSummaryView shows statistics for a mesh preview without geometry.
type MeshSummaryView struct {
	base
	Summary payload.MeshSummary
}

func (v *MeshSummaryView) Describe() string {
	return fmt.Sprintf("%s: %s", v.title(), v.Summary)
}

// FallbackView shows the raw payload when it could not be rendered.
type FallbackView struct {
	base
	Raw   string
	Cause error
}

func (v *FallbackView) Describe() string {
	return fmt.Sprintf("%s: unrenderable %s payload (%v): %s", v.title(), v.p.Modality, v.Cause, excerpt(v.Raw, 60))
}

var (
	_ Result = (*ImageView)(nil)
	_ Result = (*TextView)(nil)
	_ Result = (*AudioView)(nil)
	_ Result = (*MeshView)(nil)
	_ Result = (*MeshSummaryView)(nil)
	_ Result = (*FallbackView)(nil)
)

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// modalityOf is used in log fields.
func modalityOf(p payload.Payload) string {
	if p.Modality.Valid() {
		return p.Modality.String()
	}
	return "unknown:" + string(p.Modality)
}
