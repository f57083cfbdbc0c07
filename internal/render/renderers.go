package render

import (
	"context"
	"encoding/binary"
	"time"

	"asset-studio/internal/imaging"
	"asset-studio/internal/modality"
	"asset-studio/internal/payload"
	"asset-studio/internal/viewer"
)

// Renderer materializes payloads of one modality.
type Renderer interface {
	Modality() modality.Modality
	Render(ctx context.Context, mountID string, p payload.Payload, promoter Promoter) (Result, error)
}

// ImageRenderer decodes raster payloads and builds a WebP thumbnail.
type ImageRenderer struct {
	ThumbnailSize int
	Cache         *DecodeCache // optional
}

func (ImageRenderer) Modality() modality.Modality { return modality.Image }

func (r ImageRenderer) Render(_ context.Context, _ string, p payload.Payload, promoter Promoter) (Result, error) {
	raw, err := p.Bytes()
	if err != nil {
		return nil, err
	}

	var d *imaging.Decoded
	var thumb []byte
	if r.Cache != nil {
		d, thumb, err = r.Cache.resolve(raw, r.ThumbnailSize)
	} else {
		d, err = imaging.Decode(raw)
		if err == nil && r.ThumbnailSize > 0 {
			thumb, err = imaging.WebPBytes(imaging.Thumbnail(d.Image, r.ThumbnailSize))
		}
	}
	if err != nil {
		return nil, err
	}
	return &ImageView{base: base{p, promoter}, Image: d.Image, Format: d.Format, MIME: d.MIME, Thumbnail: thumb}, nil
}

// TextRenderer shows text payloads verbatim.
type TextRenderer struct{}

func (TextRenderer) Modality() modality.Modality { return modality.Text }

func (TextRenderer) Render(_ context.Context, _ string, p payload.Payload, promoter Promoter) (Result, error) {
	return &TextView{base: base{p, promoter}, Text: p.Data}, nil
}

// AudioRenderer decodes audio payloads and sniffs their format.
type AudioRenderer struct{}

func (AudioRenderer) Modality() modality.Modality { return modality.Audio }

func (AudioRenderer) Render(_ context.Context, _ string, p payload.Payload, promoter Promoter) (Result, error) {
	raw, err := p.Bytes()
	if err != nil {
		return nil, err
	}
	return &AudioView{
		base:     base{p, promoter},
		Data:     raw,
		MIME:     imaging.DetectMIME(raw),
		Duration: wavDuration(raw),
	}, nil
}

// wavDuration reads the duration of a canonical PCM RIFF/WAVE clip.
// Other containers report zero.
func wavDuration(raw []byte) time.Duration {
	if len(raw) < 12 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return 0
	}
	var byteRate uint32
	for off := 12; off+8 <= len(raw); {
		id := string(raw[off : off+4])
		size := binary.LittleEndian.Uint32(raw[off+4 : off+8])
		body := off + 8
		switch id {
		case "fmt ":
			if body+12 <= len(raw) {
				byteRate = binary.LittleEndian.Uint32(raw[body+8 : body+12])
			}
		case "data":
			if byteRate == 0 {
				return 0
			}
			return time.Duration(float64(size) / float64(byteRate) * float64(time.Second))
		}
		off = body + int(size) + int(size&1)
	}
	return 0
}

// Mounter mounts geometry into a viewer.
type Mounter interface {
	Mount(mountID string, g *payload.Geometry) (viewer.Info, bool)
}

// MeshRenderer mounts geometry payloads into live viewers. Statistics-only
// previews render as a summary.
type MeshRenderer struct {
	Viewers Mounter
}

func (MeshRenderer) Modality() modality.Modality { return modality.Mesh }

func (r MeshRenderer) Render(_ context.Context, mountID string, p payload.Payload, promoter Promoter) (Result, error) {
	md, err := payload.ParseMesh(p)
	if err != nil {
		return nil, err
	}
	if md.Summary != nil {
		return &MeshSummaryView{base: base{p, promoter}, Summary: *md.Summary}, nil
	}
	v := &MeshView{base: base{p, promoter}, MountID: mountID}
	if r.Viewers != nil {
		v.Viewer, v.Mounted = r.Viewers.Mount(mountID, md.Geometry)
	}
	return v, nil
}
