// Package payload models the modality-tagged data the backend returns for
// previews and technique results.
package payload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"asset-studio/internal/modality"
)

// ErrModalityMismatch is returned when a payload is interpreted under a
// modality other than the one it was tagged with.
var ErrModalityMismatch = errors.New("payload: modality mismatch")

// Payload is an opaque unit of backend data. Image and audio payloads carry
// base64 text, text payloads a plain string, mesh payloads JSON.
type Payload struct {
	Modality  modality.Modality
	Technique string // empty for the original preview
	Data      string
}

// New tags data with its modality.
func New(m modality.Modality, technique, data string) Payload {
	return Payload{Modality: m, Technique: technique, Data: data}
}

// IsPreview reports whether p is an original upload preview.
func (p Payload) IsPreview() bool { return p.Technique == "" }

// Expect returns ErrModalityMismatch unless p is tagged with m.
func (p Payload) Expect(m modality.Modality) error {
	if p.Modality != m {
		return fmt.Errorf("%w: payload is %s, want %s", ErrModalityMismatch, p.Modality, m)
	}
	return nil
}

// Bytes decodes a binary payload. Only image and audio payloads are binary.
func (p Payload) Bytes() ([]byte, error) {
	if p.Modality != modality.Image && p.Modality != modality.Audio {
		return nil, fmt.Errorf("%w: %s payload is not binary", ErrModalityMismatch, p.Modality)
	}
	data := stripDataURL(p.Data)
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		// Some encoders drop the padding.
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return nil, fmt.Errorf("payload: decode %s base64: %w", p.Modality, err)
		}
	}
	return raw, nil
}

// stripDataURL removes a "data:<mime>;base64," prefix if present.
func stripDataURL(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.Index(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}
