// Package session holds the state of the single active asset.
package session

import (
	"time"

	"github.com/google/uuid"

	"asset-studio/internal/modality"
	"asset-studio/internal/payload"
)

// AssetSession is the currently loaded asset. Modality and Original are fixed
// for the session's lifetime; Selected changes via Select and Reset.
type AssetSession struct {
	ID        string
	Filename  string // backend asset identifier
	Modality  modality.Modality
	Original  payload.Payload
	CreatedAt time.Time

	selected *payload.Payload
}

// New creates a session for a freshly uploaded asset.
func New(filename string, m modality.Modality, preview string) *AssetSession {
	return &AssetSession{
		ID:        uuid.New().String(),
		Filename:  filename,
		Modality:  m,
		Original:  payload.New(m, "", preview),
		CreatedAt: time.Now(),
	}
}

// Selected returns the result chosen as augmentation input, if any.
func (s *AssetSession) Selected() (payload.Payload, bool) {
	if s.selected == nil {
		return payload.Payload{}, false
	}
	return *s.selected, true
}

// Select records p as the augmentation input. p must share the session's
// modality.
func (s *AssetSession) Select(p payload.Payload) error {
	if err := p.Expect(s.Modality); err != nil {
		return err
	}
	s.selected = &p
	return nil
}

// Reset clears the selection.
func (s *AssetSession) Reset() {
	s.selected = nil
}

// ActivePreview is the selected result if any, otherwise the original preview.
func (s *AssetSession) ActivePreview() payload.Payload {
	if s.selected != nil {
		return *s.selected
	}
	return s.Original
}

// Clone returns a copy safe to hand outside the owner's lock.
func (s *AssetSession) Clone() *AssetSession {
	c := *s
	if s.selected != nil {
		sel := *s.selected
		c.selected = &sel
	}
	return &c
}
