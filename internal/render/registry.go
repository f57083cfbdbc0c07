package render

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"asset-studio/internal/apperr"
	"asset-studio/internal/modality"
	"asset-studio/internal/payload"
)

// FallbackObserver is notified when a payload degrades to its raw form.
type FallbackObserver interface {
	RenderFallback(m modality.Modality)
}

// Registry selects the renderer for a payload's modality.
type Registry struct {
	renderers map[modality.Modality]Renderer
	logger    *zap.Logger
	observer  FallbackObserver
}

// NewRegistry builds a registry over the given renderers.
func NewRegistry(logger *zap.Logger, renderers ...Renderer) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		renderers: make(map[modality.Modality]Renderer, len(renderers)),
		logger:    logger.With(zap.String("component", "render")),
	}
	for _, rr := range renderers {
		r.renderers[rr.Modality()] = rr
	}
	return r
}

// NewDefaultRegistry wires the four built-in renderers.
func NewDefaultRegistry(logger *zap.Logger, viewers Mounter, thumbnailSize int) *Registry {
	return NewRegistry(logger,
		ImageRenderer{ThumbnailSize: thumbnailSize, Cache: NewDecodeCache(64)},
		TextRenderer{},
		AudioRenderer{},
		MeshRenderer{Viewers: viewers},
	)
}

// SetFallbackObserver registers a fallback listener.
func (r *Registry) SetFallbackObserver(o FallbackObserver) { r.observer = o }

// Render materializes p. It never fails: a payload that cannot be rendered
// becomes a FallbackView so sibling results in the same batch still display.
func (r *Registry) Render(ctx context.Context, mountID string, p payload.Payload, promoter Promoter) Result {
	rr, ok := r.renderers[p.Modality]
	if !ok {
		return r.fallback(p, promoter, fmt.Errorf("render: no renderer for modality %q", p.Modality))
	}
	res, err := rr.Render(ctx, mountID, p, promoter)
	if err != nil {
		return r.fallback(p, promoter, err)
	}
	return res
}

func (r *Registry) fallback(p payload.Payload, promoter Promoter, cause error) Result {
	level := r.logger.Warn
	if apperr.Is(cause, apperr.CodePayloadParse) {
		level = r.logger.Info
	}
	level("payload shown as raw text",
		zap.String("modality", modalityOf(p)),
		zap.String("technique", p.Technique),
		zap.Error(cause))
	if r.observer != nil {
		r.observer.RenderFallback(p.Modality)
	}
	return &FallbackView{base: base{p, promoter}, Raw: p.Data, Cause: cause}
}
