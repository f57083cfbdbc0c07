// Package viewer owns the live 3D viewers mounted into document containers:
// creation, mesh ingestion, resize and disposal.
package viewer

import (
	"context"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"asset-studio/internal/mathutil"
	"asset-studio/internal/payload"
	"asset-studio/internal/raster"
)

// Observer receives viewer lifecycle notifications.
type Observer interface {
	ViewersLive(n int)
	FrameRendered()
}

type nopObserver struct{}

func (nopObserver) ViewersLive(int) {}
func (nopObserver) FrameRendered()  {}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l.With(zap.String("component", "viewer")) }
}

// MaxFrameRate caps the frame loop rate.
const MaxFrameRate = 240

// WithFrameRate sets the frame loop rate, clamped to MaxFrameRate.
func WithFrameRate(fps int) Option {
	return func(m *Manager) {
		if fps > 0 {
			fps = min(fps, MaxFrameRate)
			m.interval = time.Second / time.Duration(fps)
		}
	}
}

// WithSupersample renders at n× the container size.
func WithSupersample(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.supersample = n
		}
	}
}

// WithObserver registers lifecycle callbacks.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithLights overrides the lighting rig for new viewers.
func WithLights(lc raster.LightConfig) Option {
	return func(m *Manager) { m.lights = lc }
}

// Manager is the registry of live viewer contexts, one per mount id.
type Manager struct {
	doc         Document
	logger      *zap.Logger
	observer    Observer
	interval    time.Duration
	supersample int
	lights      raster.LightConfig

	mu       sync.Mutex
	contexts map[string]*Context
}

// NewManager creates a Manager resolving mount ids through doc.
func NewManager(doc Document, opts ...Option) *Manager {
	m := &Manager{
		doc:         doc,
		logger:      zap.NewNop(),
		observer:    nopObserver{},
		interval:    time.Second / 30,
		supersample: 1,
		lights:      raster.DefaultLightConfig(),
		contexts:    make(map[string]*Context),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mount renders g into the container at mountID and starts its frame loop,
// disposing any viewer previously mounted there. A missing container or empty
// geometry is logged and yields ok == false.
func (m *Manager) Mount(mountID string, g *payload.Geometry) (Info, bool) {
	c, ok := m.doc.Container(mountID)
	if !ok || !c.Attached() {
		m.logger.Warn("mount point not found", zap.String("mount_id", mountID))
		return Info{}, false
	}
	if g == nil || len(g.Vertices) == 0 {
		m.logger.Warn("empty geometry", zap.String("mount_id", mountID))
		return Info{}, false
	}

	ctx := newContext(mountID, c, m.buildScene(g), m.supersample)

	m.mu.Lock()
	prev := m.contexts[mountID]
	m.contexts[mountID] = ctx
	live := len(m.contexts)
	m.mu.Unlock()

	if prev != nil {
		prev.cancel()
		m.logger.Debug("replaced viewer", zap.String("mount_id", mountID))
	}

	go ctx.run(m.interval, m.observer.FrameRendered, m.detached)
	m.observer.ViewersLive(live)

	m.logger.Info("viewer mounted",
		zap.String("mount_id", mountID),
		zap.Int("vertices", len(g.Vertices)),
		zap.Int("faces", len(g.Faces)),
		zap.Float64("source_radius", ctx.scene.Source.Radius))
	return ctx.info(), true
}

// buildScene normalizes the geometry into a unit-radius sphere at the origin
// and computes vertex normals.
func (m *Manager) buildScene(g *payload.Geometry) *Scene {
	positions := make([]mathutil.Vec3, len(g.Vertices))
	for i, v := range g.Vertices {
		positions[i] = mathutil.V3(v)
	}
	source := mathutil.NormalizeToUnitSphere(positions)

	faces := make([][3]uint32, len(g.Faces))
	copy(faces, g.Faces)

	return &Scene{
		Mesh: &raster.Mesh{
			Positions: positions,
			Normals:   raster.ComputeVertexNormals(positions, faces),
			Faces:     faces,
		},
		Lights: m.lights,
		Model:  mathutil.Mat4Identity(),
		Source: source,
	}
}

// Resize recomputes aspect and surface size for mountID from its container.
// It is a no-op for ids without a live context.
func (m *Manager) Resize(mountID string) bool {
	ctx := m.lookup(mountID)
	if ctx == nil {
		return false
	}
	return ctx.resize()
}

// ResizeAll resizes every live context and returns how many changed size.
func (m *Manager) ResizeAll() int {
	n := 0
	for _, ctx := range m.snapshotContexts() {
		if ctx.resize() {
			n++
		}
	}
	return n
}

// Dispose cancels the frame loop and releases the surface for mountID.
func (m *Manager) Dispose(mountID string) bool {
	m.mu.Lock()
	ctx, ok := m.contexts[mountID]
	delete(m.contexts, mountID)
	live := len(m.contexts)
	m.mu.Unlock()
	if !ok {
		return false
	}

	ctx.cancel()
	m.observer.ViewersLive(live)
	m.logger.Debug("viewer disposed", zap.String("mount_id", mountID))
	return true
}

// DisposeAll disposes every live context.
func (m *Manager) DisposeAll() int {
	m.mu.Lock()
	all := m.contexts
	m.contexts = make(map[string]*Context)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, ctx := range all {
		wg.Add(1)
		go func(c *Context) {
			defer wg.Done()
			c.cancel()
		}(ctx)
	}
	wg.Wait()

	if len(all) > 0 {
		m.observer.ViewersLive(0)
		m.logger.Debug("all viewers disposed", zap.Int("count", len(all)))
	}
	return len(all)
}

// Info returns a snapshot of the context at mountID.
func (m *Manager) Info(mountID string) (Info, bool) {
	ctx := m.lookup(mountID)
	if ctx == nil {
		return Info{}, false
	}
	return ctx.info(), true
}

// Snapshot returns the most recently rendered frame at container resolution.
func (m *Manager) Snapshot(mountID string) (*image.NRGBA, bool) {
	ctx := m.lookup(mountID)
	if ctx == nil {
		return nil, false
	}
	img := ctx.snapshot()
	return img, img != nil
}

// WaitForFrame blocks until the viewer at mountID has rendered at least one
// frame. It returns false if the viewer is gone or ctx ends first.
func (m *Manager) WaitForFrame(ctx context.Context, mountID string) bool {
	ticker := time.NewTicker(m.interval / 2)
	defer ticker.Stop()
	for {
		vc := m.lookup(mountID)
		if vc == nil {
			return false
		}
		if vc.frames.Load() > 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// Handle forwards an input event to the orbit controls at mountID, bypassing
// the container's event queue.
func (m *Manager) Handle(mountID string, ev InputEvent) bool {
	ctx := m.lookup(mountID)
	if ctx == nil {
		return false
	}
	ctx.mu.Lock()
	ctx.controls.Handle(ev)
	ctx.mu.Unlock()
	return true
}

// MountIDs lists the ids with a live context.
func (m *Manager) MountIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.contexts))
	for id := range m.contexts {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of live contexts.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.contexts)
}

func (m *Manager) lookup(mountID string) *Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contexts[mountID]
}

func (m *Manager) snapshotContexts() []*Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Context, 0, len(m.contexts))
	for _, ctx := range m.contexts {
		out = append(out, ctx)
	}
	return out
}

// detached unregisters a context whose container left the document.
func (m *Manager) detached(ctx *Context) {
	m.mu.Lock()
	removed := false
	if m.contexts[ctx.MountID] == ctx {
		delete(m.contexts, ctx.MountID)
		removed = true
	}
	live := len(m.contexts)
	m.mu.Unlock()

	if removed {
		m.observer.ViewersLive(live)
		m.logger.Info("container detached, viewer stopped", zap.String("mount_id", ctx.MountID))
	}
}
