// Package pipeline coordinates one asset session against the processing
// backend: upload, preview, technique runs and result chaining.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"asset-studio/internal/apperr"
	"asset-studio/internal/backend"
	"asset-studio/internal/modality"
	"asset-studio/internal/payload"
	"asset-studio/internal/render"
	"asset-studio/internal/session"
	"asset-studio/internal/viewer"
)

// PreviewMount is the mount id of the original-asset preview.
const PreviewMount = "preview"

// Backend is the processing service.
type Backend interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*backend.UploadResponse, error)
	Preprocess(ctx context.Context, fileType string, req backend.TechniqueRequest) (backend.Results, error)
	Augment(ctx context.Context, fileType string, req backend.TechniqueRequest) (backend.Results, error)
}

// Renderer materializes payloads into displayable results.
type Renderer interface {
	Render(ctx context.Context, mountID string, p payload.Payload, promoter render.Promoter) render.Result
}

// Viewers releases live viewers by mount id.
type Viewers interface {
	Dispose(mountID string) bool
	DisposeAll() int
}

// Layout creates and removes the containers results are mounted into.
type Layout interface {
	Create(id string, w, h int) *viewer.Element
	Remove(id string)
}

// Entry is one rendered technique result.
type Entry struct {
	Technique string
	MountID   string
	Result    render.Result
}

// Batch is the rendered outcome of one RunTechniques call.
type Batch struct {
	Kind      Kind
	SessionID string
	Chained   bool // augmentation ran on a selected preprocessing result
	Entries   []Entry
}

// Result returns the entry for technique.
func (b *Batch) Result(technique string) (render.Result, bool) {
	for _, e := range b.Entries {
		if e.Technique == technique {
			return e.Result, true
		}
	}
	return nil, false
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l.With(zap.String("component", "pipeline")) }
}

// WithRenderWorkers bounds concurrent result rendering.
func WithRenderWorkers(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithPanelSize sets the size of newly created result containers.
func WithPanelSize(w, h int) Option {
	return func(c *Controller) {
		if w > 0 && h > 0 {
			c.panelW, c.panelH = w, h
		}
	}
}

// Controller is the single owner of session state.
type Controller struct {
	backend  Backend
	renderer Renderer
	viewers  Viewers
	layout   Layout
	logger   *zap.Logger
	workers  int
	panelW   int
	panelH   int

	// panelMu serializes result panel replacement; it is taken before mu.
	panelMu sync.Mutex

	mu           sync.Mutex
	session      *session.AssetSession
	preview      render.Result
	resultMounts []string
	inFlight     map[flight]bool
}

// flight identifies an outstanding request of one kind within one session.
type flight struct {
	session string
	kind    Kind
}

// New creates a Controller.
func New(b Backend, r Renderer, v Viewers, layout Layout, opts ...Option) *Controller {
	c := &Controller{
		backend:  b,
		renderer: r,
		viewers:  v,
		layout:   layout,
		logger:   zap.NewNop(),
		workers:  4,
		panelW:   400,
		panelH:   300,
		inFlight: make(map[flight]bool, 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload sends the file to the backend and, on success, replaces the session
// and renders its preview. On failure the previous session is untouched.
func (c *Controller) Upload(ctx context.Context, filename string, r io.Reader) (*session.AssetSession, error) {
	resp, err := c.backend.Upload(ctx, filename, r)
	if err != nil {
		c.logger.Warn("upload failed", zap.String("file", filename), zap.Error(err))
		return nil, err
	}

	m, known := modality.Parse(resp.FileType)
	if !known {
		c.logger.Warn("backend reported unknown file type", zap.String("file_type", resp.FileType))
	}
	sess := session.New(resp.Filename, m, resp.Preview)

	c.panelMu.Lock()
	defer c.panelMu.Unlock()

	c.mu.Lock()
	c.session = sess
	c.preview = nil
	stale := c.resultMounts
	c.resultMounts = nil
	c.mu.Unlock()

	c.viewers.Dispose(PreviewMount)
	c.clearPanel(stale)

	c.layout.Create(PreviewMount, c.panelW, c.panelH)
	preview := c.renderer.Render(ctx, PreviewMount, sess.Original, c)

	c.mu.Lock()
	if c.session == sess {
		c.preview = preview
	}
	out := sess.Clone()
	c.mu.Unlock()

	c.logger.Info("asset uploaded",
		zap.String("session", sess.ID),
		zap.String("filename", sess.Filename),
		zap.String("modality", string(sess.Modality)))
	return out, nil
}

// RunTechniques runs the selected techniques of kind against the current
// asset. Augmentation runs on the selected result when one is set.
func (c *Controller) RunTechniques(ctx context.Context, kind Kind, sel Selection) (*Batch, error) {
	if kind != Preprocess && kind != Augment {
		return nil, apperr.Request(fmt.Sprintf("unknown technique kind %q", kind))
	}
	sel = NewSelection(sel...)
	if sel.Empty() {
		return nil, apperr.EmptySelection(string(kind))
	}

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, apperr.Request("no asset uploaded")
	}
	sess := c.session
	key := flight{session: sess.ID, kind: kind}
	if c.inFlight[key] {
		c.mu.Unlock()
		return nil, apperr.RequestInFlight(string(kind))
	}
	c.inFlight[key] = true
	req := backend.TechniqueRequest{Filename: sess.Filename, Techniques: []string(sel)}
	if kind == Augment {
		if p, ok := sess.Selected(); ok {
			data := p.Data
			req.PreprocessedResult = &data
		}
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, key)
		c.mu.Unlock()
	}()

	for _, id := range sel {
		if !modality.Offers(sess.Modality, string(kind), id) {
			c.logger.Warn("technique not offered for modality",
				zap.String("kind", string(kind)), zap.String("technique", id), zap.String("modality", string(sess.Modality)))
		}
	}

	call := c.backend.Preprocess
	if kind == Augment {
		call = c.backend.Augment
	}
	results, err := call(ctx, sess.Modality.Wire(), req)
	if err != nil {
		c.logger.Warn("technique run failed", zap.String("kind", string(kind)), zap.Error(err))
		return nil, err
	}

	batch := &Batch{Kind: kind, SessionID: sess.ID, Chained: req.PreprocessedResult != nil}
	for _, id := range orderedKeys(results, sel) {
		batch.Entries = append(batch.Entries, Entry{Technique: id, MountID: mountID(kind, id)})
	}
	mounts := make([]string, len(batch.Entries))
	for i, e := range batch.Entries {
		mounts[i] = e.MountID
	}

	c.panelMu.Lock()
	defer c.panelMu.Unlock()

	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return nil, apperr.Request("asset was replaced while the request was running")
	}
	stale := c.resultMounts
	c.resultMounts = mounts
	c.mu.Unlock()

	c.clearPanel(stale)

	g := new(errgroup.Group)
	g.SetLimit(c.workers)
	for i := range batch.Entries {
		e := &batch.Entries[i]
		c.layout.Create(e.MountID, c.panelW, c.panelH)
		p := payload.New(sess.Modality, e.Technique, results[e.Technique])
		g.Go(func() error {
			e.Result = c.renderer.Render(ctx, e.MountID, p, c)
			return nil
		})
	}
	_ = g.Wait()

	c.logger.Info("techniques applied",
		zap.String("kind", string(kind)),
		zap.Strings("techniques", sel),
		zap.Int("results", len(batch.Entries)),
		zap.Bool("chained", batch.Chained))
	return batch, nil
}

// SelectResultAsInput makes p the input of subsequent augmentation calls.
func (c *Controller) SelectResultAsInput(p payload.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return apperr.Request("no asset uploaded")
	}
	if err := c.session.Select(p); err != nil {
		return fmt.Errorf("pipeline: select result: %w", err)
	}
	c.logger.Debug("result selected as input", zap.String("technique", p.Technique))
	return nil
}

// ResetSelection reverts augmentation input to the original asset.
func (c *Controller) ResetSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Reset()
	}
}

// ActivePreview is the payload augmentation would currently operate on.
func (c *Controller) ActivePreview() (payload.Payload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return payload.Payload{}, false
	}
	return c.session.ActivePreview(), true
}

// Session returns a copy of the current session, or nil.
func (c *Controller) Session() *session.AssetSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session.Clone()
}

// Preview returns the rendered original preview, or nil.
func (c *Controller) Preview() render.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preview
}

// ResultMounts lists the mount ids of the current result panel.
func (c *Controller) ResultMounts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.resultMounts...)
}

// Close releases every viewer.
func (c *Controller) Close() error {
	c.panelMu.Lock()
	defer c.panelMu.Unlock()
	n := c.viewers.DisposeAll()
	c.logger.Debug("controller closed", zap.Int("viewers_disposed", n))
	return nil
}

func (c *Controller) clearPanel(mounts []string) {
	for _, id := range mounts {
		c.viewers.Dispose(id)
		c.layout.Remove(id)
	}
}

func mountID(kind Kind, technique string) string {
	return "result-" + string(kind) + "-" + technique
}

// orderedKeys lists result keys in selection order followed by any extra keys
// the backend returned, sorted.
func orderedKeys(results backend.Results, sel Selection) []string {
	keys := make([]string, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, id := range sel {
		if _, ok := results[id]; ok {
			keys = append(keys, id)
			seen[id] = true
		}
	}
	var extra []string
	for id := range results {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

var _ render.Promoter = (*Controller)(nil)

