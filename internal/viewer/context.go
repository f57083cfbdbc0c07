package viewer

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"asset-studio/internal/imaging"
	"asset-studio/internal/mathutil"
	"asset-studio/internal/raster"
)

// Scene is the single lit mesh a viewer displays.
type Scene struct {
	Mesh   *raster.Mesh
	Lights raster.LightConfig
	Model  mathutil.Mat4
	// Source is the bounding sphere before normalization.
	Source mathutil.Sphere
}

// Context bundles the rendering resources for one mounted viewer.
// Contexts are owned by the Manager; other packages see only Info.
type Context struct {
	MountID string

	mu          sync.Mutex
	camera      Camera
	scene       *Scene
	surface     *raster.FrameBuffer
	controls    *OrbitControls
	container   Container
	supersample int
	last        raster.Stats

	frames atomic.Uint64
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Info is a read-only snapshot of a live context.
type Info struct {
	MountID   string
	Width     int
	Height    int
	Aspect    float64
	Frames    uint64
	Vertices  int
	Faces     int
	Source    mathutil.Sphere
	Bounds    mathutil.Sphere
	Triangles int
}

func newContext(id string, c Container, scene *Scene, supersample int) *Context {
	w, h := c.Size()
	ctx := &Context{
		MountID:     id,
		camera:      NewCamera(aspect(w, h)),
		scene:       scene,
		surface:     raster.NewFrameBuffer(w*supersample, h*supersample),
		controls:    NewOrbitControls(2.5),
		container:   c,
		supersample: supersample,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	return ctx
}

// run drives the frame loop until stopped or the container detaches.
// onDetach is invoked from the loop goroutine when it exits on its own.
func (c *Context) run(interval time.Duration, onFrame func(), onDetach func(*Context)) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	input := c.container.Input()

	for {
		select {
		case <-c.stop:
			return
		case ev, ok := <-input:
			if !ok {
				input = nil
				continue
			}
			c.mu.Lock()
			c.controls.Handle(ev)
			c.mu.Unlock()
		case <-ticker.C:
			if !c.container.Attached() {
				c.release()
				onDetach(c)
				return
			}
			select {
			case <-c.stop:
				return
			default:
			}
			c.renderFrame()
			onFrame()
		}
	}
}

func (c *Context) renderFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.surface == nil {
		return
	}
	c.controls.Update()
	c.last = raster.Render(c.surface, c.scene.Mesh, c.scene.Model, c.controls.View(), c.camera.Projection(), &c.scene.Lights)
	c.frames.Add(1)
}

// cancel stops the loop and waits for it to exit, then frees the surface.
func (c *Context) cancel() {
	c.once.Do(func() { close(c.stop) })
	<-c.done
	c.release()
}

func (c *Context) release() {
	c.mu.Lock()
	c.surface = nil
	c.mu.Unlock()
}

// resize matches the surface to the container. Returns whether it changed.
func (c *Context) resize() bool {
	w, h := c.container.Size()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.surface == nil {
		return false
	}
	sw, sh := max(1, w)*c.supersample, max(1, h)*c.supersample
	c.camera.Aspect = aspect(w, h)
	if c.surface.Width == sw && c.surface.Height == sh {
		return false
	}
	c.surface = raster.NewFrameBuffer(sw, sh)
	return true
}

func (c *Context) snapshot() *image.NRGBA {
	c.mu.Lock()
	if c.surface == nil {
		c.mu.Unlock()
		return nil
	}
	img := c.surface.Image()
	w, h := c.surface.Width/c.supersample, c.surface.Height/c.supersample
	c.mu.Unlock()

	if c.supersample > 1 {
		img = imaging.Downsample(img, w, h)
	}
	return img
}

func (c *Context) info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	in := Info{
		MountID:   c.MountID,
		Aspect:    c.camera.Aspect,
		Frames:    c.frames.Load(),
		Source:    c.scene.Source,
		Triangles: c.last.Triangles,
	}
	if c.surface != nil {
		in.Width = c.surface.Width / c.supersample
		in.Height = c.surface.Height / c.supersample
	}
	if m := c.scene.Mesh; m != nil {
		in.Vertices = len(m.Positions)
		in.Faces = len(m.Faces)
		in.Bounds = mathutil.BoundingSphere(m.Positions)
	}
	return in
}

func aspect(w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 1
	}
	return float64(w) / float64(h)
}
