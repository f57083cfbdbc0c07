package viewer

import "sync"

// InputKind enumerates pointer interactions forwarded to orbit controls.
type InputKind int

const (
	InputDrag InputKind = iota
	InputWheel
	InputReset
)

// InputEvent is a pointer interaction on a container, in pixels.
type InputEvent struct {
	Kind   InputKind
	DX, DY float64
	Delta  float64
}

// Container is a mount point a viewer renders into.
type Container interface {
	ID() string
	Size() (w, h int)
	Attached() bool
	// Input delivers pointer events; nil if the container has none.
	Input() <-chan InputEvent
}

// Document resolves mount identifiers to containers.
type Document interface {
	Container(id string) (Container, bool)
}

// Page is an in-memory Document for headless use.
type Page struct {
	mu       sync.RWMutex
	elements map[string]*Element
}

// NewPage returns an empty page.
func NewPage() *Page {
	return &Page{elements: make(map[string]*Element)}
}

// Create attaches a new element of the given size, replacing any element
// already registered under id.
func (p *Page) Create(id string, w, h int) *Element {
	el := &Element{id: id, w: w, h: h, attached: true, input: make(chan InputEvent, 16)}
	p.mu.Lock()
	if prev, ok := p.elements[id]; ok {
		prev.detach()
	}
	p.elements[id] = el
	p.mu.Unlock()
	return el
}

// Remove detaches and forgets the element at id.
func (p *Page) Remove(id string) {
	p.mu.Lock()
	el, ok := p.elements[id]
	delete(p.elements, id)
	p.mu.Unlock()
	if ok {
		el.detach()
	}
}

// Element returns the element at id, if any.
func (p *Page) Element(id string) (*Element, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	el, ok := p.elements[id]
	return el, ok
}

// Container implements Document.
func (p *Page) Container(id string) (Container, bool) {
	el, ok := p.Element(id)
	if !ok {
		return nil, false
	}
	return el, true
}

// Element is a sized, detachable container.
type Element struct {
	id       string
	mu       sync.RWMutex
	w, h     int
	attached bool
	input    chan InputEvent
}

func (e *Element) ID() string { return e.id }

func (e *Element) Size() (int, int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.w, e.h
}

func (e *Element) Attached() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.attached
}

func (e *Element) Input() <-chan InputEvent { return e.input }

// SetSize changes the element's layout size.
func (e *Element) SetSize(w, h int) {
	e.mu.Lock()
	e.w, e.h = w, h
	e.mu.Unlock()
}

// Dispatch queues an input event, dropping it if the queue is full.
func (e *Element) Dispatch(ev InputEvent) bool {
	select {
	case e.input <- ev:
		return true
	default:
		return false
	}
}

func (e *Element) detach() {
	e.mu.Lock()
	e.attached = false
	e.mu.Unlock()
}
