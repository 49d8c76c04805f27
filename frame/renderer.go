// Package frame turns inbound binary video frames into displayable handles
// with deterministic lifetimes: the renderer holds at most one live handle,
// releasing the previous one as each new frame arrives.
package frame

import "sync"

// Handle is one displayable frame resource.
type Handle struct {
	mu       sync.Mutex
	data     []byte
	released bool
}

// Bytes returns the frame payload, or nil once released.
func (h *Handle) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	return h.data
}

// Release frees the handle. Idempotent.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released = true
	h.data = nil
}

// Released reports whether the handle has been freed.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// Renderer swaps each inbound frame in as current and releases the one it
// replaces. sink, if non-nil, is told about every new handle.
type Renderer struct {
	sink func(*Handle)

	mu      sync.Mutex
	current *Handle
}

func NewRenderer(sink func(*Handle)) *Renderer {
	return &Renderer{sink: sink}
}

// OnFrame wraps frameBytes in a fresh handle, makes it current, and releases
// the previously displayed handle.
func (r *Renderer) OnFrame(frameBytes []byte) {
	h := &Handle{data: append([]byte(nil), frameBytes...)}

	r.mu.Lock()
	prev := r.current
	r.current = h
	r.mu.Unlock()

	if prev != nil {
		prev.Release()
	}
	if r.sink != nil {
		r.sink(h)
	}
}

// Current returns the live handle, or nil when none is displayed.
func (r *Renderer) Current() *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Teardown releases the current handle.
func (r *Renderer) Teardown() {
	r.mu.Lock()
	current := r.current
	r.current = nil
	r.mu.Unlock()
	if current != nil {
		current.Release()
	}
}
