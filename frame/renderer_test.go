package frame

import (
	"bytes"
	"testing"
)

func TestOnFrameReleasesPrevious(t *testing.T) {
	var seen []*Handle
	r := NewRenderer(func(h *Handle) { seen = append(seen, h) })

	r.OnFrame([]byte{1})
	r.OnFrame([]byte{2})
	r.OnFrame([]byte{3})

	if len(seen) != 3 {
		t.Fatalf("sink saw %d handles, want 3", len(seen))
	}
	// Only the newest handle is alive.
	for i, h := range seen[:2] {
		if !h.Released() {
			t.Errorf("handle %d not released", i)
		}
		if h.Bytes() != nil {
			t.Errorf("handle %d still exposes bytes after release", i)
		}
	}
	current := r.Current()
	if current != seen[2] {
		t.Fatal("current handle is not the latest")
	}
	if current.Released() {
		t.Error("current handle released prematurely")
	}
	if !bytes.Equal(current.Bytes(), []byte{3}) {
		t.Errorf("current bytes = %v, want [3]", current.Bytes())
	}
}

func TestHandleDataIsCopied(t *testing.T) {
	r := NewRenderer(nil)
	buf := []byte{1, 2, 3}
	r.OnFrame(buf)
	buf[0] = 99

	if got := r.Current().Bytes(); !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("handle bytes = %v, want [1 2 3]", got)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	r := NewRenderer(nil)
	r.OnFrame([]byte{1})
	h := r.Current()
	h.Release()
	h.Release()
	if !h.Released() {
		t.Error("handle not released")
	}
}

func TestTeardown(t *testing.T) {
	r := NewRenderer(nil)
	r.OnFrame([]byte{1})
	h := r.Current()

	r.Teardown()
	if !h.Released() {
		t.Error("teardown left the current handle live")
	}
	if r.Current() != nil {
		t.Error("current handle survives teardown")
	}

	// Teardown with nothing displayed is fine.
	r.Teardown()
}
