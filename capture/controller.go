package capture

import (
	"fmt"
	"sync"
	"time"
)

// Config tunes the capture lifecycle. Zero values select defaults.
type Config struct {
	// SampleRate of the incoming PCM, Hz.
	SampleRate int

	// ChunkDuration is the fixed size of each collected chunk.
	ChunkDuration time.Duration
}

// Controller owns the microphone capture lifecycle for one session: Start
// begins collecting fixed-duration chunks, Stop flushes the in-flight partial
// chunk and returns the complete ordered list.
type Controller struct {
	source        Source
	bytesPerChunk int

	mu      sync.Mutex
	active  bool
	chunks  []Chunk
	pending []byte
	stop    chan struct{}
	done    chan struct{}
}

func New(cfg Config, source Source) *Controller {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.ChunkDuration == 0 {
		cfg.ChunkDuration = time.Second
	}
	// 16-bit mono PCM
	bytesPerChunk := int(float64(cfg.SampleRate)*cfg.ChunkDuration.Seconds()) * 2
	return &Controller{
		source:        source,
		bytesPerChunk: bytesPerChunk,
	}
}

// Active reports whether a capture is currently running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Start opens the source and begins collecting chunks. Starting while active
// is a no-op. An open failure (denied microphone, missing device) is returned
// to the caller; the session treats it as "no audio this round", not fatal.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.source.Open(); err != nil {
		return fmt.Errorf("capture: open source: %w", err)
	}

	c.mu.Lock()
	c.active = true
	c.chunks = nil
	c.pending = nil
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	stop, done := c.stop, c.done
	c.mu.Unlock()

	go c.loop(stop, done)
	return nil
}

// Stop flushes the buffer, releases the source, and returns every chunk
// collected since Start, including the final partial one. Stopping when not
// active returns an empty list.
func (c *Controller) Stop() ([]Chunk, error) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil, nil
	}
	c.active = false
	stop, done := c.stop, c.done
	c.mu.Unlock()

	close(stop)
	// Closing the source unblocks a read in flight.
	err := c.source.Close()
	<-done

	c.mu.Lock()
	chunks := c.chunks
	c.chunks = nil
	c.pending = nil
	c.mu.Unlock()
	return chunks, err
}

func (c *Controller) loop(stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			c.flush()
			return
		default:
		}

		buf, err := c.source.Read()
		if err != nil {
			// Device gone or stream closed mid-read: keep what we have
			// and wait for Stop to collect it.
			<-stop
			c.flush()
			return
		}
		c.collect(buf)
	}
}

func (c *Controller) collect(buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, buf...)
	for len(c.pending) >= c.bytesPerChunk {
		chunk := make(Chunk, c.bytesPerChunk)
		copy(chunk, c.pending[:c.bytesPerChunk])
		c.chunks = append(c.chunks, chunk)
		c.pending = c.pending[c.bytesPerChunk:]
	}
}

// flush appends the in-flight partial chunk, if any.
func (c *Controller) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) > 0 {
		c.chunks = append(c.chunks, Chunk(c.pending))
		c.pending = nil
	}
}
