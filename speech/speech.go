package speech

import "context"

// Synthesizer defines the interface for narration speech synthesis.
type Synthesizer interface {
	// Synthesize streams the spoken form of text as PCM chunks into out and
	// closes out when synthesis finishes or fails.
	Synthesize(ctx context.Context, text string, out chan<- []byte) error

	// Close releases the underlying client resources.
	Close() error
}

// Options represents the configuration for speech synthesis.
type Options struct {
	Voice      string
	Speed      float64
	SampleRate int
}

func DefaultOptions() Options {
	return Options{
		Voice:      "marina",
		Speed:      1.0,
		SampleRate: 44100,
	}
}
