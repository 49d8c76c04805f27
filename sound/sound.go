package sound

import "context"

// Player defines the interface for narration playback.
type Player interface {
	// Initialize initializes the audio playback system
	Initialize() error

	// Terminate terminates the audio playback system
	Terminate()

	// PlayStream plays PCM chunks from a channel until it is closed or the
	// context is cancelled. Returning nil means playback ran to completion.
	PlayStream(ctx context.Context, audioData <-chan []byte) error
}

// PlayerConfig describes the output stream.
type PlayerConfig struct {
	SampleRate      float64
	FramesPerBuffer int
	OutputChannels  int
}
