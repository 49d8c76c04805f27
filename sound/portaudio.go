package sound

import (
	"context"
	"encoding/binary"
	"errors"
	"log"

	"github.com/gordonklaus/portaudio"
)

// PortaudioPlayer renders 16-bit LE PCM through the default output device.
type PortaudioPlayer struct {
	stream      *portaudio.Stream
	audioBuffer []int16
	config      PlayerConfig
}

var _ Player = (*PortaudioPlayer)(nil)

func NewPortaudioPlayer(config PlayerConfig) *PortaudioPlayer {
	if config.SampleRate == 0 {
		config.SampleRate = 44100
	}
	if config.FramesPerBuffer == 0 {
		config.FramesPerBuffer = 1024
	}
	if config.OutputChannels == 0 {
		config.OutputChannels = 1
	}
	return &PortaudioPlayer{
		config:      config,
		audioBuffer: make([]int16, config.FramesPerBuffer),
	}
}

func (p *PortaudioPlayer) Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	stream, err := portaudio.OpenDefaultStream(
		0,
		p.config.OutputChannels,
		p.config.SampleRate,
		p.config.FramesPerBuffer,
		p.audioBuffer,
	)
	if err != nil {
		portaudio.Terminate()
		return err
	}
	p.stream = stream
	return nil
}

func (p *PortaudioPlayer) PlayStream(ctx context.Context, audioData <-chan []byte) error {
	if p.stream == nil {
		return errors.New("sound: stream not opened")
	}

	if err := p.stream.Start(); err != nil {
		return err
	}
	defer p.stream.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case audioBytes, ok := <-audioData:
			if !ok {
				return nil // Stream drained, playback complete
			}
			p.writeChunk(audioBytes)
		}
	}
}

// writeChunk plays one PCM chunk, a buffer at a time.
func (p *PortaudioPlayer) writeChunk(audioBytes []byte) {
	samples := convertBytesToSamples(audioBytes)
	bufferLen := len(p.audioBuffer)

	for offset := 0; offset < len(samples); offset += bufferLen {
		end := offset + bufferLen
		if end > len(samples) {
			end = len(samples)
		}
		n := copy(p.audioBuffer, samples[offset:end])
		for i := n; i < bufferLen; i++ {
			p.audioBuffer[i] = 0
		}
		if err := p.stream.Write(); err != nil {
			log.Printf("sound: write: %v", err)
			return
		}
	}
}

func convertBytesToSamples(audioBytes []byte) []int16 {
	samples := make([]int16, len(audioBytes)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(audioBytes[i*2 : i*2+2]))
	}
	return samples
}

func (p *PortaudioPlayer) Terminate() {
	if p.stream != nil {
		p.stream.Close()
		p.stream = nil
	}
	portaudio.Terminate()
}
