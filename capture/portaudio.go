package capture

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/gordonklaus/portaudio"
)

// SourceConfig describes the microphone stream.
type SourceConfig struct {
	SampleRate      float64
	FramesPerBuffer int
}

func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		SampleRate:      44100,
		FramesPerBuffer: 1024,
	}
}

// PortaudioSource captures mono microphone audio through PortAudio.
type PortaudioSource struct {
	cfg    SourceConfig
	stream *portaudio.Stream
	buf    []int32
}

var _ Source = (*PortaudioSource)(nil)

func NewPortaudioSource(cfg SourceConfig) *PortaudioSource {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.FramesPerBuffer == 0 {
		cfg.FramesPerBuffer = 1024
	}
	return &PortaudioSource{
		cfg: cfg,
		buf: make([]int32, cfg.FramesPerBuffer),
	}
}

func (s *PortaudioSource) Open() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	stream, err := portaudio.OpenDefaultStream(1, 0, s.cfg.SampleRate, s.cfg.FramesPerBuffer, s.buf)
	if err != nil {
		portaudio.Terminate()
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return err
	}
	s.stream = stream
	return nil
}

func (s *PortaudioSource) Read() ([]byte, error) {
	if s.stream == nil {
		return nil, errors.New("capture: stream not opened")
	}
	if err := s.stream.Read(); err != nil {
		return nil, err
	}
	return s.convertToBytes(), nil
}

// convertToBytes downsamples the 32-bit buffer to 16-bit LE PCM.
func (s *PortaudioSource) convertToBytes() []byte {
	var buf bytes.Buffer
	for _, sample := range s.buf {
		sample16 := int16(sample >> 16)
		binary.Write(&buf, binary.LittleEndian, sample16)
	}
	return buf.Bytes()
}

func (s *PortaudioSource) Close() error {
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	portaudio.Terminate()
	return err
}
