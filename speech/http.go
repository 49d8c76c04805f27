package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// HTTPConfig configures the proxy-backed synthesizer.
type HTTPConfig struct {
	Endpoint string
	ApiKey   string
	Options  Options
}

// HTTPSynthesizer speaks through the backend speech proxy: POST text, receive
// an MP3 stream, decode it to PCM for playback.
type HTTPSynthesizer struct {
	endpoint   string
	apiKey     string
	options    Options
	httpClient *http.Client
}

var _ Synthesizer = (*HTTPSynthesizer)(nil)

func NewHTTPSynthesizer(config HTTPConfig) *HTTPSynthesizer {
	options := config.Options
	if options.Voice == "" {
		options = DefaultOptions()
	}
	return &HTTPSynthesizer{
		endpoint:   config.Endpoint,
		apiKey:     config.ApiKey,
		options:    options,
		httpClient: &http.Client{},
	}
}

type synthesisRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

func (c *HTTPSynthesizer) Synthesize(ctx context.Context, text string, out chan<- []byte) error {
	defer close(out)

	reqBody, err := json.Marshal(synthesisRequest{
		Text:  text,
		Voice: c.options.Voice,
		Speed: c.options.Speed,
	})
	if err != nil {
		return fmt.Errorf("speech: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("speech: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("speech: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("speech: synthesis failed with status %d: %s", resp.StatusCode, string(body))
	}

	decoder, err := mp3.NewDecoder(resp.Body)
	if err != nil {
		return fmt.Errorf("speech: decode audio: %w", err)
	}

	buf := make([]byte, 4096)
	for {
		n, err := decoder.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case out <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("speech: decode audio: %w", err)
		}
	}
}

func (c *HTTPSynthesizer) Close() error {
	return nil
}
