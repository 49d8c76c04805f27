package speech

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	tts "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
)

const yandexTTSEndpoint = "tts.api.cloud.yandex.net:443"

// YandexConfig configures the SpeechKit synthesizer.
type YandexConfig struct {
	ApiKey   string
	FolderID string
	Options  Options
}

// YandexSynthesizer narrates coaching scripts through Yandex SpeechKit v3.
// Output is raw LINEAR16 PCM, ready for the sound player.
type YandexSynthesizer struct {
	client   tts.SynthesizerClient
	conn     *grpc.ClientConn
	apiKey   string
	folderID string
	options  Options
}

var _ Synthesizer = (*YandexSynthesizer)(nil)

func NewYandexSynthesizer(config YandexConfig) (*YandexSynthesizer, error) {
	creds := credentials.NewTLS(&tls.Config{})
	conn, err := grpc.Dial(yandexTTSEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("speech: connect to synthesis service: %w", err)
	}

	options := config.Options
	if options.Voice == "" {
		options = DefaultOptions()
	}

	return &YandexSynthesizer{
		client:   tts.NewSynthesizerClient(conn),
		conn:     conn,
		apiKey:   config.ApiKey,
		folderID: config.FolderID,
		options:  options,
	}, nil
}

func (c *YandexSynthesizer) Synthesize(ctx context.Context, text string, out chan<- []byte) error {
	defer close(out)

	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Api-Key "+c.apiKey)
	ctx = metadata.AppendToOutgoingContext(ctx, "x-folder-id", c.folderID)

	stream, err := c.client.UtteranceSynthesis(ctx, c.buildRequest(text))
	if err != nil {
		return fmt.Errorf("speech: start synthesis: %w", err)
	}

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("speech: receive audio: %w", err)
		}
		if audioChunk := resp.GetAudioChunk(); audioChunk != nil {
			select {
			case out <- audioChunk.GetData():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (c *YandexSynthesizer) buildRequest(text string) *tts.UtteranceSynthesisRequest {
	req := &tts.UtteranceSynthesisRequest{}
	req.SetModel("general")
	req.SetText(text)

	voiceHint := &tts.Hints{}
	voiceHint.SetVoice(c.options.Voice)
	speedHint := &tts.Hints{}
	speedHint.SetSpeed(c.options.Speed)
	req.SetHints([]*tts.Hints{voiceHint, speedHint})

	// Raw PCM so the player needs no container parsing.
	rawAudio := &tts.RawAudio{}
	rawAudio.SetAudioEncoding(tts.RawAudio_LINEAR16_PCM)
	rawAudio.SetSampleRateHertz(int64(c.options.SampleRate))
	audioSpec := &tts.AudioFormatOptions{}
	audioSpec.SetRawAudio(rawAudio)
	req.SetOutputAudioSpec(audioSpec)

	req.SetLoudnessNormalizationType(tts.UtteranceSynthesisRequest_LUFS)
	return req
}

func (c *YandexSynthesizer) Close() error {
	return c.conn.Close()
}
