// Package coaching turns captured audio and prior rounds into a spoken
// narration: coaching request over the live socket, transcript synthesis,
// speech synthesis, playback. Every stage degrades rather than blocks.
package coaching

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/markmusic27/maestro/capture"
	"github.com/markmusic27/maestro/connection"
	"github.com/markmusic27/maestro/session"
	"github.com/markmusic27/maestro/sound"
	"github.com/markmusic27/maestro/speech"
	"github.com/markmusic27/maestro/transcript"
)

// Commander sends commands on the live socket.
type Commander interface {
	Send(v any) error
}

// TranscriptClient produces the narration script for a coaching result.
// Satisfied by *transcript.Client.
type TranscriptClient interface {
	Narrate(ctx context.Context, req transcript.Request) (string, error)
}

// Config identifies the session for collaborator requests.
type Config struct {
	Culture string
}

// Pipeline sequences one round's feedback narration. It reuses the session's
// live socket for the coaching request instead of opening its own channel.
type Pipeline struct {
	cfg         Config
	commander   Commander
	transcripts TranscriptClient
	synth       speech.Synthesizer
	player      sound.Player

	speaking atomic.Bool
}

func New(cfg Config, commander Commander, transcripts TranscriptClient, synth speech.Synthesizer, player sound.Player) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		commander:   commander,
		transcripts: transcripts,
		synth:       synth,
		player:      player,
	}
}

// Speaking reports whether narration audio is currently playing.
func (p *Pipeline) Speaking() bool {
	return p.speaking.Load()
}

// EncodePayload packs the ordered chunk list into a single opaque payload.
// An empty capture encodes as the empty string.
func EncodePayload(chunks []capture.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var buf bytes.Buffer
	for _, chunk := range chunks {
		buf.Write(chunk)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// RequestCoaching sends get_coaching for the captured round. The result
// arrives back through the socket as a coaching or coaching_error message.
func (p *Pipeline) RequestCoaching(chunks []capture.Chunk, culture, instrument string) error {
	cmd := connection.GetCoachingCommand(EncodePayload(chunks), culture, instrument)
	return p.commander.Send(cmd)
}

// Narrate produces the narration script for result and speaks it. Collaborator
// failures degrade: a transcript failure falls back to the deterministic
// template, a speech failure skips playback. The returned script is always
// non-empty for a non-empty result.
func (p *Pipeline) Narrate(ctx context.Context, result session.CoachingResult, history []session.Round) string {
	script, err := p.requestScript(ctx, result, history)
	if err != nil {
		log.Printf("coaching: transcript collaborator failed, using fallback: %v", err)
		script = FallbackScript(result)
	}

	if err := p.speak(ctx, script); err != nil {
		log.Printf("coaching: narration playback skipped: %v", err)
	}
	return script
}

func (p *Pipeline) requestScript(ctx context.Context, result session.CoachingResult, history []session.Round) (string, error) {
	if p.transcripts == nil {
		return "", errors.New("coaching: no transcript collaborator configured")
	}
	req := transcript.Request{
		Culture:    p.cfg.Culture,
		Instrument: result.VisualCoach.Instrument,
		Current:    roundPayload(result, ""),
	}
	for _, r := range history {
		req.History = append(req.History, roundPayload(r.Result, r.Narration))
	}
	return p.transcripts.Narrate(ctx, req)
}

// FallbackScript builds the narration from the structured feedback fields
// alone. Fixed template sentences: the same result always yields the same
// script.
func FallbackScript(r session.CoachingResult) string {
	return fmt.Sprintf(
		"Here's what I saw in your playing. %s %s Try this: %s Now for how it sounded. %s %s One more tip: %s",
		r.VisualCoach.WhatWentWell,
		r.VisualCoach.WhatCouldImprove,
		r.VisualCoach.SpecificTip,
		r.AudioCoach.WhatWentWell,
		r.AudioCoach.WhatCouldImprove,
		r.AudioCoach.SpecificTip,
	)
}

// speak synthesizes the script and plays it to completion, exposing the
// speaking flag for the duration.
func (p *Pipeline) speak(ctx context.Context, text string) error {
	if p.synth == nil || p.player == nil {
		return errors.New("coaching: no speech backend configured")
	}

	p.speaking.Store(true)
	defer p.speaking.Store(false)

	audioData := make(chan []byte, 32)
	synthErr := make(chan error, 1)
	go func() {
		// Synthesize closes audioData when it finishes or fails.
		synthErr <- p.synth.Synthesize(ctx, text, audioData)
	}()

	if err := p.player.PlayStream(ctx, audioData); err != nil {
		return err
	}
	return <-synthErr
}

func roundPayload(result session.CoachingResult, narration string) transcript.Round {
	return transcript.Round{
		VisualCoach: feedbackPayload(result.VisualCoach),
		AudioCoach:  feedbackPayload(result.AudioCoach),
		Narration:   narration,
	}
}

func feedbackPayload(f session.CoachFeedback) transcript.Feedback {
	return transcript.Feedback{
		WhatWentWell:     f.WhatWentWell,
		WhatCouldImprove: f.WhatCouldImprove,
		SpecificTip:      f.SpecificTip,
		Instrument:       f.Instrument,
	}
}
