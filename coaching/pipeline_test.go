package coaching

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/markmusic27/maestro/capture"
	"github.com/markmusic27/maestro/session"
	"github.com/markmusic27/maestro/transcript"
)

type fakeCommander struct {
	mu   sync.Mutex
	sent []any
}

func (c *fakeCommander) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, v)
	return nil
}

type fakeTranscripts struct {
	mu     sync.Mutex
	reqs   []transcript.Request
	script string
	err    error
}

func (f *fakeTranscripts) Narrate(ctx context.Context, req transcript.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.script, f.err
}

type fakeSynth struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string, out chan<- []byte) error {
	defer close(out)
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	out <- []byte{1, 2, 3, 4}
	return nil
}

func (f *fakeSynth) Close() error { return nil }

// fakePlayer drains the stream and records whether check held mid-playback.
type fakePlayer struct {
	check      func() bool
	checkHeld  bool
	chunksSeen int
	err        error
}

func (p *fakePlayer) Initialize() error { return nil }
func (p *fakePlayer) Terminate()        {}

func (p *fakePlayer) PlayStream(ctx context.Context, audioData <-chan []byte) error {
	if p.check != nil {
		p.checkHeld = p.check()
	}
	for range audioData {
		p.chunksSeen++
	}
	return p.err
}

var testResult = session.CoachingResult{
	VisualCoach: session.CoachFeedback{
		WhatWentWell:     "Your posture stayed relaxed.",
		WhatCouldImprove: "The left wrist collapses on chord changes.",
		SpecificTip:      "Practice the F to C change slowly.",
		Instrument:       "guitar",
	},
	AudioCoach: session.CoachFeedback{
		WhatWentWell:     "Steady tempo throughout.",
		WhatCouldImprove: "Some notes ring unevenly.",
		SpecificTip:      "Let each note sustain fully before the next.",
	},
}

func TestFallbackScriptIsDeterministic(t *testing.T) {
	want := "Here's what I saw in your playing. Your posture stayed relaxed. " +
		"The left wrist collapses on chord changes. " +
		"Try this: Practice the F to C change slowly. " +
		"Now for how it sounded. Steady tempo throughout. " +
		"Some notes ring unevenly. " +
		"One more tip: Let each note sustain fully before the next."
	got := FallbackScript(testResult)
	if got != want {
		t.Errorf("fallback script:\n got %q\nwant %q", got, want)
	}
	if again := FallbackScript(testResult); again != got {
		t.Error("same result produced different scripts")
	}
}

func TestNarrateUsesTranscriptScript(t *testing.T) {
	transcripts := &fakeTranscripts{script: "A generated narration."}
	synth := &fakeSynth{}
	player := &fakePlayer{}
	p := New(Config{Culture: "cuban"}, &fakeCommander{}, transcripts, synth, player)
	player.check = p.Speaking

	history := []session.Round{{Result: testResult, Narration: "round one narration"}}
	script := p.Narrate(context.Background(), testResult, history)
	if script != "A generated narration." {
		t.Errorf("script = %q", script)
	}

	if len(transcripts.reqs) != 1 {
		t.Fatalf("transcript requests = %d, want 1", len(transcripts.reqs))
	}
	req := transcripts.reqs[0]
	if req.Culture != "cuban" || req.Instrument != "guitar" {
		t.Errorf("culture/instrument = %q/%q", req.Culture, req.Instrument)
	}
	if len(req.History) != 1 || req.History[0].Narration != "round one narration" {
		t.Errorf("history = %+v", req.History)
	}

	if len(synth.texts) != 1 || synth.texts[0] != script {
		t.Errorf("synthesized texts = %v, want the script", synth.texts)
	}
	if player.chunksSeen == 0 {
		t.Error("player saw no audio")
	}
	if !player.checkHeld {
		t.Error("speaking flag not set during playback")
	}
	if p.Speaking() {
		t.Error("speaking flag still set after narration")
	}
}

func TestNarrateFallsBackOnTranscriptFailure(t *testing.T) {
	transcripts := &fakeTranscripts{err: errors.New("collaborator down")}
	synth := &fakeSynth{}
	p := New(Config{}, &fakeCommander{}, transcripts, synth, &fakePlayer{})

	script := p.Narrate(context.Background(), testResult, nil)
	if script != FallbackScript(testResult) {
		t.Errorf("script = %q, want the fallback", script)
	}
	if len(synth.texts) != 1 || synth.texts[0] != script {
		t.Errorf("fallback was not spoken: %v", synth.texts)
	}
}

func TestNarrateFallsBackWithNoTranscriptClient(t *testing.T) {
	p := New(Config{}, &fakeCommander{}, nil, &fakeSynth{}, &fakePlayer{})
	if script := p.Narrate(context.Background(), testResult, nil); script != FallbackScript(testResult) {
		t.Errorf("script = %q, want the fallback", script)
	}
}

func TestNarrateSurvivesSpeechFailure(t *testing.T) {
	transcripts := &fakeTranscripts{script: "A generated narration."}
	synth := &fakeSynth{err: errors.New("tts down")}
	p := New(Config{}, &fakeCommander{}, transcripts, synth, &fakePlayer{})

	if script := p.Narrate(context.Background(), testResult, nil); script != "A generated narration." {
		t.Errorf("script = %q, want the transcript script despite playback failure", script)
	}
	if p.Speaking() {
		t.Error("speaking flag stuck after failed playback")
	}
}

func TestNarrateWithoutSpeechBackend(t *testing.T) {
	transcripts := &fakeTranscripts{script: "A generated narration."}
	p := New(Config{}, &fakeCommander{}, transcripts, nil, nil)
	if script := p.Narrate(context.Background(), testResult, nil); script != "A generated narration." {
		t.Errorf("script = %q", script)
	}
}

func TestRequestCoachingCommand(t *testing.T) {
	commander := &fakeCommander{}
	p := New(Config{Culture: "cuban"}, commander, nil, nil, nil)

	chunks := []capture.Chunk{{1, 2}, {3, 4}}
	if err := p.RequestCoaching(chunks, "cuban", "guitar"); err != nil {
		t.Fatal(err)
	}
	if len(commander.sent) != 1 {
		t.Fatalf("sent %d commands, want 1", len(commander.sent))
	}

	data, err := json.Marshal(commander.sent[0])
	if err != nil {
		t.Fatal(err)
	}
	var cmd struct {
		Action      string `json:"action"`
		AudioBase64 string `json:"audio_base64"`
		Culture     string `json:"culture"`
		Instrument  string `json:"instrument"`
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		t.Fatal(err)
	}
	if cmd.Action != "get_coaching" {
		t.Errorf("action = %q", cmd.Action)
	}
	if cmd.Culture != "cuban" || cmd.Instrument != "guitar" {
		t.Errorf("culture/instrument = %q/%q", cmd.Culture, cmd.Instrument)
	}
	want := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
	if cmd.AudioBase64 != want {
		t.Errorf("audio payload = %q, want %q", cmd.AudioBase64, want)
	}
}

func TestEncodePayload(t *testing.T) {
	if got := EncodePayload(nil); got != "" {
		t.Errorf("empty capture encoded as %q, want empty string", got)
	}
	got := EncodePayload([]capture.Chunk{{0xde, 0xad}, {0xbe, 0xef}})
	decoded, err := base64.StdEncoding.DecodeString(got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("payload decodes to % x", decoded)
	}
}
