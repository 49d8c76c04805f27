package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/markmusic27/maestro/capture"
	"github.com/markmusic27/maestro/connection"
	"github.com/markmusic27/maestro/frame"
	"github.com/markmusic27/maestro/generation"
)

// Commander sends commands over the live socket and tears it down.
// Satisfied by *connection.Manager.
type Commander interface {
	Send(v any) error
	Close(intentional bool)
}

// Recorder owns the microphone capture lifecycle.
// Satisfied by *capture.Controller.
type Recorder interface {
	Start() error
	Stop() ([]capture.Chunk, error)
	Active() bool
}

// CoachingRunner runs the feedback pipeline for the machine: request
// coaching over the socket, then narrate a received result.
type CoachingRunner interface {
	// RequestCoaching encodes the chunks and sends get_coaching.
	RequestCoaching(chunks []capture.Chunk, culture, instrument string) error

	// Narrate produces and speaks the narration for result. It always
	// returns a script (collaborator failures fall back to a template) and
	// only returns once playback has finished, failed, or been skipped.
	Narrate(ctx context.Context, result CoachingResult, history []Round) string
}

// SongGenerator drives one music generation round to a terminal clip.
// Satisfied by *generation.Poller.
type SongGenerator interface {
	Generate(ctx context.Context, req generation.SubmitRequest) (generation.Clip, error)
}

// Config identifies the session and tunes the machine.
type Config struct {
	InstrumentID   string
	InstrumentName string
	Culture        string
	TutorID        string
	SessionsDir    string

	// TickInterval is how often elapsed time advances while Playing.
	// Defaults to one second; tests shorten it.
	TickInterval time.Duration
}

// Deps are the machine's collaborators. Generator and Renderer may be nil.
type Deps struct {
	Commander Commander
	Recorder  Recorder
	Coach     CoachingRunner
	Generator SongGenerator
	Renderer  *frame.Renderer
}

// Machine is the top-level session controller. All mutation happens under one
// mutex; asynchronous completions carry the round they were started for and
// are discarded when a later round (or teardown) has superseded them.
type Machine struct {
	cfg  Config
	deps Deps

	mu          sync.Mutex
	id          string
	state       State
	elapsed     int
	notes       []NoteEvent
	round       int
	roundCtx    context.Context
	roundCancel context.CancelFunc
	micActive   bool
	connStatus  connection.Status
	statusText  string
	loading     bool
	history     []Round
	result      *CoachingResult
	script      string
	coachErr    string
	clip        *generation.Clip
	clipErr     error
	createdAt   time.Time
}

func NewMachine(cfg Config, deps Deps) *Machine {
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Second
	}
	return &Machine{
		cfg:       cfg,
		deps:      deps,
		id:        newSessionID(),
		state:     StateIdle,
		createdAt: time.Now(),
	}
}

// ID returns the session identifier.
func (m *Machine) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Elapsed returns the played seconds of the current round.
func (m *Machine) Elapsed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsed
}

// Notes returns a copy of the note events recorded this round.
func (m *Machine) Notes() []NoteEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	notes := make([]NoteEvent, len(m.notes))
	copy(notes, m.notes)
	return notes
}

// Result returns the round's coaching result (nil before one arrives) and
// the service error message, if the round failed.
func (m *Machine) Result() (*CoachingResult, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.result == nil {
		return nil, m.coachErr
	}
	result := *m.result
	return &result, m.coachErr
}

// Script returns the narration spoken for the latest round.
func (m *Machine) Script() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.script
}

// Clip returns the generated clip for the latest round, if any.
func (m *Machine) Clip() (*generation.Clip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clip == nil {
		return nil, m.clipErr
	}
	clip := *m.clip
	return &clip, m.clipErr
}

// ConnectionStatus returns the last observed socket state.
func (m *Machine) ConnectionStatus() connection.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connStatus
}

// MicActive reports whether audio is being captured for the current round.
func (m *Machine) MicActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.micActive
}

// ── UI intents ───────────────────────────────────────────────────────────

// Start begins a round: resets elapsed time and note events, sends the start
// command, and begins capture. Valid from Idle and Feedback.
func (m *Machine) Start() error {
	m.mu.Lock()
	if m.state != StateIdle && m.state != StateFeedback {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("session: cannot start from %s", state)
	}
	m.round++
	round := m.round
	m.elapsed = 0
	m.notes = nil
	m.coachErr = ""
	m.state = StatePlaying
	if m.roundCancel != nil {
		m.roundCancel()
	}
	m.roundCtx, m.roundCancel = context.WithCancel(context.Background())
	m.mu.Unlock()

	_ = m.deps.Commander.Send(connection.StartCommand())

	if err := m.deps.Recorder.Start(); err != nil {
		// Microphone denied or missing: the round proceeds without audio.
		log.Printf("session: capture unavailable, continuing without audio: %v", err)
	} else {
		m.mu.Lock()
		m.micActive = true
		m.mu.Unlock()
	}

	go m.tickLoop(round)
	return nil
}

// Pause suspends the round. Elapsed time stops advancing.
func (m *Machine) Pause() error {
	m.mu.Lock()
	if m.state != StatePlaying {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("session: cannot pause from %s", state)
	}
	m.state = StatePaused
	m.mu.Unlock()
	return m.deps.Commander.Send(connection.PauseCommand())
}

// Resume continues a paused round.
func (m *Machine) Resume() error {
	m.mu.Lock()
	if m.state != StatePaused {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("session: cannot resume from %s", state)
	}
	m.state = StatePlaying
	m.mu.Unlock()
	return m.deps.Commander.Send(connection.ResumeCommand())
}

// Stop ends the round: sends the stop command, flushes capture, clears the
// previous feedback state, and hands the audio to the coaching pipeline.
func (m *Machine) Stop() error {
	m.mu.Lock()
	if m.state != StatePlaying && m.state != StatePaused {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("session: cannot stop from %s", state)
	}
	m.state = StateProcessing
	m.result = nil
	m.script = ""
	m.coachErr = ""
	m.loading = false
	m.clip = nil
	m.clipErr = nil
	m.mu.Unlock()

	_ = m.deps.Commander.Send(connection.StopCommand())

	chunks, err := m.deps.Recorder.Stop()
	if err != nil {
		log.Printf("session: capture stop: %v", err)
	}
	m.mu.Lock()
	m.micActive = false
	m.mu.Unlock()

	if err := m.deps.Coach.RequestCoaching(chunks, m.cfg.Culture, m.cfg.InstrumentName); err != nil {
		log.Printf("session: coaching request: %v", err)
	}
	return nil
}

// End tears the session down from any state: intentional socket close, stop
// any active capture, cancel the round's async work, persist the summary.
// Terminal.
func (m *Machine) End() error {
	m.mu.Lock()
	if m.state == StateEnded {
		m.mu.Unlock()
		return nil
	}
	m.state = StateEnded
	if m.roundCancel != nil {
		m.roundCancel()
	}
	played := m.round > 0
	m.mu.Unlock()

	m.deps.Commander.Close(true)
	if m.deps.Recorder.Active() {
		if _, err := m.deps.Recorder.Stop(); err != nil {
			log.Printf("session: capture stop: %v", err)
		}
	}
	if m.deps.Renderer != nil {
		m.deps.Renderer.Teardown()
	}

	if !played {
		return nil
	}
	summary, err := m.Summary()
	if err != nil {
		return err
	}
	path, err := SaveSummary(m.cfg.SessionsDir, summary)
	if err != nil {
		return err
	}
	log.Printf("session: saved summary %s", path)
	return nil
}

// SetInstrument resolves the instrument's GM program and forwards it to the
// service. Unknown ids pass gmProgram through as given.
func (m *Machine) SetInstrument(instrumentID string, gmProgram *int) error {
	if program, ok := gmPrograms[instrumentID]; ok {
		gmProgram = &program
	}
	m.mu.Lock()
	m.cfg.InstrumentID = instrumentID
	m.mu.Unlock()
	return m.deps.Commander.Send(connection.SetInstrumentCommand(instrumentID, gmProgram))
}

// SetOverlays toggles the service-side video overlays.
func (m *Machine) SetOverlays(enabled bool) error {
	return m.deps.Commander.Send(connection.SetOverlaysCommand(enabled))
}

// Summary builds the persistable session record.
func (m *Machine) Summary() (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.round == 0 {
		return Summary{}, ErrNoSessionData
	}
	notes := make([]NoteEvent, len(m.notes))
	copy(notes, m.notes)
	return Summary{
		SessionID:         m.id,
		InstrumentID:      m.cfg.InstrumentID,
		InstrumentName:    m.cfg.InstrumentName,
		Culture:           m.cfg.Culture,
		TutorID:           m.cfg.TutorID,
		RecordedEvents:    notes,
		RecordingDuration: float64(m.elapsed),
		Rounds:            len(m.history),
		CreatedAt:         float64(m.createdAt.Unix()),
	}, nil
}

// ── Inbound socket events (connection.Handler) ───────────────────────────

func (m *Machine) OnFrame(frameBytes []byte) {
	m.mu.Lock()
	ended := m.state == StateEnded
	m.mu.Unlock()
	if ended || m.deps.Renderer == nil {
		return
	}
	m.deps.Renderer.OnFrame(frameBytes)
}

func (m *Machine) OnStatusChange(status connection.Status) {
	m.mu.Lock()
	m.connStatus = status
	m.mu.Unlock()
}

// OnMessage applies one decoded service message. Messages that are invalid
// for the current state are discarded.
func (m *Machine) OnMessage(msg connection.Message) {
	switch msg := msg.(type) {
	case connection.MidiMessage:
		m.applyNotes(msg)
	case connection.StatusMessage:
		m.mu.Lock()
		m.statusText = msg.Text
		m.mu.Unlock()
	case connection.CoachingLoadingMessage:
		m.mu.Lock()
		if m.state == StateProcessing {
			m.loading = true
			m.statusText = msg.Text
		}
		m.mu.Unlock()
	case connection.CoachingMessage:
		m.applyCoaching(msg)
	case connection.CoachingErrorMessage:
		m.applyCoachingError(msg)
	}
}

func (m *Machine) applyNotes(msg connection.MidiMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StatePlaying, StatePaused, StateProcessing:
	default:
		return
	}
	for _, e := range msg.Events {
		m.notes = append(m.notes, NoteEvent{
			Time:     e.Time,
			Pitch:    e.Pitch,
			Velocity: e.Velocity,
			Duration: e.Duration,
			Label:    e.Label,
		})
	}
}

func (m *Machine) applyCoaching(msg connection.CoachingMessage) {
	m.mu.Lock()
	if m.state != StateProcessing {
		m.mu.Unlock()
		return
	}
	result := CoachingResult{
		VisualCoach: feedbackFromMessage(msg.VisualCoach),
		AudioCoach:  feedbackFromMessage(msg.AudioCoach),
		TotalTime:   msg.TotalTime,
	}
	m.result = &result
	m.loading = false
	round := m.round
	ctx := m.roundCtx
	history := make([]Round, len(m.history))
	copy(history, m.history)
	m.mu.Unlock()

	go m.narrate(ctx, round, result, history)
	go m.generate(ctx, round, result)
}

func (m *Machine) applyCoachingError(msg connection.CoachingErrorMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateProcessing {
		return
	}
	m.coachErr = msg.Error
	m.loading = false
	m.state = StateFeedback
}

// ── Round-scoped async completions ───────────────────────────────────────

func (m *Machine) narrate(ctx context.Context, round int, result CoachingResult, history []Round) {
	script := m.deps.Coach.Narrate(ctx, result, history)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.round != round || m.state != StateProcessing {
		// A later round or teardown superseded this narration.
		return
	}
	m.script = script
	m.history = append(m.history, Round{Result: result, Narration: script})
	m.state = StateFeedback
}

func (m *Machine) generate(ctx context.Context, round int, result CoachingResult) {
	if m.deps.Generator == nil {
		return
	}
	req := generation.SubmitRequest{
		Style:        fmt.Sprintf("%s, %s", m.cfg.InstrumentName, m.cfg.Culture),
		Title:        fmt.Sprintf("Practice Round %d", round),
		Prompt:       result.VisualCoach.WhatWentWell,
		Instrumental: true,
	}
	clip, err := m.deps.Generator.Generate(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.round != round || m.state == StateEnded {
		return
	}
	m.clip = &clip
	m.clipErr = err
}

func (m *Machine) tickLoop(round int) {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	for range ticker.C {
		m.mu.Lock()
		if m.round != round || m.state == StateProcessing || m.state == StateFeedback || m.state == StateEnded {
			m.mu.Unlock()
			return
		}
		if m.state == StatePlaying {
			m.elapsed++
		}
		m.mu.Unlock()
	}
}

func feedbackFromMessage(f connection.CoachFeedback) CoachFeedback {
	return CoachFeedback{
		WhatWentWell:     f.WhatWentWell,
		WhatCouldImprove: f.WhatCouldImprove,
		SpecificTip:      f.SpecificTip,
		Instrument:       f.Instrument,
		InferenceTime:    f.InferenceTime,
	}
}
