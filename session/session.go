// Package session runs one live practice session: it owns the state machine,
// the note-event log, session timing, and the coordination between the socket
// connection, microphone capture, and the feedback pipelines.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the session lifecycle state. Transitions are restricted to the
// ones the machine implements; everything else is discarded.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateProcessing
	StateFeedback
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateProcessing:
		return "processing"
	case StateFeedback:
		return "feedback"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// ErrNoSessionData means a summary was requested before any round was played.
// This is the one unrecoverable input error at this layer: the caller should
// send the user back to the start of the flow.
var ErrNoSessionData = errors.New("session: no captured session data")

// NoteEvent is one detected note. The list is cleared on each new Playing
// transition and append-only while the round runs.
type NoteEvent struct {
	Time     float64 `json:"time"`
	Pitch    int     `json:"midi_note"`
	Velocity int     `json:"velocity"`
	Duration float64 `json:"duration"`
	Label    string  `json:"name"`
}

// CoachFeedback is one coach's structured feedback.
type CoachFeedback struct {
	WhatWentWell     string
	WhatCouldImprove string
	SpecificTip      string
	Instrument       string
	InferenceTime    float64
}

// CoachingResult is the full feedback for one round. Immutable once received.
type CoachingResult struct {
	VisualCoach CoachFeedback
	AudioCoach  CoachFeedback
	TotalTime   float64
}

// Round is one completed Playing→Feedback cycle, retained for narration
// continuity across repeated rounds.
type Round struct {
	Result    CoachingResult
	Narration string
}

// Summary is the persisted record of a finished session.
type Summary struct {
	SessionID         string      `json:"session_id"`
	InstrumentID      string      `json:"instrument_id"`
	InstrumentName    string      `json:"instrument_name"`
	Culture           string      `json:"culture"`
	TutorID           string      `json:"tutor_id,omitempty"`
	RecordedEvents    []NoteEvent `json:"recorded_events"`
	RecordingDuration float64     `json:"recording_duration"`
	Rounds            int         `json:"rounds"`
	CreatedAt         float64     `json:"created_at"`
}

// SaveSummary writes the summary as JSON under dir. Returns the file path.
func SaveSummary(dir string, s Summary) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("session: create output dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("session: marshal summary: %w", err)
	}
	path := filepath.Join(dir, s.SessionID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("session: write summary: %w", err)
	}
	return path, nil
}

func newSessionID() string {
	return fmt.Sprintf("session_%d_%d", time.Now().Unix(), os.Getpid())
}

// gmPrograms maps instrument ids to General MIDI program numbers for
// set_instrument. Instruments outside the map pass a caller-provided program
// through to the service.
var gmPrograms = map[string]int{
	"guitar":  25,
	"violin":  40,
	"cello":   42,
	"ukulele": 24,
	"bass":    32,
	"harp":    46,
	"banjo":   105,
	"sitar":   104,
}
