package connection

import "encoding/json"

// ── Client → server commands ─────────────────────────────────────────────

type actionCommand struct {
	Action string `json:"action"`
}

// StartCommand tells the coaching service to begin a recording round.
func StartCommand() any { return actionCommand{Action: "start"} }

// StopCommand ends the recording round; the service replies with a midi bundle.
func StopCommand() any { return actionCommand{Action: "stop"} }

func PauseCommand() any  { return actionCommand{Action: "pause"} }
func ResumeCommand() any { return actionCommand{Action: "resume"} }

type setInstrumentCommand struct {
	Action       string `json:"action"`
	InstrumentID string `json:"instrumentId"`
	GMProgram    *int   `json:"gmProgram,omitempty"`
}

// SetInstrumentCommand selects the instrument voice on the service side.
// gmProgram is a fallback for instruments outside the service's built-in map.
func SetInstrumentCommand(instrumentID string, gmProgram *int) any {
	return setInstrumentCommand{Action: "set_instrument", InstrumentID: instrumentID, GMProgram: gmProgram}
}

type setOverlaysCommand struct {
	Action  string `json:"action"`
	Enabled bool   `json:"enabled"`
}

func SetOverlaysCommand(enabled bool) any {
	return setOverlaysCommand{Action: "set_overlays", Enabled: enabled}
}

type getCoachingCommand struct {
	Action      string `json:"action"`
	AudioBase64 string `json:"audio_base64"`
	Culture     string `json:"culture"`
	Instrument  string `json:"instrument"`
}

// GetCoachingCommand requests structured feedback for the captured round.
// audioBase64 is empty when the microphone was unavailable.
func GetCoachingCommand(audioBase64, culture, instrument string) any {
	return getCoachingCommand{
		Action:      "get_coaching",
		AudioBase64: audioBase64,
		Culture:     culture,
		Instrument:  instrument,
	}
}

// ── Server → client messages ─────────────────────────────────────────────

// Message is one decoded inbound service message. The set is closed: the
// dispatcher only ever produces the variants below.
type Message interface {
	messageType() string
}

// NoteEvent is one detected note, wire-shaped as the service emits it.
type NoteEvent struct {
	Time     float64 `json:"time"`
	Pitch    int     `json:"midi_note"`
	Velocity int     `json:"velocity"`
	Duration float64 `json:"duration"`
	Label    string  `json:"name"`
}

// MidiMessage carries the note events detected during a round.
type MidiMessage struct {
	Events []NoteEvent `json:"events"`
	Total  int         `json:"total"`
}

func (MidiMessage) messageType() string { return "midi" }

// StatusMessage is an informational service-state update.
type StatusMessage struct {
	Recording bool   `json:"recording"`
	Text      string `json:"message"`
}

func (StatusMessage) messageType() string { return "status" }

// CoachingLoadingMessage signals that feedback inference has started.
type CoachingLoadingMessage struct {
	Text string `json:"message"`
}

func (CoachingLoadingMessage) messageType() string { return "coaching_loading" }

// CoachFeedback is one coach's structured feedback block.
type CoachFeedback struct {
	WhatWentWell     string  `json:"what_went_well"`
	WhatCouldImprove string  `json:"what_could_improve"`
	SpecificTip      string  `json:"specific_tip"`
	Instrument       string  `json:"instrument"`
	InferenceTime    float64 `json:"inference_time"`
}

// CoachingMessage is the successful feedback result for a round.
type CoachingMessage struct {
	VisualCoach CoachFeedback `json:"visual_coach"`
	AudioCoach  CoachFeedback `json:"audio_coach"`
	TotalTime   float64       `json:"total_time"`
	Instrument  string        `json:"instrument"`
}

func (CoachingMessage) messageType() string { return "coaching" }

// CoachingErrorMessage is a service-reported feedback failure.
type CoachingErrorMessage struct {
	Error string `json:"error"`
}

func (CoachingErrorMessage) messageType() string { return "coaching_error" }

// ── Decoding ─────────────────────────────────────────────────────────────

var decoders = map[string]func([]byte) (Message, error){
	"midi": func(data []byte) (Message, error) {
		var m MidiMessage
		return m, json.Unmarshal(data, &m)
	},
	"status": func(data []byte) (Message, error) {
		var m StatusMessage
		return m, json.Unmarshal(data, &m)
	},
	"coaching_loading": func(data []byte) (Message, error) {
		var m CoachingLoadingMessage
		return m, json.Unmarshal(data, &m)
	},
	"coaching": func(data []byte) (Message, error) {
		var m CoachingMessage
		return m, json.Unmarshal(data, &m)
	},
	"coaching_error": func(data []byte) (Message, error) {
		var m CoachingErrorMessage
		return m, json.Unmarshal(data, &m)
	},
}

// decode parses a text payload into one of the closed Message variants.
// Unknown types and malformed payloads yield (nil, false): the caller drops
// them without raising.
func decode(data []byte) (Message, bool) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, false
	}
	dec, ok := decoders[envelope.Type]
	if !ok {
		return nil, false
	}
	msg, err := dec(data)
	if err != nil {
		return nil, false
	}
	return msg, true
}
