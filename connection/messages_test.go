package connection

import "testing"

func TestDecodeKnownTypes(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{"midi", `{"type":"midi","events":[{"time":0.5,"midi_note":64,"velocity":90,"duration":0.25,"name":"E4"}],"total":1}`, "midi"},
		{"status", `{"type":"status","recording":true,"message":"Recording started"}`, "status"},
		{"loading", `{"type":"coaching_loading","message":"Analyzing..."}`, "coaching_loading"},
		{"coaching", `{"type":"coaching","visual_coach":{"what_went_well":"steady"},"audio_coach":{},"total_time":3.2}`, "coaching"},
		{"error", `{"type":"coaching_error","error":"model overloaded"}`, "coaching_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, ok := decode([]byte(tc.data))
			if !ok {
				t.Fatalf("decode failed for %s", tc.data)
			}
			if got := msg.messageType(); got != tc.want {
				t.Errorf("messageType = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDecodeMidiFields(t *testing.T) {
	data := `{"type":"midi","events":[{"time":1.25,"midi_note":60,"velocity":100,"duration":0.5,"name":"C4"}],"total":1}`
	msg, ok := decode([]byte(data))
	if !ok {
		t.Fatal("decode failed")
	}
	midi, ok := msg.(MidiMessage)
	if !ok {
		t.Fatalf("decoded %T, want MidiMessage", msg)
	}
	if len(midi.Events) != 1 || midi.Total != 1 {
		t.Fatalf("events = %d, total = %d", len(midi.Events), midi.Total)
	}
	e := midi.Events[0]
	if e.Time != 1.25 || e.Pitch != 60 || e.Velocity != 100 || e.Duration != 0.5 || e.Label != "C4" {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestDecodeIgnoresUnknownAndMalformed(t *testing.T) {
	for _, data := range []string{
		`{"type":"telemetry","fps":30}`,
		`{"no_type_tag":true}`,
		`not json at all`,
		``,
	} {
		if msg, ok := decode([]byte(data)); ok {
			t.Errorf("decode(%q) = %v, want dropped", data, msg)
		}
	}
}
