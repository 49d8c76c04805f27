package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNarrateRoundTrip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Culture != "cuban" || req.Instrument != "guitar" {
			t.Errorf("culture/instrument = %q/%q", req.Culture, req.Instrument)
		}
		if req.Current.VisualCoach.WhatWentWell != "steady rhythm" {
			t.Errorf("current round = %+v", req.Current)
		}
		if len(req.History) != 1 || req.History[0].Narration != "earlier narration" {
			t.Errorf("history = %+v", req.History)
		}
		fmt.Fprint(w, `{"script":"Great pulse throughout. Keep the wrist loose."}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "test-key")
	script, err := c.Narrate(context.Background(), Request{
		Culture:    "cuban",
		Instrument: "guitar",
		Current: Round{
			VisualCoach: Feedback{WhatWentWell: "steady rhythm"},
		},
		History: []Round{{Narration: "earlier narration"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if script != "Great pulse throughout. Keep the wrist loose." {
		t.Errorf("script = %q", script)
	}
}

func TestNarrateNon200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "").Narrate(context.Background(), Request{})
	if err == nil {
		t.Fatal("non-200 response returned no error")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("err = %v, want status in message", err)
	}
}

func TestNarrateEmptyScript(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"script":""}`)
	}))
	defer ts.Close()

	if _, err := NewClient(ts.URL, "").Narrate(context.Background(), Request{}); err == nil {
		t.Fatal("empty script returned no error")
	}
}

func TestNarrateNoAuthHeaderWithoutKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want unset", got)
		}
		fmt.Fprint(w, `{"script":"ok"}`)
	}))
	defer ts.Close()

	if _, err := NewClient(ts.URL, "").Narrate(context.Background(), Request{}); err != nil {
		t.Fatal(err)
	}
}
