package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Feedback mirrors one coach's structured feedback for the request payload.
type Feedback struct {
	WhatWentWell     string `json:"what_went_well"`
	WhatCouldImprove string `json:"what_could_improve"`
	SpecificTip      string `json:"specific_tip"`
	Instrument       string `json:"instrument"`
}

// Round is one coaching round, optionally with the narration already spoken
// for it. Prior rounds give the collaborator tone continuity.
type Round struct {
	VisualCoach Feedback `json:"visual_coach"`
	AudioCoach  Feedback `json:"audio_coach"`
	Narration   string   `json:"narration,omitempty"`
}

// Request asks for a spoken narration script.
type Request struct {
	Culture    string  `json:"culture"`
	Instrument string  `json:"instrument"`
	Current    Round   `json:"current"`
	History    []Round `json:"history,omitempty"`
}

// Response is the collaborator's reply.
type Response struct {
	Script string `json:"script"`
}

// Client is a client for the narration transcript service.
type Client struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		HTTPClient: &http.Client{},
	}
}

// Narrate sends a narration request and returns the script text.
func (c *Client) Narrate(ctx context.Context, req Request) (string, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("transcript: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("transcript: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("transcript: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcript: request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("transcript: decode response: %w", err)
	}
	if response.Script == "" {
		return "", errors.New("transcript: empty script in response")
	}
	return response.Script, nil
}
