// Package generation submits practice-derived music generation requests and
// polls clips until they are playable or failed.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Status is the clip lifecycle state.
type Status string

const (
	StatusGenerating Status = "generating"
	StatusPolling    Status = "polling"
	StatusStreaming  Status = "streaming"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Terminal reports whether polling must stop at this status.
func (s Status) Terminal() bool {
	return s == StatusStreaming || s == StatusComplete || s == StatusError
}

// Clip is one unit of generated music.
type Clip struct {
	ID       string
	Status   Status
	AudioURL string
	Title    string
	CoverURL string
}

// SubmitRequest describes the song to generate.
type SubmitRequest struct {
	Style        string
	Title        string
	Prompt       string
	Instrumental bool
	Model        string
	UploadURL    string
}

// Client talks to the music generation API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{},
	}
}

type submitPayload struct {
	UploadURL        string `json:"uploadUrl,omitempty"`
	DefaultParamFlag bool   `json:"defaultParamFlag"`
	Instrumental     bool   `json:"instrumental"`
	Style            string `json:"style"`
	Title            string `json:"title"`
	Prompt           string `json:"prompt,omitempty"`
	Model            string `json:"model"`
	CallBackURL      string `json:"callBackUrl"`
}

type submitResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

// Track is one generated result inside a record response.
type Track struct {
	ID       string `json:"id"`
	AudioURL string `json:"audio_url"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	ImageURL string `json:"image_url"`
	Tags     string `json:"tags"`
}

type recordResponse struct {
	Code int     `json:"code"`
	Msg  string  `json:"msg"`
	Data []Track `json:"data"`
}

// Submit sends a generation request and returns the clip (task) identifier.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = "V4_5"
	}
	payload := submitPayload{
		UploadURL:        req.UploadURL,
		DefaultParamFlag: true,
		Instrumental:     req.Instrumental,
		Style:            req.Style,
		Title:            req.Title,
		Prompt:           req.Prompt,
		Model:            model,
	}

	var resp submitResponse
	if err := c.post(ctx, "/api/v1/generate/upload-extend", payload, &resp); err != nil {
		return "", err
	}
	if resp.Code != 200 {
		return "", fmt.Errorf("generation: submit rejected: %s", resp.Msg)
	}
	if resp.Data.TaskID == "" {
		return "", fmt.Errorf("generation: submit returned no task id")
	}
	return resp.Data.TaskID, nil
}

// Record fetches the current tracks for a clip identifier.
func (c *Client) Record(ctx context.Context, clipID string) ([]Track, error) {
	endpoint := c.BaseURL + "/api/v1/generate/record?taskId=" + url.QueryEscape(clipID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("generation: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generation: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("generation: record failed with status %d: %s", resp.StatusCode, string(body))
	}

	var record recordResponse
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("generation: decode response: %w", err)
	}
	if record.Code != 200 {
		return nil, fmt.Errorf("generation: record rejected: %s", record.Msg)
	}
	return record.Data, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("generation: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("generation: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("generation: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("generation: request failed with status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("generation: decode response: %w", err)
	}
	return nil
}
