package generation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrPollTimeout means the clip never reached a terminal status within the
// attempt budget.
var ErrPollTimeout = errors.New("generation: clip did not reach a terminal status in time")

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 60
)

// PollerConfig tunes one poller. Zero values select defaults.
type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int

	// OnUpdate observes every clip state change, including the terminal one.
	OnUpdate func(Clip)
}

// Poller drives one clip from submission to a terminal status. Pollers are
// 1:1 with a coaching round and never recycled.
type Poller struct {
	client      *Client
	interval    time.Duration
	maxAttempts int
	onUpdate    func(Clip)
}

func NewPoller(client *Client, cfg PollerConfig) *Poller {
	if cfg.Interval == 0 {
		cfg.Interval = defaultPollInterval
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &Poller{
		client:      client,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
		onUpdate:    cfg.OnUpdate,
	}
}

// Generate submits the request and polls until terminal. It runs concurrently
// with, and independently of, the coaching narration: a slow or failed clip
// never blocks feedback.
func (p *Poller) Generate(ctx context.Context, req SubmitRequest) (Clip, error) {
	clip := Clip{Status: StatusGenerating, Title: req.Title}
	p.update(clip)

	id, err := p.client.Submit(ctx, req)
	if err != nil {
		clip.Status = StatusError
		p.update(clip)
		return clip, err
	}
	clip.ID = id

	return p.PollUntilTerminal(ctx, id)
}

// PollUntilTerminal queries clip status at a fixed interval until it observes
// Streaming, Complete, or Error, or the attempt budget runs out.
func (p *Poller) PollUntilTerminal(ctx context.Context, clipID string) (Clip, error) {
	clip := Clip{ID: clipID, Status: StatusPolling}
	p.update(clip)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		tracks, err := p.client.Record(ctx, clipID)
		if err != nil {
			if ctx.Err() != nil {
				clip.Status = StatusError
				return clip, ctx.Err()
			}
			log.Printf("generation: poll %s: %v", clipID, err)
		} else if resolved, ok := resolveClip(clipID, tracks); ok {
			p.update(resolved)
			if resolved.Status == StatusError {
				return resolved, fmt.Errorf("generation: clip %s failed", clipID)
			}
			return resolved, nil
		}

		select {
		case <-ctx.Done():
			clip.Status = StatusError
			return clip, ctx.Err()
		case <-ticker.C:
		}
	}

	clip.Status = StatusError
	p.update(clip)
	return clip, ErrPollTimeout
}

// resolveClip maps a record response onto a terminal clip state, if the
// response represents one.
func resolveClip(clipID string, tracks []Track) (Clip, bool) {
	for _, track := range tracks {
		switch track.Status {
		case "error", "failed":
			return Clip{ID: clipID, Status: StatusError, Title: track.Title}, true
		case "complete", "success":
			return clipFromTrack(clipID, track, StatusComplete), true
		case "streaming":
			return clipFromTrack(clipID, track, StatusStreaming), true
		}
		// Older API revisions carry no status; a playable URL means streaming.
		if track.AudioURL != "" {
			return clipFromTrack(clipID, track, StatusStreaming), true
		}
	}
	return Clip{}, false
}

func clipFromTrack(clipID string, track Track, status Status) Clip {
	return Clip{
		ID:       clipID,
		Status:   status,
		AudioURL: track.AudioURL,
		Title:    track.Title,
		CoverURL: track.ImageURL,
	}
}

func (p *Poller) update(clip Clip) {
	if p.onUpdate != nil {
		p.onUpdate(clip)
	}
}
