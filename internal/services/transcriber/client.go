package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 45 * time.Second

// Config captures the runtime settings for the speech-to-text capability.
type Config struct {
	Enabled        bool
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// Transcript is the speech-to-text result for a clip.
type Transcript struct {
	Text     string   `json:"text"`
	Lines    []string `json:"lines"`
	Language string   `json:"language"`
}

// Empty reports whether transcription produced no usable dialogue.
func (t Transcript) Empty() bool {
	return strings.TrimSpace(t.Text) == "" && len(t.Lines) == 0
}

// EmbedMatch is one semantic-similarity hit from the capability's dialogue
// embedding index.
type EmbedMatch struct {
	Title      string  `json:"title"`
	Year       int     `json:"year"`
	TMDBID     int64   `json:"tmdb_id"`
	Similarity float64 `json:"similarity"`
}

// Client talks to the transcription capability service.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New constructs a transcription client.
func New(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			Enabled:        cfg.Enabled,
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Available reports whether the capability is configured for use.
func (c *Client) Available() bool {
	return c != nil && c.cfg.Enabled && c.cfg.BaseURL != ""
}

// Transcribe converts the clip's audio track to text.
func (c *Client) Transcribe(ctx context.Context, mediaRef string) (Transcript, error) {
	var transcript Transcript
	if err := c.postJSON(ctx, "/v1/transcribe", map[string]string{"media": mediaRef}, &transcript); err != nil {
		return Transcript{}, err
	}
	return transcript, nil
}

// SemanticMatches queries the capability's dialogue embedding index for
// titles whose dialogue is semantically close to the transcript.
func (c *Client) SemanticMatches(ctx context.Context, transcript string, limit int) ([]EmbedMatch, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	var payload struct {
		Matches []EmbedMatch `json:"matches"`
	}
	body := map[string]any{"text": transcript, "limit": limit}
	if err := c.postJSON(ctx, "/v1/embed/match", body, &payload); err != nil {
		return nil, err
	}
	return payload.Matches, nil
}

// HealthCheck verifies the capability endpoint responds.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Available() {
		return errors.New("transcriber: not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("transcriber health: build request: %w", err)
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transcriber health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transcriber health: http %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	if !c.Available() {
		return errors.New("transcriber: not configured")
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("transcriber: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("transcriber: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("transcriber %s (latency=%v): %w", path, latency, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transcriber %s returned %d (latency=%v)", path, resp.StatusCode, latency)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("transcriber: decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}
