package vision

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

// Config captures the runtime settings for the vision capability.
type Config struct {
	Enabled        bool
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// VisualMatch is one scene-level candidate proposed by the capability.
type VisualMatch struct {
	Title  string  `json:"title"`
	Year   int     `json:"year"`
	TMDBID int64   `json:"tmdb_id"`
	Score  float64 `json:"score"`
}

// SceneDescription is the vision capability's read of a clip's frames.
type SceneDescription struct {
	Description string        `json:"description"`
	Matches     []VisualMatch `json:"matches"`
}

// OnScreenText is the OCR read of a clip's frames.
type OnScreenText struct {
	Fragments []string `json:"fragments"`
	Title     string   `json:"title"`
	Credits   []string `json:"credits"`
}

// ActorIdentification is the face-recognition read of a clip's frames.
type ActorIdentification struct {
	Names      []string `json:"names"`
	Confidence float64  `json:"confidence"`
}

// Client talks to the vision capability service (scene description, OCR and
// actor identification share one endpoint family).
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

// New constructs a vision client.
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

// DescribeScene returns a textual scene description plus any candidate
// titles the capability matched against its reference index.
func (c *Client) DescribeScene(ctx context.Context, mediaRef string) (SceneDescription, error) {
	var scene SceneDescription
	if err := c.postJSON(ctx, "/v1/describe", map[string]string{"media": mediaRef}, &scene); err != nil {
		return SceneDescription{}, err
	}
	return scene, nil
}

// ReadOnScreenText OCRs the clip's frames for visible text and credits.
func (c *Client) ReadOnScreenText(ctx context.Context, mediaRef string) (OnScreenText, error) {
	var text OnScreenText
	if err := c.postJSON(ctx, "/v1/ocr", map[string]string{"media": mediaRef}, &text); err != nil {
		return OnScreenText{}, err
	}
	return text, nil
}

// IdentifyActors runs face recognition over the clip's frames.
func (c *Client) IdentifyActors(ctx context.Context, mediaRef string) (ActorIdentification, error) {
	var actors ActorIdentification
	if err := c.postJSON(ctx, "/v1/actors", map[string]string{"media": mediaRef}, &actors); err != nil {
		return ActorIdentification{}, err
	}
	return actors, nil
}

// HealthCheck verifies the capability endpoint responds.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Available() {
		return errors.New("vision: not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("vision health: build request: %w", err)
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vision health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vision health: http %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	if !c.Available() {
		return errors.New("vision: not configured")
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("vision: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("vision: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("vision %s (latency=%v): %w", path, latency, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vision %s returned %d (latency=%v)", path, resp.StatusCode, latency)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("vision: decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}
