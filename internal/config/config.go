package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Metadata contains configuration for the canonical title metadata API.
type Metadata struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
	// ArtifactTTLHours bounds how long cached cast, similar-title, and
	// availability artifacts stay fresh. Zero keeps them forever.
	ArtifactTTLHours int `toml:"artifact_ttl_hours"`
}

// Capability describes one extraction collaborator endpoint.
type Capability struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains connection settings for the generative aggregation model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Recognition contains the decision-policy constants for the cascade.
//
// The thresholds and signal weights were tuned empirically; they are surfaced
// here rather than hard-coded so operators can adjust them without a rebuild.
type Recognition struct {
	// InstantAcceptConfidence short-circuits the cascade when the fast pass
	// leader meets it and the store already knows the title.
	InstantAcceptConfidence float64 `toml:"instant_accept_confidence"`
	// TrustConfidence is the floor below which a second-opinion pass runs.
	TrustConfidence float64 `toml:"trust_confidence"`
	// ActorFallbackConfidence is the minimum aggregate actor confidence that
	// allows a filmography-only identification.
	ActorFallbackConfidence float64 `toml:"actor_fallback_confidence"`
	// ActorFallbackCap bounds the confidence reported by an actor-only match.
	ActorFallbackCap float64 `toml:"actor_fallback_cap"`
	// GenerativeGuessConfidenceCap bounds the confidence of a pure model guess.
	GenerativeGuessConfidenceCap float64 `toml:"generative_guess_confidence_cap"`

	WeightDialogueText  float64 `toml:"weight_dialogue_text"`
	WeightDialogueEmbed float64 `toml:"weight_dialogue_embedding"`
	WeightVisual        float64 `toml:"weight_visual"`
	WeightOnScreenText  float64 `toml:"weight_onscreen_text"`
	WeightActorIdentity float64 `toml:"weight_actor_identity"`

	RequestDeadlineSeconds    int `toml:"request_deadline_seconds"`
	CapabilityTimeoutSeconds  int `toml:"capability_timeout_seconds"`
	DialogueSearchResultLimit int `toml:"dialogue_search_result_limit"`
}

// Governor contains the admission-control settings.
type Governor struct {
	MaxConcurrent            int `toml:"max_concurrent"`
	MaxQueueSize             int `toml:"max_queue_size"`
	QueueTimeoutSeconds      int `toml:"queue_timeout_seconds"`
	MaxRequestTimeSeconds    int `toml:"max_request_time_seconds"`
	StaleSweepSeconds        int `toml:"stale_sweep_seconds"`
	ProcessingHistoryEntries int `toml:"processing_history_entries"`
}

// RateLimit bounds outbound calls for one upstream capability.
type RateLimit struct {
	WindowSeconds int `toml:"window_seconds"`
	MaxCalls      int `toml:"max_calls"`
}

// RateLimits groups per-capability sliding-window budgets.
type RateLimits struct {
	Transcription RateLimit `toml:"transcription"`
	Vision        RateLimit `toml:"vision"`
	ActorID       RateLimit `toml:"actor_id"`
	Generative    RateLimit `toml:"generative"`
	Metadata      RateLimit `toml:"metadata"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for sceneid.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Metadata: canonical title metadata API (TMDB-compatible)
//   - Transcriber / Vision: extraction capability endpoints
//   - LLM: generative aggregation model settings
//   - Recognition: cascade decision-policy constants
//   - Governor: admission-control limits
//   - RateLimits: per-capability outbound call budgets
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Metadata    Metadata    `toml:"metadata"`
	Transcriber Capability  `toml:"transcriber"`
	Vision      Capability  `toml:"vision"`
	LLM         LLM         `toml:"llm"`
	Recognition Recognition `toml:"recognition"`
	Governor    Governor    `toml:"governor"`
	RateLimits  RateLimits  `toml:"rate_limits"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/sceneid/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("sceneid.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// ExpandPath resolves a leading ~ and returns an absolute, cleaned path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if key := strings.TrimSpace(os.Getenv("SCENEID_METADATA_API_KEY")); key != "" && c.Metadata.APIKey == "" {
		c.Metadata.APIKey = key
	}
	if key := strings.TrimSpace(os.Getenv("SCENEID_LLM_API_KEY")); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
	c.Metadata.BaseURL = strings.TrimRight(strings.TrimSpace(c.Metadata.BaseURL), "/")
	c.Transcriber.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcriber.BaseURL), "/")
	c.Vision.BaseURL = strings.TrimRight(strings.TrimSpace(c.Vision.BaseURL), "/")
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
