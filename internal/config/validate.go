package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMetadata(); err != nil {
		return err
	}
	if err := c.validateRecognition(); err != nil {
		return err
	}
	if err := c.validateGovernor(); err != nil {
		return err
	}
	if err := c.validateRateLimits(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateMetadata() error {
	if strings.TrimSpace(c.Metadata.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/sceneid/config.toml"
		}
		return fmt.Errorf("metadata.api_key is required. Set SCENEID_METADATA_API_KEY or edit %s (create with 'sceneid config init')", defaultPath)
	}
	if strings.TrimSpace(c.Metadata.BaseURL) == "" {
		return errors.New("metadata.base_url must be set")
	}
	if c.Metadata.ArtifactTTLHours < 0 {
		return errors.New("metadata.artifact_ttl_hours must not be negative")
	}
	return nil
}

func (c *Config) validateRecognition() error {
	r := c.Recognition
	for _, probe := range []struct {
		name  string
		value float64
	}{
		{"recognition.instant_accept_confidence", r.InstantAcceptConfidence},
		{"recognition.trust_confidence", r.TrustConfidence},
		{"recognition.actor_fallback_confidence", r.ActorFallbackConfidence},
		{"recognition.actor_fallback_cap", r.ActorFallbackCap},
		{"recognition.generative_guess_confidence_cap", r.GenerativeGuessConfidenceCap},
	} {
		if probe.value < 0 || probe.value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", probe.name)
		}
	}
	if r.TrustConfidence > r.InstantAcceptConfidence {
		return errors.New("recognition.trust_confidence must not exceed recognition.instant_accept_confidence")
	}
	for _, probe := range []struct {
		name  string
		value float64
	}{
		{"recognition.weight_dialogue_text", r.WeightDialogueText},
		{"recognition.weight_dialogue_embedding", r.WeightDialogueEmbed},
		{"recognition.weight_visual", r.WeightVisual},
		{"recognition.weight_onscreen_text", r.WeightOnScreenText},
		{"recognition.weight_actor_identity", r.WeightActorIdentity},
	} {
		if probe.value <= 0 {
			return fmt.Errorf("%s must be positive", probe.name)
		}
	}
	if r.RequestDeadlineSeconds <= 0 {
		return errors.New("recognition.request_deadline_seconds must be positive")
	}
	if r.CapabilityTimeoutSeconds <= 0 {
		return errors.New("recognition.capability_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateGovernor() error {
	g := c.Governor
	if g.MaxConcurrent <= 0 {
		return errors.New("governor.max_concurrent must be positive")
	}
	if g.MaxQueueSize < 0 {
		return errors.New("governor.max_queue_size must not be negative")
	}
	if g.QueueTimeoutSeconds <= 0 {
		return errors.New("governor.queue_timeout_seconds must be positive")
	}
	if g.MaxRequestTimeSeconds <= 0 {
		return errors.New("governor.max_request_time_seconds must be positive")
	}
	if g.StaleSweepSeconds <= 0 {
		return errors.New("governor.stale_sweep_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRateLimits() error {
	for _, probe := range []struct {
		name  string
		limit RateLimit
	}{
		{"rate_limits.transcription", c.RateLimits.Transcription},
		{"rate_limits.vision", c.RateLimits.Vision},
		{"rate_limits.actor_id", c.RateLimits.ActorID},
		{"rate_limits.generative", c.RateLimits.Generative},
		{"rate_limits.metadata", c.RateLimits.Metadata},
	} {
		if probe.limit.WindowSeconds <= 0 {
			return fmt.Errorf("%s.window_seconds must be positive", probe.name)
		}
		if probe.limit.MaxCalls <= 0 {
			return fmt.Errorf("%s.max_calls must be positive", probe.name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
