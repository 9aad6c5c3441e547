package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultValidatesWithAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Metadata.APIKey = "test-key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRequiresMetadataAPIKey(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure without metadata api key")
	}
	if !strings.Contains(err.Error(), "metadata.api_key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	path := writeConfig(t, `
[metadata]
api_key = "file-key"

[recognition]
instant_accept_confidence = 0.95
weight_dialogue_text = 3.0

[governor]
max_concurrent = 5
`)
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("config file not detected: %q %v", resolved, exists)
	}
	if cfg.Metadata.APIKey != "file-key" {
		t.Fatalf("api key %q", cfg.Metadata.APIKey)
	}
	if cfg.Recognition.InstantAcceptConfidence != 0.95 {
		t.Fatalf("instant accept %v", cfg.Recognition.InstantAcceptConfidence)
	}
	if cfg.Recognition.WeightDialogueText != 3.0 {
		t.Fatalf("dialogue weight %v", cfg.Recognition.WeightDialogueText)
	}
	if cfg.Governor.MaxConcurrent != 5 {
		t.Fatalf("max concurrent %d", cfg.Governor.MaxConcurrent)
	}
	// Untouched sections keep their defaults.
	if cfg.Recognition.TrustConfidence != 0.40 {
		t.Fatalf("trust confidence default lost: %v", cfg.Recognition.TrustConfidence)
	}
	if cfg.Governor.MaxQueueSize != 50 {
		t.Fatalf("queue size default lost: %d", cfg.Governor.MaxQueueSize)
	}
}

func TestLoadNormalizesBaseURLs(t *testing.T) {
	path := writeConfig(t, `
[metadata]
api_key = "k"
base_url = "https://example.test/v3/ "

[vision]
base_url = "https://vision.test/"
`)
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Metadata.BaseURL != "https://example.test/v3" {
		t.Fatalf("metadata base url %q", cfg.Metadata.BaseURL)
	}
	if cfg.Vision.BaseURL != "https://vision.test" {
		t.Fatalf("vision base url %q", cfg.Vision.BaseURL)
	}
}

func TestLoadReadsAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("SCENEID_METADATA_API_KEY", "env-key")
	path := writeConfig(t, `
[recognition]
trust_confidence = 0.5
`)
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Metadata.APIKey != "env-key" {
		t.Fatalf("api key %q, want env-key", cfg.Metadata.APIKey)
	}
}

func TestLoadRejectsInvalidThreshold(t *testing.T) {
	path := writeConfig(t, `
[metadata]
api_key = "k"

[recognition]
trust_confidence = 1.5
`)
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected validation failure for out-of-range threshold")
	}
}

func TestLoadRejectsNegativeArtifactTTL(t *testing.T) {
	path := writeConfig(t, `
[metadata]
api_key = "k"
artifact_ttl_hours = -1
`)
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected validation failure for negative artifact TTL")
	}
}

func TestLoadRejectsTrustAboveInstantAccept(t *testing.T) {
	path := writeConfig(t, `
[metadata]
api_key = "k"

[recognition]
trust_confidence = 0.95
instant_accept_confidence = 0.90
`)
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected validation failure when trust exceeds instant accept")
	}
}

func TestLoadMissingExplicitPathUsesDefaults(t *testing.T) {
	t.Setenv("SCENEID_METADATA_API_KEY", "env-key")
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("absent file reported as existing")
	}
	if resolved == "" {
		t.Fatal("resolved path empty")
	}
	if cfg.Governor.MaxConcurrent != 3 {
		t.Fatalf("defaults not applied: %d", cfg.Governor.MaxConcurrent)
	}
}

func TestSampleConfigMentionsEverySection(t *testing.T) {
	sample := SampleConfig()
	for _, section := range []string{"[paths]", "[metadata]", "[transcriber]", "[vision]", "[llm]", "[recognition]", "[governor]", "[rate_limits", "[logging]"} {
		if !strings.Contains(sample, section) {
			t.Errorf("sample config missing %s", section)
		}
	}
}

func TestExpandPathResolvesHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	got, err := expandPath("~/data")
	if err != nil {
		t.Fatalf("expandPath failed: %v", err)
	}
	if got != filepath.Join(home, "data") {
		t.Fatalf("expandPath = %q", got)
	}
}
