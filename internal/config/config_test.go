package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRateLimitsIntervals(t *testing.T) {
	tests := []struct {
		name    string
		limits  RateLimits
		wantMin time.Duration
	}{
		{"rate dominates", RateLimits{ActionsPerHour: 6, MinDelayBetweenActions: 20}, 600 * time.Second},
		{"floor dominates", RateLimits{ActionsPerHour: 3600, MinDelayBetweenActions: 30}, 30 * time.Second},
		{"zero rate uses floor", RateLimits{ActionsPerHour: 0, MinDelayBetweenActions: 15}, 15 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.limits.MinInterval(); got != tt.wantMin {
				t.Fatalf("MinInterval = %v, want %v", got, tt.wantMin)
			}
			if got := tt.limits.MaxInterval(); got != 2*tt.wantMin {
				t.Fatalf("MaxInterval = %v, want %v", got, 2*tt.wantMin)
			}
		})
	}
}

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Generator.Model != "gemini-2.5-flash" {
		t.Fatalf("unexpected default model %q", cfg.Generator.Model)
	}
	if cfg.Platforms.Reddit.RateLimits.ActionsPerHour != 6 {
		t.Fatalf("unexpected default reddit rate: %d", cfg.Platforms.Reddit.RateLimits.ActionsPerHour)
	}
	if len(cfg.EnabledPlatforms()) != 0 {
		t.Fatalf("no platform should be enabled by default, got %v", cfg.EnabledPlatforms())
	}
}

func TestLoadFromOverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"global": {"stateDir": "/tmp/hivemind-test"},
		"platforms": {
			"reddit": {
				"enabled": true,
				"targetSubreddits": ["golang", "programming"],
				"rateLimits": {"actionsPerHour": 12, "minDelayBetweenActions": 20}
			}
		}
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Platforms.Reddit.Enabled {
		t.Fatalf("reddit should be enabled")
	}
	if got := cfg.Platforms.Reddit.RateLimits.ActionsPerHour; got != 12 {
		t.Fatalf("file value not applied, got %d", got)
	}
	if len(cfg.Platforms.Reddit.TargetSubreddits) != 2 {
		t.Fatalf("unexpected subreddits: %v", cfg.Platforms.Reddit.TargetSubreddits)
	}
	// Untouched sections keep their defaults.
	if cfg.Platforms.Twitter.RateLimits.ActionsPerHour != 2 {
		t.Fatalf("twitter defaults clobbered: %+v", cfg.Platforms.Twitter.RateLimits)
	}
	// Derived paths follow the state dir.
	if want := filepath.Join("/tmp/hivemind-test", "hivemind.db"); cfg.Global.DatabasePath != want {
		t.Fatalf("database path %q, want %q", cfg.Global.DatabasePath, want)
	}
}

func TestLoadFromEnvironmentOverride(t *testing.T) {
	// envconfig builds keys from the nesting path, so section names must not
	// be repeated in the field tags.
	t.Setenv("HIVEMIND_GENERATOR_MODEL", "gemini-2.5-pro")
	t.Setenv("HIVEMIND_PLATFORMS_ELIZA_ENABLED", "true")
	t.Setenv("HIVEMIND_GLOBAL_DRY_RUN", "true")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Generator.Model != "gemini-2.5-pro" {
		t.Fatalf("env override ignored, model %q", cfg.Generator.Model)
	}
	if !cfg.Platforms.Eliza.Enabled {
		t.Fatalf("env override ignored for eliza enable flag")
	}
	if !cfg.Global.DryRun {
		t.Fatalf("env override ignored for dry run flag")
	}
}

func TestLoadFromRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Platforms.Twitter.Enabled = true
	cfg.Global.StateDir = t.TempDir()

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !loaded.Platforms.Twitter.Enabled {
		t.Fatalf("saved flag lost on reload")
	}
}

func TestCredentialsMissing(t *testing.T) {
	var r RedditCredentials
	if got := len(r.Missing()); got != 5 {
		t.Fatalf("expected 5 missing reddit fields, got %d", got)
	}
	tw := TwitterCredentials{Username: "u", Password: "p", Email: "e@example.com"}
	if got := tw.Missing(); len(got) != 0 {
		t.Fatalf("expected complete twitter credentials, got missing %v", got)
	}
}
