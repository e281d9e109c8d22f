package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.BaseURL != "https://api.elevenlabs.io" {
		t.Fatalf("expected default provider URL, got %q", cfg.Provider.BaseURL)
	}
	if cfg.Provider.SampleRate != 16000 {
		t.Fatalf("expected default sample rate 16000, got %d", cfg.Provider.SampleRate)
	}
	if cfg.Provider.Attempts != 5 {
		t.Fatalf("expected default attempts 5, got %d", cfg.Provider.Attempts)
	}
	if cfg.Transcoder.Command != "ffmpeg" {
		t.Fatalf("expected default transcoder command, got %q", cfg.Transcoder.Command)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DOPPLIO_PROVIDER_BASE_URL", "http://localhost:9999")
	t.Setenv("DOPPLIO_PROVIDER_API_KEY", "secret-key")
	t.Setenv("DOPPLIO_PROVIDER_VOICE_ID", "custom-voice")
	t.Setenv("DOPPLIO_PROVIDER_STABILITY", "0.8")
	t.Setenv("DOPPLIO_PROVIDER_SIMILARITY_BOOST", "0.6")
	t.Setenv("DOPPLIO_PROVIDER_SLEEP_DELAY_S", "0.25")
	t.Setenv("DOPPLIO_PROVIDER_RETRY_ATTEMPTS", "3")
	t.Setenv("DOPPLIO_PROVIDER_REQUEST_TIMEOUT_MS", "5000")
	t.Setenv("DOPPLIO_TRANSCODER_COMMAND", "ffmpeg -loglevel error")
	t.Setenv("DOPPLIO_HISTORY_RETENTION_MODE", "ephemeral")
	t.Setenv("DOPPLIO_SERVICE_ENABLED", "true")
	t.Setenv("DOPPLIO_SERVICE_MODE", "elevenlabs")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider.BaseURL != "http://localhost:9999" {
		t.Fatalf("expected base URL override, got %q", cfg.Provider.BaseURL)
	}
	if cfg.Provider.APIKey != "secret-key" || cfg.Provider.VoiceID != "custom-voice" {
		t.Fatal("expected credential overrides")
	}
	if cfg.Provider.Stability != 0.8 || cfg.Provider.SimilarityBoost != 0.6 {
		t.Fatal("expected voice-settings overrides")
	}
	if cfg.Provider.SleepDelay != 0.25 {
		t.Fatalf("expected sleep delay 0.25, got %f", cfg.Provider.SleepDelay)
	}
	if cfg.Provider.Attempts != 3 {
		t.Fatalf("expected attempts 3, got %d", cfg.Provider.Attempts)
	}
	if cfg.Provider.TimeoutMS != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Provider.TimeoutMS)
	}
	if cfg.Transcoder.Command != "ffmpeg -loglevel error" {
		t.Fatalf("expected transcoder command override, got %q", cfg.Transcoder.Command)
	}
	if cfg.History.RetentionMode != "ephemeral" {
		t.Fatalf("expected history retention override, got %q", cfg.History.RetentionMode)
	}
	if !cfg.Service.Enabled || cfg.Service.Mode != "elevenlabs" {
		t.Fatal("expected service overrides")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attempts", func(c *Config) { c.Provider.Attempts = 0 }},
		{"negative sleep", func(c *Config) { c.Provider.SleepDelay = -1 }},
		{"stability out of range", func(c *Config) { c.Provider.Stability = 1.5 }},
		{"zero sample rate", func(c *Config) { c.Provider.SampleRate = 0 }},
		{"empty transcoder command", func(c *Config) { c.Transcoder.Command = "" }},
		{"bad retention mode", func(c *Config) { c.History.RetentionMode = "forever" }},
		{"service without key", func(c *Config) {
			c.Service.Enabled = true
			c.Service.Mode = "elevenlabs"
			c.Provider.APIKey = ""
		}},
		{"bad service mode", func(c *Config) {
			c.Service.Enabled = true
			c.Service.Mode = "shout"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}
