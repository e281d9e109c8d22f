package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Provider    ProviderConfig   `yaml:"provider"`
	Transcoder  TranscoderConfig `yaml:"transcoder"`
	History     HistoryConfig    `yaml:"history"`
	Service     ServiceConfig    `yaml:"service"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// ProviderConfig drives the remote synthesis endpoint calls.
type ProviderConfig struct {
	BaseURL         string  `yaml:"base_url"`
	APIKey          string  `yaml:"api_key"`
	VoiceID         string  `yaml:"voice_id"` // overrides the language-derived voice when set
	Stability       float64 `yaml:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost"`
	SleepDelay      float64 `yaml:"sleep_delay_s"`
	Attempts        int     `yaml:"retry_attempts"`
	TimeoutMS       int     `yaml:"request_timeout_ms"`
	SampleRate      int     `yaml:"sample_rate"`
}

type TranscoderConfig struct {
	Command string `yaml:"command"`
	TempDir string `yaml:"temp_dir"`
}

type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxRecords    int    `yaml:"max_records"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type ServiceConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Mode            string `yaml:"mode"` // mock, elevenlabs
	DefaultLanguage string `yaml:"default_language"`
	ChunkDurationMS int    `yaml:"chunk_duration_ms"`
}

func Default() Config {
	return Config{
		RuntimeName: "dopplio-synth",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Provider: ProviderConfig{
			BaseURL:         "https://api.elevenlabs.io",
			Stability:       0.5,
			SimilarityBoost: 0.75,
			SleepDelay:      1.0,
			Attempts:        5,
			TimeoutMS:       30000,
			SampleRate:      16000,
		},
		Transcoder: TranscoderConfig{
			Command: "ffmpeg",
		},
		History: HistoryConfig{
			Path:          "./data/dopplio-history.db",
			RetentionMode: "persistent",
			RetentionDays: 30,
			MaxRecords:    100000,
		},
		Service: ServiceConfig{
			Enabled:         false,
			Mode:            "mock",
			DefaultLanguage: "eng-USA",
			ChunkDurationMS: 400,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "DOPPLIO_RUNTIME_NAME")
	overrideString(&cfg.Environment, "DOPPLIO_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "DOPPLIO_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "DOPPLIO_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "DOPPLIO_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "DOPPLIO_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "DOPPLIO_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "DOPPLIO_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "DOPPLIO_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "DOPPLIO_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "DOPPLIO_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "DOPPLIO_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "DOPPLIO_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "DOPPLIO_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "DOPPLIO_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Provider.BaseURL, "DOPPLIO_PROVIDER_BASE_URL")
	overrideString(&cfg.Provider.APIKey, "DOPPLIO_PROVIDER_API_KEY")
	overrideString(&cfg.Provider.VoiceID, "DOPPLIO_PROVIDER_VOICE_ID")
	overrideFloat(&cfg.Provider.Stability, "DOPPLIO_PROVIDER_STABILITY")
	overrideFloat(&cfg.Provider.SimilarityBoost, "DOPPLIO_PROVIDER_SIMILARITY_BOOST")
	overrideFloat(&cfg.Provider.SleepDelay, "DOPPLIO_PROVIDER_SLEEP_DELAY_S")
	overrideInt(&cfg.Provider.Attempts, "DOPPLIO_PROVIDER_RETRY_ATTEMPTS")
	overrideInt(&cfg.Provider.TimeoutMS, "DOPPLIO_PROVIDER_REQUEST_TIMEOUT_MS")
	overrideInt(&cfg.Provider.SampleRate, "DOPPLIO_PROVIDER_SAMPLE_RATE")
	overrideString(&cfg.Transcoder.Command, "DOPPLIO_TRANSCODER_COMMAND")
	overrideString(&cfg.Transcoder.TempDir, "DOPPLIO_TRANSCODER_TEMP_DIR")
	overrideString(&cfg.History.Path, "DOPPLIO_HISTORY_PATH")
	overrideString(&cfg.History.RetentionMode, "DOPPLIO_HISTORY_RETENTION_MODE")
	overrideInt(&cfg.History.RetentionDays, "DOPPLIO_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxRecords, "DOPPLIO_HISTORY_MAX_RECORDS")
	overrideBool(&cfg.History.VacuumOnStart, "DOPPLIO_HISTORY_VACUUM_ON_START")
	overrideBool(&cfg.Service.Enabled, "DOPPLIO_SERVICE_ENABLED")
	overrideString(&cfg.Service.Mode, "DOPPLIO_SERVICE_MODE")
	overrideString(&cfg.Service.DefaultLanguage, "DOPPLIO_SERVICE_DEFAULT_LANGUAGE")
	overrideInt(&cfg.Service.ChunkDurationMS, "DOPPLIO_SERVICE_CHUNK_DURATION_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Provider.BaseURL == "" {
		return errors.New("provider.base_url must not be empty")
	}
	if cfg.Provider.Stability < 0 || cfg.Provider.Stability > 1 {
		return errors.New("provider.stability must be within [0, 1]")
	}
	if cfg.Provider.SimilarityBoost < 0 || cfg.Provider.SimilarityBoost > 1 {
		return errors.New("provider.similarity_boost must be within [0, 1]")
	}
	if cfg.Provider.SleepDelay < 0 {
		return errors.New("provider.sleep_delay_s must be >= 0")
	}
	if cfg.Provider.Attempts < 1 {
		return errors.New("provider.retry_attempts must be >= 1")
	}
	if cfg.Provider.TimeoutMS <= 0 {
		return errors.New("provider.request_timeout_ms must be positive")
	}
	if cfg.Provider.SampleRate <= 0 {
		return errors.New("provider.sample_rate must be positive")
	}
	if cfg.Transcoder.Command == "" {
		return errors.New("transcoder.command must not be empty")
	}
	if cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	switch cfg.History.RetentionMode {
	case "ephemeral", "persistent":
		// ok
	default:
		return errors.New("history.retention_mode must be one of ephemeral|persistent")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	if cfg.Service.Enabled {
		switch cfg.Service.Mode {
		case "mock", "elevenlabs":
		default:
			return errors.New("service.mode must be one of mock|elevenlabs")
		}
		if cfg.Service.Mode == "elevenlabs" && cfg.Provider.APIKey == "" {
			return errors.New("provider.api_key must be set when service.mode=elevenlabs")
		}
		if cfg.Service.DefaultLanguage == "" {
			return errors.New("service.default_language must not be empty")
		}
		if cfg.Service.ChunkDurationMS <= 0 {
			return errors.New("service.chunk_duration_ms must be positive")
		}
	}
	return nil
}
