package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all CallCoach environment variables.
const EnvPrefix = "CALLCOACH_"

// Config holds all application configuration. Secrets (API keys, the
// webhook shared secret) are loaded exclusively from environment
// variables and never appear in the config file.
type Config struct {
	ListenAddr            string `yaml:"listen_addr"`
	DBPath                string `yaml:"db_path"`
	AudioDir              string `yaml:"audio_dir"`
	WebhookURL            string `yaml:"webhook_url"`
	ChunkInterval         string `yaml:"chunk_interval"`
	MaxRetries            int    `yaml:"max_retries"`
	RetryBaseDelay        string `yaml:"retry_base_delay"`
	IdleTimeout           string `yaml:"idle_timeout"`
	STTProvider           string `yaml:"stt_provider"`
	STTModel              string `yaml:"stt_model"`
	MicSampleRate         int    `yaml:"mic_sample_rate"`
	MicSampleRates        []int  `yaml:"mic_sample_rates"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`

	// Secrets — env vars only, never serialized to YAML.
	DialerAPIKey  string `yaml:"-"`
	STTAPIKey     string `yaml:"-"`
	WebhookSecret string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:            ":8080",
		DBPath:                "data/callcoach.db",
		AudioDir:              "data/audio",
		ChunkInterval:         "5s",
		MaxRetries:            3,
		RetryBaseDelay:        "1s",
		IdleTimeout:           "0s",
		STTProvider:           "openai",
		STTModel:              "whisper-1",
		MicSampleRate:         16000,
		MicSampleRates:        []int{48000, 44100, 32000, 24000},
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the
// result. It returns the config, any validation warnings, and an error
// if the file exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ValidateCredentials checks the credential surface a session start
// depends on. It runs before any network call; a non-nil error means
// the session never leaves Idle.
func (c *Config) ValidateCredentials() error {
	if strings.TrimSpace(c.DialerAPIKey) == "" {
		return fmt.Errorf("dialer API key is required: set %sDIALER_API_KEY", EnvPrefix)
	}
	key, secret, ok := strings.Cut(c.DialerAPIKey, ":")
	if !ok || strings.TrimSpace(key) == "" || strings.TrimSpace(secret) == "" {
		return fmt.Errorf("invalid dialer API key format: expected key:secret pair")
	}
	if strings.TrimSpace(c.STTAPIKey) == "" {
		return fmt.Errorf("speech-to-text API key is required: set %sSTT_API_KEY", EnvPrefix)
	}
	if strings.TrimSpace(c.WebhookURL) == "" {
		return fmt.Errorf("webhook callback URL is required")
	}
	return nil
}

// ParsedChunkInterval returns ChunkInterval as a duration, falling back
// to 5s if the value is invalid.
func (c *Config) ParsedChunkInterval() time.Duration {
	d, err := time.ParseDuration(c.ChunkInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// ParsedRetryBaseDelay returns RetryBaseDelay as a duration, falling
// back to 1s if the value is invalid.
func (c *Config) ParsedRetryBaseDelay() time.Duration {
	d, err := time.ParseDuration(c.RetryBaseDelay)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// ParsedIdleTimeout returns IdleTimeout as a duration. Zero disables
// the inactivity watchdog.
func (c *Config) ParsedIdleTimeout() time.Duration {
	d, err := time.ParseDuration(c.IdleTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// SampleRateCandidates returns a deduplicated ordered list of sample
// rates to try: preferred rate first, then configured alternatives,
// then defaults.
func (c *Config) SampleRateCandidates() []int {
	hardcoded := []int{16000, 48000, 44100, 32000, 24000}

	combined := make([]int, 0, 1+len(c.MicSampleRates)+len(hardcoded))
	combined = append(combined, c.MicSampleRate)
	combined = append(combined, c.MicSampleRates...)
	combined = append(combined, hardcoded...)

	seen := make(map[int]struct{}, len(combined))
	result := make([]int, 0, len(combined))
	for _, rate := range combined {
		if rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}
	return result
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "AUDIO_DIR"); v != "" {
		cfg.AudioDir = v
	}
	if v := os.Getenv(EnvPrefix + "WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv(EnvPrefix + "CHUNK_INTERVAL"); v != "" {
		cfg.ChunkInterval = v
	}
	if v := os.Getenv(EnvPrefix + "MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv(EnvPrefix + "RETRY_BASE_DELAY"); v != "" {
		cfg.RetryBaseDelay = v
	}
	if v := os.Getenv(EnvPrefix + "IDLE_TIMEOUT"); v != "" {
		cfg.IdleTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "STT_PROVIDER"); v != "" {
		cfg.STTProvider = v
	}
	if v := os.Getenv(EnvPrefix + "STT_MODEL"); v != "" {
		cfg.STTModel = v
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.MicSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATES"); v != "" {
		cfg.MicSampleRates = parseSampleRates(v)
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.DialerAPIKey = os.Getenv(EnvPrefix + "DIALER_API_KEY")
	cfg.STTAPIKey = os.Getenv(EnvPrefix + "STT_API_KEY")
	cfg.WebhookSecret = os.Getenv(EnvPrefix + "WEBHOOK_SECRET")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.DialerAPIKey == "" {
		warnings = append(warnings, "Dialer API key not configured — call sessions cannot start. Set "+EnvPrefix+"DIALER_API_KEY.")
	} else if _, _, ok := strings.Cut(cfg.DialerAPIKey, ":"); !ok {
		warnings = append(warnings, "Dialer API key is not a key:secret pair — call sessions cannot start.")
	}
	if cfg.STTAPIKey == "" {
		warnings = append(warnings, "Speech-to-text API key not configured — transcription is disabled. Set "+EnvPrefix+"STT_API_KEY.")
	}
	if cfg.WebhookSecret == "" {
		warnings = append(warnings, "Webhook secret not configured — inbound telephony events will be rejected. Set "+EnvPrefix+"WEBHOOK_SECRET.")
	}
	switch cfg.STTProvider {
	case "openai", "deepgram":
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown stt_provider %q — using openai.", cfg.STTProvider))
		cfg.STTProvider = "openai"
	}
	if _, err := time.ParseDuration(cfg.ChunkInterval); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid chunk_interval %q — using default 5s.", cfg.ChunkInterval))
	}
	if _, err := time.ParseDuration(cfg.RetryBaseDelay); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid retry_base_delay %q — using default 1s.", cfg.RetryBaseDelay))
	}

	return warnings
}

func parseSampleRates(raw string) []int {
	parts := strings.Split(raw, ",")
	seen := make(map[int]struct{}, len(parts))
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		rate, err := strconv.Atoi(trimmed)
		if err != nil || rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}

	return result
}
