package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// maxHistoryEntries caps the archived intents kept per actor.
const maxHistoryEntries = 50

// Config root configuration
type Config struct {
	Workspace string         `mapstructure:"workspace"`
	Engines   EnginesConfig  `mapstructure:"engines"`
	Workflow  WorkflowConfig `mapstructure:"workflow"`
	Voice     VoiceConfig    `mapstructure:"voice"`
	History   HistoryConfig  `mapstructure:"history"`
	Advisory  AdvisoryConfig `mapstructure:"advisory"`
	Evidence  EvidenceConfig `mapstructure:"evidence"`
	Log       LogConfig      `mapstructure:"log"`
}

// EnginesConfig collaborator endpoints
type EnginesConfig struct {
	UnifiedURL     string `mapstructure:"unified_url"`
	Intent         string `mapstructure:"intent"`
	Compliance     string `mapstructure:"compliance"`
	Decision       string `mapstructure:"decision"`
	Action         string `mapstructure:"action"`
	Risk           string `mapstructure:"risk"`
	Explainability string `mapstructure:"explainability"`
	Evidence       string `mapstructure:"evidence"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// WorkflowConfig lifecycle settings
type WorkflowConfig struct {
	UnlockOnSelected bool   `mapstructure:"unlock_on_selected"`
	TenantID         string `mapstructure:"tenant_id"`
	ActorID          string `mapstructure:"actor_id"`
	Industry         string `mapstructure:"industry"`
}

// VoiceConfig voice command settings
type VoiceConfig struct {
	ConfirmationTimeoutSeconds int               `mapstructure:"confirmation_timeout_seconds"`
	Continuous                 bool              `mapstructure:"continuous"`
	SelectConfirmsDecision     bool              `mapstructure:"select_confirms_decision"`
	RescheduleAfterHours       int               `mapstructure:"reschedule_after_hours"`
	SpeechWSURL                string            `mapstructure:"speech_ws_url"`
	Transcriber                TranscriberConfig `mapstructure:"transcriber"`
}

// TranscriberConfig OpenAI-compatible audio transcription settings
type TranscriberConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// HistoryConfig intent history settings
type HistoryConfig struct {
	Backend        string `mapstructure:"backend"`
	Path           string `mapstructure:"path"`
	MaxEntries     int    `mapstructure:"max_entries"`
	FlushTimeoutMs int    `mapstructure:"flush_timeout_ms"`
}

// AdvisoryConfig RAG advisory settings
type AdvisoryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// EvidenceConfig voice evidence emission settings
type EvidenceConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
	QueueSize     int     `mapstructure:"queue_size"`
	Journal       bool    `mapstructure:"journal"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("failed to resolve home directory, using current directory as fallback", "error", err)
		homeDir = "."
	}
	return &Config{
		Workspace: filepath.Join(homeDir, ".intentpilot", "workspace"),
		Engines: EnginesConfig{
			Intent:         "http://localhost:7001",
			Compliance:     "http://localhost:7002",
			Decision:       "http://localhost:7003",
			Action:         "http://localhost:7004",
			Risk:           "http://localhost:7005",
			Explainability: "http://localhost:7006",
			Evidence:       "http://localhost:7007",
			TimeoutSeconds: 10,
		},
		Workflow: WorkflowConfig{
			UnlockOnSelected: true,
			TenantID:         "intent-platform",
			ActorID:          "default-user",
			Industry:         "real-estate",
		},
		Voice: VoiceConfig{
			ConfirmationTimeoutSeconds: 30,
			Continuous:                 true,
			RescheduleAfterHours:       24,
			SpeechWSURL:                "ws://localhost:8001/ws/transcribe",
		},
		History: HistoryConfig{
			Backend:        "file",
			MaxEntries:     maxHistoryEntries,
			FlushTimeoutMs: 2000,
		},
		Advisory: AdvisoryConfig{
			Enabled:     false,
			BaseURL:     "http://localhost:11434",
			Model:       "llama3",
			Temperature: 0.2,
			MaxTokens:   512,
		},
		Evidence: EvidenceConfig{
			Enabled:       true,
			RatePerSecond: 5,
			Burst:         10,
			QueueSize:     64,
			Journal:       true,
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ConfigDir returns the intentpilot config directory
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".intentpilot")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from file or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads config from the given path, creating it with defaults when
// it does not exist.
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveTo(configPath, cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("INTENTPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to file
func Save(cfg *Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo saves config to the given path
func SaveTo(configPath string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks that the configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Engines.TimeoutSeconds < 0 {
		return fmt.Errorf("engines.timeout_seconds must not be negative, got %d", c.Engines.TimeoutSeconds)
	}
	if c.Engines.TimeoutSeconds == 0 {
		c.Engines.TimeoutSeconds = 10
	}

	if c.Voice.ConfirmationTimeoutSeconds < 0 {
		return fmt.Errorf("voice.confirmation_timeout_seconds must not be negative, got %d", c.Voice.ConfirmationTimeoutSeconds)
	}
	if c.Voice.ConfirmationTimeoutSeconds == 0 {
		c.Voice.ConfirmationTimeoutSeconds = 30
	}
	if c.Voice.RescheduleAfterHours <= 0 {
		c.Voice.RescheduleAfterHours = 24
	}

	backend := strings.ToLower(strings.TrimSpace(c.History.Backend))
	switch backend {
	case "":
		c.History.Backend = "file"
	case "file", "sqlite":
		c.History.Backend = backend
	default:
		return fmt.Errorf("history.backend must be one of: file, sqlite; got %q", c.History.Backend)
	}
	if c.History.MaxEntries < 0 {
		return fmt.Errorf("history.max_entries must not be negative, got %d", c.History.MaxEntries)
	}
	if c.History.MaxEntries == 0 || c.History.MaxEntries > maxHistoryEntries {
		c.History.MaxEntries = maxHistoryEntries
	}
	if c.History.FlushTimeoutMs <= 0 {
		c.History.FlushTimeoutMs = 2000
	}

	if c.Advisory.Temperature < 0 || c.Advisory.Temperature > 2.0 {
		return fmt.Errorf("advisory.temperature must be between 0 and 2.0, got %f", c.Advisory.Temperature)
	}
	if c.Advisory.Enabled && strings.TrimSpace(c.Advisory.Model) == "" {
		return fmt.Errorf("advisory.model must be set when advisory is enabled")
	}
	if c.Advisory.MaxTokens <= 0 {
		c.Advisory.MaxTokens = 512
	}

	if c.Evidence.RatePerSecond < 0 {
		return fmt.Errorf("evidence.rate_per_second must not be negative, got %f", c.Evidence.RatePerSecond)
	}
	if c.Evidence.Burst <= 0 {
		c.Evidence.Burst = 10
	}
	if c.Evidence.QueueSize <= 0 {
		c.Evidence.QueueSize = 64
	}

	if strings.TrimSpace(c.Workflow.ActorID) == "" {
		c.Workflow.ActorID = "default-user"
	}
	if strings.TrimSpace(c.Workflow.TenantID) == "" {
		c.Workflow.TenantID = "intent-platform"
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	return nil
}

// WorkspacePath returns the expanded workspace path
func (c *Config) WorkspacePath() string {
	ws := strings.TrimSpace(c.Workspace)
	if ws == "" {
		return filepath.Join(ConfigDir(), "workspace")
	}
	if ws[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(ConfigDir(), "workspace")
		}
		rest := strings.TrimPrefix(strings.TrimPrefix(ws[1:], string(filepath.Separator)), "/")
		return filepath.Join(homeDir, rest)
	}
	return ws
}

// HistoryPath returns the history store location for the configured backend.
func (c *Config) HistoryPath() string {
	if p := strings.TrimSpace(c.History.Path); p != "" {
		return p
	}
	if c.History.Backend == "sqlite" {
		return filepath.Join(c.WorkspacePath(), "state", "history.db")
	}
	return filepath.Join(c.WorkspacePath(), "state", "history.json")
}

// EngineTimeout returns the per-request collaborator timeout.
func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.Engines.TimeoutSeconds) * time.Second
}

// ConfirmationTimeout returns the voice confirmation window.
func (c *Config) ConfirmationTimeout() time.Duration {
	return time.Duration(c.Voice.ConfirmationTimeoutSeconds) * time.Second
}

// FlushTimeout bounds the history flush on exit.
func (c *Config) FlushTimeout() time.Duration {
	return time.Duration(c.History.FlushTimeoutMs) * time.Millisecond
}

// RescheduleAfter is how far a voice reschedule moves an action.
func (c *Config) RescheduleAfter() time.Duration {
	return time.Duration(c.Voice.RescheduleAfterHours) * time.Hour
}
