// Package config provides XML-based configuration for plant deployments
// where the service runs next to the control room with no config server.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bina-refinery/logbook/internal/models"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"RefineryLogbook"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Logbook behaviour
	Logbook LogbookConfig `xml:"Logbook"`

	// Voice capture
	Voice VoiceConfig `xml:"Voice"`

	// Reading fan-out
	Publish PublishConfig `xml:"Publish"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port           int    `xml:"Port"`
	BindAddress    string `xml:"BindAddress"`
	EnableCORS     bool   `xml:"EnableCORS"`
	AllowOrigins   string `xml:"AllowOrigins"`
	ReadTimeout    int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout   int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout    int    `xml:"IdleTimeoutSeconds"`
	RequestTimeout int    `xml:"RequestTimeoutSeconds"`
	BodyLimit      string `xml:"BodyLimit"`
}

// StorageConfig contains log file settings
type StorageConfig struct {
	DataDirectory string `xml:"DataDirectory"`
	LogFile       string `xml:"LogFile"`
	// Backend is xlsx, csv or duckdb.
	Backend string `xml:"Backend"`
}

// LogbookConfig selects the variant and its range gating
type LogbookConfig struct {
	// Variant is area (wizard, Status column) or equipment (direct selectors).
	Variant string `xml:"Variant"`
	// GateOnRange refuses out-of-range readings. When omitted it defaults
	// to true for the area variant and false for equipment.
	GateOnRange *bool `xml:"GateOnRange,omitempty"`
	// CatalogFile replaces the built-in catalog when set.
	CatalogFile            string `xml:"CatalogFile"`
	SessionTimeoutMinutes  int    `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes"`
}

// VoiceConfig contains microphone and transcription settings
type VoiceConfig struct {
	// Enabled turns on voice input. Setting OPENAI_API_KEY or WHISPER_URL
	// also enables it.
	Enabled            bool    `xml:"Enabled"`
	EnableMicrophone   bool    `xml:"EnableMicrophone"`
	Device             string  `xml:"Device"`
	SampleRate         int     `xml:"SampleRate"`
	CalibrationMs      int     `xml:"CalibrationMs"`
	TimeoutSeconds     int     `xml:"TimeoutSeconds"`
	PhraseLimitSeconds int     `xml:"PhraseLimitSeconds"`
	PauseMs            int     `xml:"PauseMs"`
	EnergyRatio        float64 `xml:"EnergyRatio"`
	MinEnergy          float64 `xml:"MinEnergy"`
	// Transcriber is openai or whisper.
	Transcriber           string `xml:"Transcriber"`
	Endpoint              string `xml:"Endpoint"`
	APIKey                string `xml:"APIKey"`
	Model                 string `xml:"Model"`
	Language              string `xml:"Language"`
	RequestTimeoutSeconds int    `xml:"RequestTimeoutSeconds"`
}

// PublishConfig contains MQTT settings
type PublishConfig struct {
	Enabled     bool   `xml:"Enabled"`
	Broker      string `xml:"Broker"`
	Username    string `xml:"Username"`
	Password    string `xml:"Password"`
	ClientID    string `xml:"ClientID"`
	TopicPrefix string `xml:"TopicPrefix"`
	QoS         int    `xml:"QoS"`
	Retain      bool   `xml:"Retain"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	LogFormat            string `xml:"LogFormat"`
	LogFile              string `xml:"LogFile"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	EnableMetrics        bool   `xml:"EnableMetrics"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:           8090,
			BindAddress:    "0.0.0.0",
			EnableCORS:     true,
			AllowOrigins:   "*",
			ReadTimeout:    30,
			WriteTimeout:   60,
			IdleTimeout:    120,
			RequestTimeout: 30,
			BodyLimit:      "10M",
		},
		Storage: StorageConfig{
			DataDirectory: "./data",
			LogFile:       "bina_refinery_log.xlsx",
			Backend:       "xlsx",
		},
		Logbook: LogbookConfig{
			Variant:                string(models.VariantArea),
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
		},
		Voice: VoiceConfig{
			Enabled:               false,
			EnableMicrophone:      false,
			Device:                "default",
			SampleRate:            16000,
			CalibrationMs:         2000,
			TimeoutSeconds:        5,
			PhraseLimitSeconds:    5,
			PauseMs:               800,
			EnergyRatio:           1.5,
			MinEnergy:             300,
			Transcriber:           "openai",
			Model:                 "whisper-1",
			Language:              "en",
			RequestTimeoutSeconds: 30,
		},
		Publish: PublishConfig{
			Enabled:     false,
			Broker:      "tcp://localhost:1883",
			TopicPrefix: "refinery/logbook",
			QoS:         1,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "text",
			EnableRequestLogging: true,
			EnableMetrics:        true,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Elements missing from the file keep their defaults.
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	if err := config.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Bina Refinery Operations Logbook Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() error {
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		c.Server.Port = p
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	if backend := os.Getenv("LOGBOOK_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}

	if variant := os.Getenv("LOGBOOK_VARIANT"); variant != "" {
		c.Logbook.Variant = variant
	}

	if gate := os.Getenv("LOGBOOK_GATE_ON_RANGE"); gate != "" {
		v, err := strconv.ParseBool(gate)
		if err != nil {
			return fmt.Errorf("invalid LOGBOOK_GATE_ON_RANGE %q: %w", gate, err)
		}
		c.Logbook.GateOnRange = &v
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Voice.APIKey == "" {
		c.Voice.APIKey = key
		if c.Voice.Transcriber == "openai" {
			c.Voice.Enabled = true
		}
	}

	if url := os.Getenv("WHISPER_URL"); url != "" {
		c.Voice.Enabled = true
		c.Voice.Transcriber = "whisper"
		c.Voice.Endpoint = url
	}

	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		c.Publish.Enabled = true
		c.Publish.Broker = broker
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}

	return nil
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if c.Logbook.CatalogFile != "" && !filepath.IsAbs(c.Logbook.CatalogFile) {
		c.Logbook.CatalogFile = filepath.Join(configDir, c.Logbook.CatalogFile)
	}
	if c.Advanced.LogFile != "" && !filepath.IsAbs(c.Advanced.LogFile) {
		c.Advanced.LogFile = filepath.Join(configDir, c.Advanced.LogFile)
	}
}

// Validate reports every invalid setting, joined.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("Server.Port %d out of range", c.Server.Port))
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "xlsx", "csv", "duckdb":
	default:
		errs = append(errs, fmt.Errorf("Storage.Backend %q is invalid; valid values: xlsx, csv, duckdb", c.Storage.Backend))
	}
	if c.Storage.LogFile == "" {
		errs = append(errs, errors.New("Storage.LogFile is required"))
	}
	if !models.Variant(c.Logbook.Variant).IsValid() {
		errs = append(errs, fmt.Errorf("Logbook.Variant %q is invalid; valid values: area, equipment", c.Logbook.Variant))
	}
	if c.Logbook.SessionTimeoutMinutes <= 0 {
		errs = append(errs, errors.New("Logbook.SessionTimeoutMinutes must be positive"))
	}
	if c.Logbook.CleanupIntervalMinutes <= 0 {
		errs = append(errs, errors.New("Logbook.CleanupIntervalMinutes must be positive"))
	}

	if c.Voice.Enabled {
		switch c.Voice.Transcriber {
		case "openai":
			if c.Voice.APIKey == "" {
				errs = append(errs, errors.New("Voice.APIKey (or OPENAI_API_KEY) is required for the openai transcriber"))
			}
		case "whisper":
			if c.Voice.Endpoint == "" {
				errs = append(errs, errors.New("Voice.Endpoint is required for the whisper transcriber"))
			}
		default:
			errs = append(errs, fmt.Errorf("Voice.Transcriber %q is invalid; valid values: openai, whisper", c.Voice.Transcriber))
		}
		if c.Voice.SampleRate <= 0 {
			errs = append(errs, errors.New("Voice.SampleRate must be positive"))
		}
		if c.Voice.CalibrationMs < 0 || c.Voice.TimeoutSeconds <= 0 || c.Voice.PhraseLimitSeconds <= 0 || c.Voice.PauseMs <= 0 {
			errs = append(errs, errors.New("Voice timings must be positive"))
		}
	}

	if c.Publish.Enabled {
		if c.Publish.Broker == "" {
			errs = append(errs, errors.New("Publish.Broker is required when publishing is enabled"))
		}
		if c.Publish.QoS < 0 || c.Publish.QoS > 2 {
			errs = append(errs, fmt.Errorf("Publish.QoS %d must be 0, 1 or 2", c.Publish.QoS))
		}
	}

	return errors.Join(errs...)
}

// Variant returns the configured logbook variant.
func (c *AppConfig) Variant() models.Variant {
	return models.Variant(c.Logbook.Variant)
}

// GateEnabled resolves the range gating flag, defaulting by variant.
func (c *AppConfig) GateEnabled() bool {
	if c.Logbook.GateOnRange != nil {
		return *c.Logbook.GateOnRange
	}
	return c.Variant() == models.VariantArea
}

// LogPath returns the absolute path of the readings log.
func (c *AppConfig) LogPath() string {
	if filepath.IsAbs(c.Storage.LogFile) {
		return c.Storage.LogFile
	}
	return filepath.Join(c.Storage.DataDirectory, c.Storage.LogFile)
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// SessionTimeout is the idle time after which sessions are dropped.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Logbook.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval is the period of the session cleanup ticker.
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Logbook.CleanupIntervalMinutes) * time.Minute
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		filepath.Dir(c.LogPath()),
	}
	if c.Advanced.LogFile != "" {
		dirs = append(dirs, filepath.Dir(c.Advanced.LogFile))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
