package config

import (
	"fmt"
	"time"

	"github.com/inkfill/inkfill/internal/resolver"
)

// Config is the full inkfill configuration.
type Config struct {
	Oracle OracleConfig `mapstructure:"oracle" yaml:"oracle"`
	OCR    OCRConfig    `mapstructure:"ocr" yaml:"ocr"`
	Fill   FillConfig   `mapstructure:"fill" yaml:"fill"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
}

// OracleConfig configures the matching oracle.
type OracleConfig struct {
	// Type selects the implementation: "openai" or "static".
	Type        string        `mapstructure:"type" yaml:"type"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// OCRConfig configures the OCR stage.
type OCRConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey        string        `mapstructure:"api_key" yaml:"api_key"`
	MinConfidence float64       `mapstructure:"min_confidence" yaml:"min_confidence"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// FillConfig configures pipeline behavior.
type FillConfig struct {
	// ConfidenceFloor gates whether a proposed match is applied; zero
	// applies every proposal that carries a value.
	ConfidenceFloor float64 `mapstructure:"confidence_floor" yaml:"confidence_floor"`
	MaxAttempts     int     `mapstructure:"max_attempts" yaml:"max_attempts"`
	ForceOCR        bool    `mapstructure:"force_ocr" yaml:"force_ocr"`
	SkipBackup      bool    `mapstructure:"skip_backup" yaml:"skip_backup"`
	// Categories configures the checkbox decision categories; nil
	// selects the built-in ones.
	Categories []resolver.Category `mapstructure:"categories" yaml:"categories,omitempty"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// ArchiveDir, when set, keeps a copy of every filled document.
	ArchiveDir string `mapstructure:"archive_dir" yaml:"archive_dir,omitempty"`
}

// DefaultConfig returns the configuration used when no file or
// environment overrides are present.
func DefaultConfig() Config {
	return Config{
		Oracle: OracleConfig{
			Type:        "openai",
			Model:       "gpt-4o-mini",
			APIKey:      "${OPENAI_API_KEY}",
			Temperature: 0.1,
			MaxRetries:  3,
			Timeout:     120 * time.Second,
		},
		OCR: OCRConfig{
			Enabled:       true,
			APIKey:        "${OCR_API_KEY}",
			MinConfidence: 0.4,
			Timeout:       120 * time.Second,
		},
		Fill: FillConfig{
			ConfidenceFloor: 0,
			MaxAttempts:     3,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Oracle.Type != "openai" && c.Oracle.Type != "static" {
		return fmt.Errorf("unknown oracle type %q", c.Oracle.Type)
	}
	if c.Fill.ConfidenceFloor < 0 || c.Fill.ConfidenceFloor > 1 {
		return fmt.Errorf("fill.confidence_floor %v outside [0,1]", c.Fill.ConfidenceFloor)
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 1 {
		return fmt.Errorf("ocr.min_confidence %v outside [0,1]", c.OCR.MinConfidence)
	}
	if c.Fill.MaxAttempts < 1 {
		return fmt.Errorf("fill.max_attempts must be at least 1")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}
