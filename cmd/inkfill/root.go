package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/inkfill/inkfill/internal/config"
	"github.com/inkfill/inkfill/internal/ocr"
	"github.com/inkfill/inkfill/internal/oracle"
	"github.com/inkfill/inkfill/internal/pipeline"
	"github.com/inkfill/inkfill/internal/resolver"
	"github.com/inkfill/inkfill/version"
)

var (
	cfgFile  string
	logLevel string

	cfgManager *config.Manager
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "inkfill",
	Short: "AI-assisted PDF form filling from JSON records",
	Long: `Inkfill fills PDF forms from structured JSON records.

The pipeline includes:
  - AcroForm widget extraction with OCR fallback for scanned forms
  - Spatial linking of page text to form fields
  - LLM-backed field matching with bounded retries
  - A checkbox decision chain for mutually exclusive option groups
  - Overlay annotations for fields that reject direct writes`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./inkfill.yaml or ~/.inkfill/inkfill.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn, or error",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logger = newLogger(logLevel)
		m, err := config.NewManager(cfgFile)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		cfgManager = m
		return nil
	}

	rootCmd.AddCommand(versionCmd)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// buildOracle wires the configured oracle implementation.
func buildOracle(cfg *config.Config) (oracle.Oracle, error) {
	switch cfg.Oracle.Type {
	case "static":
		return &oracle.StaticOracle{}, nil
	case "openai":
		apiKey := config.ResolveEnvVars(cfg.Oracle.APIKey)
		if apiKey == "" {
			return nil, fmt.Errorf("oracle api_key is empty after environment resolution")
		}
		return oracle.NewOpenAIClient(oracle.OpenAIConfig{
			APIKey:      apiKey,
			Model:       cfg.Oracle.Model,
			BaseURL:     cfg.Oracle.BaseURL,
			Temperature: cfg.Oracle.Temperature,
			MaxRetries:  cfg.Oracle.MaxRetries,
			Timeout:     cfg.Oracle.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown oracle type %q", cfg.Oracle.Type)
	}
}

// buildOCREngine wires the OCR stage, or returns nil when disabled.
func buildOCREngine(cfg *config.Config) *ocr.Engine {
	if !cfg.OCR.Enabled || cfg.OCR.BaseURL == "" {
		return nil
	}
	client := ocr.NewRemoteClient(ocr.RemoteConfig{
		BaseURL: cfg.OCR.BaseURL,
		APIKey:  config.ResolveEnvVars(cfg.OCR.APIKey),
		Timeout: cfg.OCR.Timeout,
	})
	return ocr.NewEngine(client, cfg.OCR.MinConfidence, logger)
}

// buildPipeline assembles the fill pipeline from configuration.
func buildPipeline(cfg *config.Config, auditPath string) (*pipeline.Pipeline, error) {
	o, err := buildOracle(cfg)
	if err != nil {
		return nil, err
	}
	opts := pipeline.Options{
		ForceOCR:        cfg.Fill.ForceOCR,
		SkipBackup:      cfg.Fill.SkipBackup,
		ConfidenceFloor: cfg.Fill.ConfidenceFloor,
		Categories:      cfg.Fill.Categories,
		ResolverConfig:  resolver.Config{MaxAttempts: cfg.Fill.MaxAttempts},
		AuditPath:       auditPath,
	}
	return pipeline.New(o, buildOCREngine(cfg), opts, logger), nil
}
