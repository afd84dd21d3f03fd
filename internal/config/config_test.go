package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
	if cfg.Oracle.Type != "openai" {
		t.Errorf("oracle type = %q", cfg.Oracle.Type)
	}
	if cfg.OCR.MinConfidence != 0.4 {
		t.Errorf("ocr min_confidence = %v, want 0.4", cfg.OCR.MinConfidence)
	}
	if cfg.Fill.ConfidenceFloor != 0 {
		t.Errorf("fill confidence_floor = %v, want 0", cfg.Fill.ConfidenceFloor)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(c *Config) {}, false},
		{"static oracle", func(c *Config) { c.Oracle.Type = "static" }, false},
		{"unknown oracle", func(c *Config) { c.Oracle.Type = "ouija" }, true},
		{"floor too high", func(c *Config) { c.Fill.ConfidenceFloor = 1.5 }, true},
		{"negative confidence", func(c *Config) { c.OCR.MinConfidence = -0.1 }, true},
		{"zero attempts", func(c *Config) { c.Fill.MaxAttempts = 0 }, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveEnvVars(t *testing.T) {
	os.Setenv("INKFILL_TEST_KEY", "secret123")
	defer os.Unsetenv("INKFILL_TEST_KEY")

	tests := []struct {
		in   string
		want string
	}{
		{"${INKFILL_TEST_KEY}", "secret123"},
		{"prefix-${INKFILL_TEST_KEY}-suffix", "prefix-secret123-suffix"},
		{"no vars here", "no vars here"},
		{"${UNSET_VARIABLE_XYZ}", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ResolveEnvVars(tt.in); got != tt.want {
			t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestManager_LoadsFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := `
oracle:
  type: static
fill:
  confidence_floor: 0.5
  max_attempts: 2
server:
  port: 9000
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cm, err := NewManager(cfgPath)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	cfg := cm.Get()
	if cfg.Oracle.Type != "static" {
		t.Errorf("oracle type = %q, want static", cfg.Oracle.Type)
	}
	if cfg.Fill.ConfidenceFloor != 0.5 {
		t.Errorf("confidence_floor = %v, want 0.5", cfg.Fill.ConfidenceFloor)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	// Untouched sections keep defaults.
	if cfg.Oracle.Timeout != 120*time.Second {
		t.Errorf("oracle timeout = %v, want default", cfg.Oracle.Timeout)
	}
}

func TestManager_DiscoversInkfillYAML(t *testing.T) {
	dir := t.TempDir()
	content := `
oracle:
  type: static
`
	if err := os.WriteFile(filepath.Join(dir, "inkfill.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cm, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if got := cm.Get().Oracle.Type; got != "static" {
		t.Errorf("oracle type = %q, want static from ./inkfill.yaml", got)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("WriteDefault() wrote empty file")
	}
}
