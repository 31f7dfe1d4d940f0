package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sampleConfig struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"http://localhost:8080"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
	Email   string        `envconfig:"EMAIL" split_words:"true"`
}

func TestNewAppliesDefaults(t *testing.T) {
	conf, err := New[sampleConfig]("SAMPLETEST")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if conf.BaseURL != "http://localhost:8080" {
		t.Fatalf("BaseURL = %q, want default", conf.BaseURL)
	}
	if conf.Timeout != 15*time.Second {
		t.Fatalf("Timeout = %v, want 15s", conf.Timeout)
	}
}

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv("SAMPLETEST_BASE_URL", "https://backend.internal")
	t.Setenv("SAMPLETEST_TIMEOUT", "3s")
	t.Setenv("SAMPLETEST_EMAIL", "agent@example.com")

	conf, err := New[sampleConfig]("SAMPLETEST")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if conf.BaseURL != "https://backend.internal" {
		t.Fatalf("BaseURL = %q", conf.BaseURL)
	}
	if conf.Timeout != 3*time.Second {
		t.Fatalf("Timeout = %v", conf.Timeout)
	}
	if conf.Email != "agent@example.com" {
		t.Fatalf("Email = %q", conf.Email)
	}
}

func TestNewSeedsFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "SAMPLEFILE_BASE_URL=https://from-file.internal\nSAMPLEFILE_EMAIL=file@example.com\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	t.Setenv("PORTAGENT_ENV_FILE", path)
	// The real environment wins over the file.
	t.Setenv("SAMPLEFILE_EMAIL", "env@example.com")

	type fileConfig struct {
		BaseURL string `envconfig:"BASE_URL" split_words:"true"`
		Email   string `envconfig:"EMAIL" split_words:"true"`
	}
	conf, err := New[fileConfig]("SAMPLEFILE")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if conf.BaseURL != "https://from-file.internal" {
		t.Fatalf("BaseURL = %q, want the file value", conf.BaseURL)
	}
	if conf.Email != "env@example.com" {
		t.Fatalf("Email = %q, want the environment to win", conf.Email)
	}
}

func TestNewMissingExplicitEnvFile(t *testing.T) {
	t.Setenv("PORTAGENT_ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	if _, err := New[sampleConfig]("SAMPLEMISS"); err == nil {
		t.Fatal("expected error for a missing explicit env file")
	}
}

type requiredConfig struct {
	APIKey string `envconfig:"API_KEY" split_words:"true" required:"true"`
}

func TestNewRequiredField(t *testing.T) {
	if _, err := New[requiredConfig]("SAMPLEREQ"); err == nil {
		t.Fatal("expected error for missing required field")
	}

	t.Setenv("SAMPLEREQ_API_KEY", "k")
	conf, err := New[requiredConfig]("SAMPLEREQ")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if conf.APIKey != "k" {
		t.Fatalf("APIKey = %q", conf.APIKey)
	}
}
