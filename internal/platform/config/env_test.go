package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port  int           `env:"MATHMCP_TEST_PORT" envDefault:"8000"`
	Delay time.Duration `env:"MATHMCP_TEST_DELAY" envDefault:"100ms"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 8000 {
		t.Fatalf("expected default port 8000, got %d", cfg.Port)
	}
	if cfg.Delay != 100*time.Millisecond {
		t.Fatalf("expected default delay 100ms, got %s", cfg.Delay)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("MATHMCP_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvWithLookupUsesLookupOnly(t *testing.T) {
	t.Setenv("MATHMCP_TEST_PORT", "1111")
	lookup := func(key string) (string, bool) {
		if key == "MATHMCP_TEST_DELAY" {
			return "0s", true
		}
		return "", false
	}

	var cfg envTestConfig
	if err := ParseEnvWithLookup(&cfg, lookup); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 8000 {
		t.Fatalf("expected lookup to hide process env, got port %d", cfg.Port)
	}
	if cfg.Delay != 0 {
		t.Fatalf("expected delay from lookup, got %s", cfg.Delay)
	}
}

func TestParseEnvWithLookupError(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "MATHMCP_TEST_PORT" {
			return "eighty", true
		}
		return "", false
	}
	var cfg envTestConfig
	if err := ParseEnvWithLookup(&cfg, lookup); err == nil {
		t.Fatal("expected error for invalid port")
	}
}
