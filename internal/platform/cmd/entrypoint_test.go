package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8000"`
	Mode    string `env:"CMD_TEST_MODE" envDefault:"stdio"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("CMD_TEST_MODE", "env-mode")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfgRef := testConfig{}
	if err := ParseConfig(&cfgRef, nil); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfgRef.Address, "address", cfgRef.Address, "address")
	fs.StringVar(&cfgRef.Mode, "mode", cfgRef.Mode, "mode")

	if err := ParseArgs(fs, []string{"-address", "flag:9001"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfgRef.Address != "flag:9001" {
		t.Fatalf("expected flag value for address, got %q", cfgRef.Address)
	}
	if cfgRef.Mode != "env-mode" {
		t.Fatalf("expected env default mode, got %q", cfgRef.Mode)
	}
}

func TestParseConfigWithLookup(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "CMD_TEST_MODE" {
			return "http", true
		}
		return "", false
	}
	var cfg testConfig
	if err := ParseConfig(&cfg, lookup); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Mode != "http" {
		t.Fatalf("expected lookup mode, got %q", cfg.Mode)
	}
	if cfg.Address != "127.0.0.1:8000" {
		t.Fatalf("expected default address, got %q", cfg.Address)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil, nil); err == nil {
		t.Fatal("expected nil target error")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestRunWithTelemetryRunsLoop(t *testing.T) {
	t.Setenv("MATHMCP_OTEL_ENDPOINT", "")
	sentinel := errors.New("stop")
	called := false
	err := RunWithTelemetry(context.Background(), ServiceServer, func(context.Context) error {
		called = true
		return sentinel
	})
	if !called {
		t.Fatal("expected run function to be called")
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected run error to propagate, got %v", err)
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceServer, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}
