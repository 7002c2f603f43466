package server

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func noEnv(string) (string, bool) { return "", false }

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil, noEnv)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Transport != TransportStdio {
		t.Fatalf("expected default transport stdio, got %q", cfg.Transport)
	}
	if cfg.Addr() != "0.0.0.0:8000" {
		t.Fatalf("expected default addr 0.0.0.0:8000, got %q", cfg.Addr())
	}
	if !cfg.Prompts {
		t.Fatal("expected prompts enabled by default")
	}
	if cfg.Delay != 100*time.Millisecond {
		t.Fatalf("expected default delay 100ms, got %s", cfg.Delay)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	lookup := func(key string) (string, bool) {
		switch key {
		case "PORT":
			return "9000", true
		case "MATHMCP_TRANSPORT":
			return "http", true
		case "MATHMCP_HTTP_PREFIX":
			return "/math", true
		case "MATHMCP_PROMPTS":
			return "false", true
		default:
			return "", false
		}
	}
	args := []string{"-host", "127.0.0.1", "-delay", "0s", "-prompts=true"}
	cfg, err := ParseConfig(fs, args, lookup)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9000" {
		t.Fatalf("expected env port with flag host, got %q", cfg.Addr())
	}
	if cfg.Transport != TransportHTTP || cfg.Prefix != "/math" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !cfg.Prompts || cfg.Delay != 0 {
		t.Fatalf("expected flags to override env, got %+v", cfg)
	}
}

func TestParseConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		lookup func(string) (string, bool)
	}{
		{name: "transport", args: []string{"-transport", "carrier-pigeon"}, lookup: noEnv},
		{name: "port", args: []string{"-port", "70000"}, lookup: noEnv},
		{name: "delay", args: []string{"-delay", "-1s"}, lookup: noEnv},
		{name: "env delay", lookup: func(key string) (string, bool) {
			if key == "MATHMCP_OP_DELAY" {
				return "soon", true
			}
			return "", false
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("server", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			if _, err := ParseConfig(fs, tt.args, tt.lookup); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestServeStdio(t *testing.T) {
	rt, err := newRuntime(Config{Transport: TransportStdio, Prompts: true})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":0,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"test","version":"1.0"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":1,"method":"add","params":{"a":15,"b":27}}`,
		`{"jsonrpc":"2.0","id":2,"method":"prompts/list"}`,
	}, "\n")
	var out bytes.Buffer
	if err := rt.serveStdio(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("serve: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 responses, got %d: %q", len(lines), out.String())
	}
	if !strings.Contains(lines[0], `"protocolVersion":"2024-11-05"`) || !strings.Contains(lines[0], `"prompts":{}`) {
		t.Fatalf("unexpected initialize response %s", lines[0])
	}
	if lines[1] != `{"jsonrpc":"2.0","id":1,"result":42}` {
		t.Fatalf("unexpected add response %s", lines[1])
	}
	if !strings.Contains(lines[2], "Multiply_Prompt") {
		t.Fatalf("unexpected prompts response %s", lines[2])
	}
}

func TestHTTPHandler(t *testing.T) {
	cfg := Config{Transport: TransportHTTP, Prefix: "math"}
	rt, err := newRuntime(cfg)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	handler, err := rt.httpHandler(cfg)
	if err != nil {
		t.Fatalf("http handler: %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, err := http.Get(server.URL + "/math/multiply/6/9")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if strings.TrimSpace(string(body)) != `{"result":54,"operation":"6 * 9 = 54"}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestRunHTTPStopsOnCancel(t *testing.T) {
	cfg := Config{Transport: TransportHTTP, Host: "127.0.0.1", Port: 0}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}
