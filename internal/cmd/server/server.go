// Package server parses server flags and runs the math server on the selected
// transport.
package server

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/mathmcp/internal/platform/cmd"
	"github.com/louisbranch/mathmcp/internal/platform/config"
	"github.com/louisbranch/mathmcp/internal/services/math/domain"
	"github.com/louisbranch/mathmcp/internal/services/rpc/dispatch"
	"github.com/louisbranch/mathmcp/internal/services/rpc/httpapi"
	"github.com/louisbranch/mathmcp/internal/services/rpc/mcpbridge"
	"github.com/louisbranch/mathmcp/internal/services/rpc/pipe"
	"github.com/louisbranch/mathmcp/internal/services/rpc/protocol"
	"github.com/louisbranch/mathmcp/internal/services/rpc/registry"
)

// Transport names accepted by -transport.
const (
	TransportStdio    = "stdio"
	TransportHTTP     = "http"
	TransportMCPStdio = "mcp-stdio"
)

// Config holds server command configuration.
type Config struct {
	Transport string        `env:"MATHMCP_TRANSPORT"   envDefault:"stdio"`
	Host      string        `env:"MATHMCP_HOST"        envDefault:"0.0.0.0"`
	Port      int           `env:"PORT"                envDefault:"8000"`
	Prefix    string        `env:"MATHMCP_HTTP_PREFIX"`
	Prompts   bool          `env:"MATHMCP_PROMPTS"     envDefault:"true"`
	Delay     time.Duration `env:"MATHMCP_OP_DELAY"    envDefault:"100ms"`
}

// ParseConfig parses environment and flags into a Config. Flags win over the
// environment.
func ParseConfig(fs *flag.FlagSet, args []string, lookup config.LookupFunc) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg, lookup); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport: stdio, http or mcp-stdio")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "HTTP listen host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	fs.StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "Mount prefix for the HTTP routes")
	fs.BoolVar(&cfg.Prompts, "prompts", cfg.Prompts, "Register the prompt templates")
	fs.DurationVar(&cfg.Delay, "delay", cfg.Delay, "Simulated latency of each call")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unsupported settings.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportHTTP, TransportMCPStdio:
	default:
		return fmt.Errorf("transport %q is not supported", c.Transport)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Run builds the registry and serves it on the configured transport until
// ctx is canceled or, for stdio transports, the input stream ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		rt, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		switch cfg.Transport {
		case TransportHTTP:
			return rt.serveHTTP(ctx, cfg)
		case TransportMCPStdio:
			return rt.serveMCPStdio(ctx)
		default:
			return rt.serveStdio(ctx, os.Stdin, os.Stdout)
		}
	})
}

type runtime struct {
	dispatcher *dispatch.Dispatcher
	rpc        *protocol.Handler
}

func newRuntime(cfg Config) (*runtime, error) {
	reg, err := domain.NewRegistry(domain.Options{Delay: cfg.Delay, Prompts: cfg.Prompts})
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	d := dispatch.New(reg)
	log.Printf("registered %s over %s", describeRegistry(reg), cfg.Transport)
	return &runtime{
		dispatcher: d,
		rpc:        protocol.NewHandler(d),
	}, nil
}

func describeRegistry(reg *registry.Registry) string {
	var tools, prompts []string
	for descriptor := range reg.List() {
		if descriptor.Kind == registry.KindPrompt {
			prompts = append(prompts, descriptor.Name)
			continue
		}
		tools = append(tools, descriptor.Name)
	}
	summary := "tools " + strings.Join(tools, ", ")
	if len(prompts) > 0 {
		summary += "; prompts " + strings.Join(prompts, ", ")
	}
	return summary
}

func (rt *runtime) serveStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	return pipe.New(rt.rpc).Serve(ctx, in, out)
}

func (rt *runtime) serveMCPStdio(ctx context.Context) error {
	server, err := mcpbridge.NewServer(rt.dispatcher, protocol.DefaultServerInfo)
	if err != nil {
		return err
	}
	return mcpbridge.ServeStdio(ctx, server)
}

func (rt *runtime) httpHandler(cfg Config) (http.Handler, error) {
	mcpServer, err := mcpbridge.NewServer(rt.dispatcher, protocol.DefaultServerInfo)
	if err != nil {
		return nil, err
	}
	return httpapi.NewHandler(
		rt.dispatcher,
		rt.rpc,
		httpapi.WithPrefix(cfg.Prefix),
		httpapi.WithMCPHandler(mcpbridge.HTTPHandler(mcpServer)),
	), nil
}

func (rt *runtime) serveHTTP(ctx context.Context, cfg Config) error {
	handler, err := rt.httpHandler(cfg)
	if err != nil {
		return err
	}
	server, err := httpapi.NewServer(cfg.Addr(), handler)
	if err != nil {
		return err
	}
	return server.Start(ctx)
}
