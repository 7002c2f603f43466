// Package client parses client flags and runs discovery, verification or a
// single query against a math server.
package client

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/mathmcp/internal/platform/cmd"
	"github.com/louisbranch/mathmcp/internal/platform/config"
	rpcclient "github.com/louisbranch/mathmcp/internal/services/rpc/client"
)

// Transport names accepted by -transport.
const (
	TransportPipe = "pipe"
	TransportHTTP = "http"
	TransportMCP  = "mcp"
)

// Config holds client command configuration.
type Config struct {
	Transport string        `env:"MATHMCP_CLIENT_TRANSPORT" envDefault:"pipe"`
	ServerCmd string        `env:"MATHMCP_SERVER_CMD"       envDefault:"mathmcp-server"`
	URL       string        `env:"MATHMCP_URL"              envDefault:"http://localhost:8000"`
	Timeout   time.Duration `env:"MATHMCP_CLIENT_TIMEOUT"   envDefault:"10s"`
	Verify    bool
	Query     string
}

// ParseConfig parses environment and flags into a Config. Positional
// arguments form the query.
func ParseConfig(fs *flag.FlagSet, args []string, lookup config.LookupFunc) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg, lookup); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport: pipe, http or mcp")
	fs.StringVar(&cfg.ServerCmd, "server-cmd", cfg.ServerCmd, "Server command spawned by the pipe and mcp transports")
	fs.StringVar(&cfg.URL, "url", cfg.URL, "Server URL for the http transport")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Timeout per call")
	fs.BoolVar(&cfg.Verify, "verify", cfg.Verify, "Run the verification suite and exit non-zero on failure")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.Query = strings.TrimSpace(strings.Join(fs.Args(), " "))

	switch cfg.Transport {
	case TransportPipe, TransportHTTP, TransportMCP:
	default:
		return Config{}, fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
	return cfg, nil
}

// Run opens a session and performs the requested action, writing results to
// out and diagnostics to errOut.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceClient, func(ctx context.Context) error {
		session, err := openSession(cfg, errOut)
		if err != nil {
			return err
		}
		defer func() {
			if err := session.Close(); err != nil {
				fmt.Fprintf(errOut, "close session: %v\n", err)
			}
		}()

		switch {
		case cfg.Verify:
			return verify(ctx, session, out)
		case cfg.Query != "":
			return query(ctx, session, cfg.Query, rpcclient.PatternResolver{}, out)
		default:
			return discover(ctx, session, out)
		}
	})
}

// openSession connects over the configured transport. The pipe and mcp
// transports spawn the server command with the matching -transport flag.
func openSession(cfg Config, errOut io.Writer) (rpcclient.Session, error) {
	switch cfg.Transport {
	case TransportHTTP:
		return rpcclient.NewHTTPSession(cfg.URL, nil)
	case TransportMCP:
		cmd, err := serverCommand(cfg.ServerCmd, "mcp-stdio", errOut)
		if err != nil {
			return nil, err
		}
		return rpcclient.NewMCPCommandSession(cmd), nil
	default:
		cmd, err := serverCommand(cfg.ServerCmd, "stdio", errOut)
		if err != nil {
			return nil, err
		}
		return rpcclient.StartPipe(cmd, rpcclient.WithCallTimeout(cfg.Timeout))
	}
}

func serverCommand(command, transport string, errOut io.Writer) (*exec.Cmd, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("server command is required")
	}
	args := append(fields[1:], "-transport", transport)
	cmd := exec.Command(fields[0], args...)
	cmd.Stderr = errOut
	return cmd, nil
}

func verify(ctx context.Context, session rpcclient.Session, out io.Writer) error {
	report := rpcclient.Verify(ctx, session, rpcclient.DefaultExpectations())
	if err := report.Write(out); err != nil {
		return err
	}
	if !report.OK() {
		return errors.New("verification failed")
	}
	fmt.Fprintf(out, "all %d checks passed against %s %s\n", len(report.Checks), report.Server.Name, report.Server.Version)
	return nil
}

func discover(ctx context.Context, session rpcclient.Session, out io.Writer) error {
	init, err := session.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	fmt.Fprintf(out, "connected to %s %s (protocol %s)\n", init.ServerInfo.Name, init.ServerInfo.Version, init.ProtocolVersion)

	tools, err := session.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	printDescriptors(out, "tools", tools)

	if init.Capabilities.Prompts == nil {
		return nil
	}
	prompts, err := session.ListPrompts(ctx)
	if err != nil {
		return fmt.Errorf("list prompts: %w", err)
	}
	printDescriptors(out, "prompts", prompts)
	return nil
}

func printDescriptors(out io.Writer, heading string, descriptors []rpcclient.Descriptor) {
	fmt.Fprintf(out, "%s:\n", heading)
	for _, descriptor := range descriptors {
		fmt.Fprintf(out, "  %s(%s): %s\n", descriptor.Name, strings.Join(descriptor.Parameters, ", "), descriptor.Description)
	}
}

func query(ctx context.Context, session rpcclient.Session, text string, resolver rpcclient.Resolver, out io.Writer) error {
	if _, err := session.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	tools, err := session.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	inv, err := resolver.Resolve(ctx, text, tools)
	if err != nil {
		return err
	}
	result, err := session.Call(ctx, inv.Name, inv.Args)
	if err != nil {
		return fmt.Errorf("call %s: %w", inv.Name, err)
	}
	fmt.Fprintf(out, "%s(%s) = %s\n", inv.Name, formatArgs(inv, tools), result)
	return nil
}

func formatArgs(inv rpcclient.Invocation, tools []rpcclient.Descriptor) string {
	var params []string
	for _, tool := range tools {
		if tool.Name == inv.Name {
			params = tool.Parameters
			break
		}
	}
	values := make([]string, 0, len(params))
	for _, param := range params {
		values = append(values, fmt.Sprint(inv.Args[param]))
	}
	return strings.Join(values, ", ")
}
