package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	apperrors "github.com/louisbranch/mathmcp/internal/platform/errors"
	"github.com/louisbranch/mathmcp/internal/services/rpc/protocol"
)

// ExpectedCall is one invocation and the result it must produce.
type ExpectedCall struct {
	Name string
	Args map[string]any
	Want any
}

// Expectations describes what a healthy server exposes.
type Expectations struct {
	Tools []string
	// Prompts is only checked when the server declares the capability.
	Prompts []string
	Calls   []ExpectedCall
}

// DefaultExpectations matches the math server.
func DefaultExpectations() Expectations {
	return Expectations{
		Tools:   []string{"add", "sub", "multiply"},
		Prompts: []string{"Add_Prompt", "Sub_Prompt", "Multiply_Prompt"},
		Calls: []ExpectedCall{
			{Name: "add", Args: map[string]any{"a": 15, "b": 27}, Want: 42},
			{Name: "sub", Args: map[string]any{"a": 20, "b": 8}, Want: 12},
			{Name: "multiply", Args: map[string]any{"a": 6, "b": 9}, Want: 54},
		},
	}
}

// Check is the outcome of one verification step.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Report collects the checks of one verification run.
type Report struct {
	Server protocol.Implementation
	Checks []Check
	// Err is set when a transport failure aborted the run.
	Err error
}

// OK reports whether every check passed and the run was not aborted.
func (r Report) OK() bool {
	if r.Err != nil || len(r.Checks) == 0 {
		return false
	}
	for _, check := range r.Checks {
		if !check.OK {
			return false
		}
	}
	return true
}

// Write prints one line per check.
func (r Report) Write(w io.Writer) error {
	for _, check := range r.Checks {
		status := "PASS"
		if !check.OK {
			status = "FAIL"
		}
		if _, err := fmt.Fprintf(w, "%s %s: %s\n", status, check.Name, check.Detail); err != nil {
			return err
		}
	}
	if r.Err != nil {
		if _, err := fmt.Fprintf(w, "ABORTED: %v\n", r.Err); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) add(name string, ok bool, format string, args ...any) {
	r.Checks = append(r.Checks, Check{Name: name, OK: ok, Detail: fmt.Sprintf(format, args...)})
}

// Verify runs the handshake, discovery and invocation checks against
// session. Transport failures abort the run; protocol failures are recorded
// and the run continues.
func Verify(ctx context.Context, session Session, expect Expectations) Report {
	var report Report
	if session == nil {
		report.Err = fmt.Errorf("session is required")
		return report
	}

	init, err := session.Initialize(ctx)
	if err != nil {
		report.add("initialize", false, "%v", err)
		if isTransport(err) {
			report.Err = err
			return report
		}
	} else {
		report.Server = init.ServerInfo
		report.add("initialize", init.Capabilities.Tools != nil, "server %s %s, protocol %s", init.ServerInfo.Name, init.ServerInfo.Version, init.ProtocolVersion)
	}

	tools, err := session.ListTools(ctx)
	if err != nil {
		report.add("tools/list", false, "%v", err)
		if isTransport(err) {
			report.Err = err
			return report
		}
	} else {
		report.add("tools/list", containsAll(Names(tools), expect.Tools), "found %s", strings.Join(Names(tools), ", "))
	}

	if init.Capabilities.Prompts != nil && len(expect.Prompts) > 0 {
		prompts, err := session.ListPrompts(ctx)
		if err != nil {
			report.add("prompts/list", false, "%v", err)
			if isTransport(err) {
				report.Err = err
				return report
			}
		} else {
			report.add("prompts/list", containsAll(Names(prompts), expect.Prompts), "found %s", strings.Join(Names(prompts), ", "))
		}
	}

	for _, call := range expect.Calls {
		name := fmt.Sprintf("call %s%s", call.Name, formatArgs(call.Args))
		got, err := session.Call(ctx, call.Name, call.Args)
		if err != nil {
			report.add(name, false, "%v", err)
			if isTransport(err) {
				report.Err = err
				return report
			}
			continue
		}
		want, err := json.Marshal(call.Want)
		if err != nil {
			report.add(name, false, "encode expected value: %v", err)
			continue
		}
		ok := bytes.Equal(bytes.TrimSpace(got), want)
		report.add(name, ok, "got %s, want %s", got, want)
	}
	return report
}

func isTransport(err error) bool {
	return apperrors.IsCode(err, apperrors.CodeTransport)
}

func containsAll(have, want []string) bool {
	if len(have) == 0 {
		return false
	}
	for _, name := range want {
		if !slices.Contains(have, name) {
			return false
		}
	}
	return true
}

func formatArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	values := make([]string, 0, len(keys))
	for _, key := range keys {
		values = append(values, fmt.Sprint(args[key]))
	}
	return "(" + strings.Join(values, ", ") + ")"
}
