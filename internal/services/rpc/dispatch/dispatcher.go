// Package dispatch resolves, validates and invokes registry entries.
//
// It is the single place where protocol and execution failures are turned into
// structured results, so every transport reports identical error semantics
// for identical logical requests.
package dispatch

import (
	"context"
	"fmt"
	"log"

	apperrors "github.com/louisbranch/mathmcp/internal/platform/errors"
	"github.com/louisbranch/mathmcp/internal/services/rpc/registry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/mathmcp/internal/services/rpc/dispatch"

// Result is the outcome of one dispatch: either a value or a structured error.
type Result struct {
	// Name is the requested entry name.
	Name string
	// Kind is the resolved entry kind; empty when resolution failed.
	Kind registry.Kind
	// Value is the body's return value on success.
	Value any
	// Summary restates the invocation, e.g. "6 * 9 = 54".
	Summary string
	// Err is set when the dispatch failed.
	Err *apperrors.Error
}

// OK reports whether the dispatch succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger routes dispatch logs to logger instead of the standard logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logf = logger.Printf
		}
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(d *Dispatcher) {
		if provider != nil {
			d.tracer = provider.Tracer(tracerName)
		}
	}
}

// Dispatcher invokes entries from a sealed registry. It holds no mutable
// state and is safe for concurrent use.
type Dispatcher struct {
	registry *registry.Registry
	tracer   trace.Tracer
	logf     func(format string, args ...any)
}

// New creates a dispatcher over reg.
func New(reg *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		tracer:   otel.Tracer(tracerName),
		logf:     log.Printf,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry exposes the registry for discovery.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

// Dispatch resolves name, validates args and invokes the entry. Failures are
// reported in the returned Result and never panic or return a Go error.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := d.tracer.Start(ctx, "rpc.dispatch", trace.WithAttributes(attribute.String("rpc.method", name)))
	defer span.End()

	result := d.dispatch(ctx, name, args)
	if result.Kind != "" {
		span.SetAttributes(attribute.String("rpc.entry_kind", string(result.Kind)))
	}
	if result.Err != nil {
		span.SetAttributes(attribute.String("rpc.error_code", string(result.Err.Code)))
		span.SetStatus(codes.Error, result.Err.Message)
		d.logf("dispatch %s failed: code=%s message=%s", name, result.Err.Code, result.Err.Message)
		return result
	}
	d.logf("%s", result.Summary)
	return result
}

func (d *Dispatcher) dispatch(ctx context.Context, name string, args map[string]any) Result {
	result := Result{Name: name}
	if d.registry == nil {
		result.Err = apperrors.Newf(apperrors.CodeMethodNotFound, "method %q not found", name)
		return result
	}
	entry, ok := d.registry.Lookup(name)
	if !ok {
		result.Err = apperrors.WithMetadata(
			apperrors.CodeMethodNotFound,
			fmt.Sprintf("method %q not found", name),
			map[string]string{"method": name},
		)
		return result
	}
	result.Kind = entry.Kind

	validated, err := Validate(entry, args)
	if err != nil {
		result.Err = err
		return result
	}

	value, err := invoke(ctx, entry, validated)
	if err != nil {
		result.Err = err
		return result
	}
	result.Value = value
	result.Summary = entry.Describe(validated, value)
	return result
}

// invoke runs the entry body, converting returned errors and panics into
// internal errors that carry the original message.
func invoke(ctx context.Context, entry registry.Entry, args registry.Args) (value any, appErr *apperrors.Error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			value = nil
			appErr = apperrors.WithMetadata(
				apperrors.CodeInternal,
				fmt.Sprintf("%s: panic: %v", entry.Name, recovered),
				map[string]string{"method": entry.Name},
			)
		}
	}()

	value, err := entry.Body(ctx, args)
	if err != nil {
		return nil, &apperrors.Error{
			Code:     apperrors.CodeInternal,
			Message:  err.Error(),
			Metadata: map[string]string{"method": entry.Name},
			Cause:    err,
		}
	}
	return value, nil
}
