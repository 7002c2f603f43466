// Package domain holds the arithmetic tools and prompt templates served by
// mathmcp. The bodies are deliberately trivial; transports never import this
// package directly and only see the registry it builds.
package domain

import (
	"context"
	"fmt"
	"math"
	"time"

	apperrors "github.com/louisbranch/mathmcp/internal/platform/errors"
	"github.com/louisbranch/mathmcp/internal/services/rpc/registry"
)

// Tool and prompt names exposed through discovery.
const (
	ToolAdd      = "add"
	ToolSub      = "sub"
	ToolMultiply = "multiply"

	PromptAdd      = "Add_Prompt"
	PromptSub      = "Sub_Prompt"
	PromptMultiply = "Multiply_Prompt"
)

// DefaultDelay is the simulated downstream latency of each call.
const DefaultDelay = 100 * time.Millisecond

// Options configures the math registry.
type Options struct {
	// Delay is the simulated latency every body waits before answering.
	// Zero disables it.
	Delay time.Duration
	// Prompts registers the prompt templates alongside the tools.
	Prompts bool
}

// NewRegistry builds and seals the registry of math tools and, when
// requested, prompt templates.
func NewRegistry(opts Options) (*registry.Registry, error) {
	reg := registry.New()
	entries := Tools(opts.Delay)
	if opts.Prompts {
		entries = append(entries, Prompts(opts.Delay)...)
	}
	for _, entry := range entries {
		if err := reg.Register(entry); err != nil {
			return nil, fmt.Errorf("register %s: %w", entry.Name, err)
		}
	}
	reg.Seal()
	return reg, nil
}

func operands(first, second string) []registry.Param {
	return []registry.Param{
		{Name: "a", Type: registry.TypeInteger, Description: first},
		{Name: "b", Type: registry.TypeInteger, Description: second},
	}
}

// Tools returns the arithmetic tool entries.
func Tools(delay time.Duration) []registry.Entry {
	return []registry.Entry{
		{
			Name:        ToolAdd,
			Description: "Add two numbers together.",
			Kind:        registry.KindTool,
			Params:      operands("First number to add", "Second number to add"),
			Returns:     registry.TypeInteger,
			Body:        binaryBody(delay, Add),
			Summary:     binarySummary("+"),
		},
		{
			Name:        ToolSub,
			Description: "Subtract second number from first number.",
			Kind:        registry.KindTool,
			Params:      operands("Number to subtract from", "Number to subtract"),
			Returns:     registry.TypeInteger,
			Body:        binaryBody(delay, Sub),
			Summary:     binarySummary("-"),
		},
		{
			Name:        ToolMultiply,
			Description: "Multiply two numbers together.",
			Kind:        registry.KindTool,
			Params:      operands("First number to multiply", "Second number to multiply"),
			Returns:     registry.TypeInteger,
			Body:        binaryBody(delay, Multiply),
			Summary:     binarySummary("*"),
		},
	}
}

// Prompts returns the prompt template entries.
func Prompts(delay time.Duration) []registry.Entry {
	return []registry.Entry{
		{
			Name:        PromptAdd,
			Description: "Prompt to add two numbers.",
			Kind:        registry.KindPrompt,
			Params:      operands("First number to add", "Second number to add"),
			Returns:     registry.TypeString,
			Body: promptBody(delay, func(a, b int64) string {
				return fmt.Sprintf("Add %d and %d.", a, b)
			}),
		},
		{
			Name:        PromptSub,
			Description: "Prompt to subtract two numbers.",
			Kind:        registry.KindPrompt,
			Params:      operands("Number to subtract from", "Number to subtract"),
			Returns:     registry.TypeString,
			Body: promptBody(delay, func(a, b int64) string {
				return fmt.Sprintf("Subtract %d from %d.", b, a)
			}),
		},
		{
			Name:        PromptMultiply,
			Description: "Prompt to multiply two numbers.",
			Kind:        registry.KindPrompt,
			Params:      operands("First number to multiply", "Second number to multiply"),
			Returns:     registry.TypeString,
			Body: promptBody(delay, func(a, b int64) string {
				return fmt.Sprintf("Multiply %d and %d.", a, b)
			}),
		},
	}
}

func binaryBody(delay time.Duration, op func(a, b int64) (int64, error)) registry.Body {
	return func(ctx context.Context, args registry.Args) (any, error) {
		if err := Sleep(ctx, delay); err != nil {
			return nil, err
		}
		return op(args.Int("a"), args.Int("b"))
	}
}

func promptBody(delay time.Duration, render func(a, b int64) string) registry.Body {
	return func(ctx context.Context, args registry.Args) (any, error) {
		if err := Sleep(ctx, delay); err != nil {
			return nil, err
		}
		return render(args.Int("a"), args.Int("b")), nil
	}
}

func binarySummary(symbol string) registry.SummaryFunc {
	return func(args registry.Args, result any) string {
		return fmt.Sprintf("%d %s %d = %v", args.Int("a"), symbol, args.Int("b"), result)
	}
}

// Sleep waits for delay or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Add returns a+b, failing on int64 overflow.
func Add(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, apperrors.Newf(apperrors.CodeInternal, "integer overflow: %d + %d", a, b)
	}
	return sum, nil
}

// Sub returns a-b, failing on int64 overflow.
func Sub(a, b int64) (int64, error) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, apperrors.Newf(apperrors.CodeInternal, "integer overflow: %d - %d", a, b)
	}
	return diff, nil
}

// Multiply returns a*b, failing on int64 overflow.
func Multiply(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	product := a * b
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) || product/b != a {
		return 0, apperrors.Newf(apperrors.CodeInternal, "integer overflow: %d * %d", a, b)
	}
	return product, nil
}
