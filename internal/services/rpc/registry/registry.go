// Package registry holds the named operations and prompt templates a server
// exposes. It is pure data plus lookup: it performs no I/O and is read-only
// once sealed at startup.
package registry

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	apperrors "github.com/louisbranch/mathmcp/internal/platform/errors"
)

// Kind distinguishes value-computing operations from text-rendering prompts.
type Kind string

const (
	// KindTool computes a value from its arguments.
	KindTool Kind = "tool"
	// KindPrompt renders human-readable text from its arguments.
	KindPrompt Kind = "prompt"
)

// ParamType is the semantic type of a parameter or return value.
type ParamType string

const (
	TypeInteger ParamType = "integer"
	TypeString  ParamType = "string"
)

// Param declares one positional, named parameter.
type Param struct {
	Name        string
	Type        ParamType
	Description string
}

// Args holds arguments that already passed validation against an entry's
// declared parameters.
type Args map[string]any

// Int returns the integer argument stored under name.
func (a Args) Int(name string) int64 {
	value, _ := a[name].(int64)
	return value
}

// String returns the string argument stored under name.
func (a Args) String(name string) string {
	value, _ := a[name].(string)
	return value
}

// Body executes an entry. Bodies must be pure functions of their arguments.
type Body func(ctx context.Context, args Args) (any, error)

// SummaryFunc restates an invocation for humans, e.g. "6 * 9 = 54".
type SummaryFunc func(args Args, result any) string

// Entry is a named, parameterized, invocable tool or prompt.
type Entry struct {
	Name        string
	Description string
	Kind        Kind
	Params      []Param
	Returns     ParamType
	Body        Body
	Summary     SummaryFunc
}

// Describe restates an invocation of e with args and result.
func (e Entry) Describe(args Args, result any) string {
	if e.Summary != nil {
		return e.Summary(args, result)
	}
	parts := make([]string, 0, len(e.Params))
	for _, param := range e.Params {
		parts = append(parts, fmt.Sprint(args[param.Name]))
	}
	return fmt.Sprintf("%s(%s) = %v", e.Name, strings.Join(parts, ", "), result)
}

// Registry maps names to entries. Names are unique across both kinds so
// discovery is never ambiguous.
//
// Register is not safe for concurrent use; all registration happens during
// startup, after which Seal freezes the registry and every read method is safe
// to call from any goroutine.
type Registry struct {
	entries map[string]Entry
	order   []string
	sealed  bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds entry. It fails when the name is already taken, when the
// entry is malformed, or when the registry has been sealed.
func (r *Registry) Register(entry Entry) error {
	if r.sealed {
		return apperrors.Newf(apperrors.CodeRegistrySealed, "registry is sealed: cannot register %q", entry.Name)
	}
	if err := validateEntry(entry); err != nil {
		return err
	}
	if _, exists := r.entries[entry.Name]; exists {
		return apperrors.WithMetadata(
			apperrors.CodeDuplicateName,
			fmt.Sprintf("duplicate name %q", entry.Name),
			map[string]string{"name": entry.Name},
		)
	}
	entry.Params = slices.Clone(entry.Params)
	r.entries[entry.Name] = entry
	r.order = append(r.order, entry.Name)
	return nil
}

func validateEntry(entry Entry) error {
	if strings.TrimSpace(entry.Name) == "" {
		return apperrors.New(apperrors.CodeInvalidEntry, "entry name is required")
	}
	if entry.Body == nil {
		return apperrors.Newf(apperrors.CodeInvalidEntry, "entry %q has no body", entry.Name)
	}
	switch entry.Kind {
	case KindTool, KindPrompt:
	default:
		return apperrors.Newf(apperrors.CodeInvalidEntry, "entry %q has unknown kind %q", entry.Name, entry.Kind)
	}
	seen := make(map[string]struct{}, len(entry.Params))
	for _, param := range entry.Params {
		if strings.TrimSpace(param.Name) == "" {
			return apperrors.Newf(apperrors.CodeInvalidEntry, "entry %q has an unnamed parameter", entry.Name)
		}
		if _, dup := seen[param.Name]; dup {
			return apperrors.Newf(apperrors.CodeInvalidEntry, "entry %q declares parameter %q twice", entry.Name, param.Name)
		}
		switch param.Type {
		case TypeInteger, TypeString:
		default:
			return apperrors.Newf(apperrors.CodeInvalidEntry, "entry %q parameter %q has unsupported type %q", entry.Name, param.Name, param.Type)
		}
		seen[param.Name] = struct{}{}
	}
	return nil
}

// Seal freezes the registry. Subsequent Register calls fail.
func (r *Registry) Seal() {
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	entry, ok := r.entries[name]
	return entry, ok
}

// Len returns the number of registered entries of both kinds.
func (r *Registry) Len() int {
	return len(r.order)
}

// HasKind reports whether at least one entry of kind is registered. Prompts
// are an optional capability surfaced only when declared.
func (r *Registry) HasKind(kind Kind) bool {
	for _, name := range r.order {
		if r.entries[name].Kind == kind {
			return true
		}
	}
	return false
}

// List yields the descriptors of every entry in registration order. The
// sequence is lazy and can be ranged over any number of times.
func (r *Registry) List() iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		for _, name := range r.order {
			if !yield(describe(r.entries[name])) {
				return
			}
		}
	}
}

// ListKind yields the descriptors of entries of the given kind.
func (r *Registry) ListKind(kind Kind) iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		for descriptor := range r.List() {
			if descriptor.Kind != kind {
				continue
			}
			if !yield(descriptor) {
				return
			}
		}
	}
}

// Entries yields the registered entries in registration order.
func (r *Registry) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, name := range r.order {
			if !yield(r.entries[name]) {
				return
			}
		}
	}
}
