package registry

import (
	"context"
	"slices"
	"testing"

	apperrors "github.com/louisbranch/mathmcp/internal/platform/errors"
)

func echoBody(_ context.Context, args Args) (any, error) {
	return args.Int("a"), nil
}

func testEntry(name string, kind Kind) Entry {
	return Entry{
		Name:        name,
		Description: name + " entry",
		Kind:        kind,
		Params: []Param{
			{Name: "a", Type: TypeInteger, Description: "first"},
			{Name: "b", Type: TypeInteger, Description: "second"},
		},
		Returns: TypeInteger,
		Body:    echoBody,
	}
}

func collectNames(seq func(func(Descriptor) bool)) []string {
	var names []string
	for descriptor := range seq {
		names = append(names, descriptor.Name)
	}
	return names
}

func TestRegisterAndLookup(t *testing.T) {
	reg := New()
	if err := reg.Register(testEntry("add", KindTool)); err != nil {
		t.Fatalf("register: %v", err)
	}
	entry, ok := reg.Lookup("add")
	if !ok {
		t.Fatal("expected add to be registered")
	}
	if entry.Name != "add" || len(entry.Params) != 2 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if _, ok := reg.Lookup("divide"); ok {
		t.Fatal("expected divide to be missing")
	}
}

func TestRegisterRejectsDuplicateAcrossKinds(t *testing.T) {
	reg := New()
	if err := reg.Register(testEntry("add", KindTool)); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := reg.Register(testEntry("add", KindPrompt))
	if !apperrors.IsCode(err, apperrors.CodeDuplicateName) {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one entry, got %d", reg.Len())
	}
}

func TestRegisterRejectsMalformedEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
	}{
		{name: "empty name", entry: Entry{Kind: KindTool, Body: echoBody}},
		{name: "nil body", entry: Entry{Name: "x", Kind: KindTool}},
		{name: "unknown kind", entry: Entry{Name: "x", Kind: "resource", Body: echoBody}},
		{name: "unnamed param", entry: Entry{Name: "x", Kind: KindTool, Body: echoBody, Params: []Param{{Type: TypeInteger}}}},
		{name: "duplicate param", entry: Entry{Name: "x", Kind: KindTool, Body: echoBody, Params: []Param{
			{Name: "a", Type: TypeInteger},
			{Name: "a", Type: TypeInteger},
		}}},
		{name: "unsupported type", entry: Entry{Name: "x", Kind: KindTool, Body: echoBody, Params: []Param{{Name: "a", Type: "float"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Register(tt.entry)
			if !apperrors.IsCode(err, apperrors.CodeInvalidEntry) {
				t.Fatalf("expected invalid entry error, got %v", err)
			}
		})
	}
}

func TestSealRejectsRegistration(t *testing.T) {
	reg := New()
	reg.Seal()
	if !reg.Sealed() {
		t.Fatal("expected registry to be sealed")
	}
	err := reg.Register(testEntry("add", KindTool))
	if !apperrors.IsCode(err, apperrors.CodeRegistrySealed) {
		t.Fatalf("expected sealed error, got %v", err)
	}
}

func TestRegisterCopiesParams(t *testing.T) {
	reg := New()
	entry := testEntry("add", KindTool)
	if err := reg.Register(entry); err != nil {
		t.Fatalf("register: %v", err)
	}
	entry.Params[0].Name = "mutated"
	stored, _ := reg.Lookup("add")
	if stored.Params[0].Name != "a" {
		t.Fatalf("expected registered params to be isolated, got %q", stored.Params[0].Name)
	}
}

func TestListIsOrderedAndRestartable(t *testing.T) {
	reg := New()
	for _, entry := range []Entry{
		testEntry("add", KindTool),
		testEntry("Add_Prompt", KindPrompt),
		testEntry("sub", KindTool),
	} {
		if err := reg.Register(entry); err != nil {
			t.Fatalf("register %s: %v", entry.Name, err)
		}
	}

	want := []string{"add", "Add_Prompt", "sub"}
	first := collectNames(reg.List())
	second := collectNames(reg.List())
	if !slices.Equal(first, want) || !slices.Equal(second, want) {
		t.Fatalf("expected %v on every pass, got %v and %v", want, first, second)
	}

	if got := collectNames(reg.ListKind(KindTool)); !slices.Equal(got, []string{"add", "sub"}) {
		t.Fatalf("unexpected tools %v", got)
	}
	if got := collectNames(reg.ListKind(KindPrompt)); !slices.Equal(got, []string{"Add_Prompt"}) {
		t.Fatalf("unexpected prompts %v", got)
	}
}

func TestListStopsEarly(t *testing.T) {
	reg := New()
	_ = reg.Register(testEntry("add", KindTool))
	_ = reg.Register(testEntry("sub", KindTool))
	count := 0
	for range reg.List() {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected early stop after one item, got %d", count)
	}
}

func TestHasKind(t *testing.T) {
	reg := New()
	_ = reg.Register(testEntry("add", KindTool))
	if !reg.HasKind(KindTool) {
		t.Fatal("expected tool kind")
	}
	if reg.HasKind(KindPrompt) {
		t.Fatal("expected no prompt kind")
	}
}

func TestDescriptorInputSchema(t *testing.T) {
	reg := New()
	_ = reg.Register(testEntry("add", KindTool))
	var descriptor Descriptor
	for d := range reg.List() {
		descriptor = d
	}
	schema := descriptor.InputSchema()
	if schema.Type != "object" {
		t.Fatalf("expected object schema, got %q", schema.Type)
	}
	if !slices.Equal(schema.Required, []string{"a", "b"}) {
		t.Fatalf("unexpected required list %v", schema.Required)
	}
	if schema.Properties["a"].Type != "integer" || schema.Properties["a"].Description != "first" {
		t.Fatalf("unexpected property schema %+v", schema.Properties["a"])
	}
	if !slices.Equal(descriptor.Names(), []string{"a", "b"}) {
		t.Fatalf("unexpected names %v", descriptor.Names())
	}
}

func TestEntryDescribeFallback(t *testing.T) {
	entry := testEntry("echo", KindTool)
	got := entry.Describe(Args{"a": int64(3), "b": int64(4)}, int64(3))
	if got != "echo(3, 4) = 3" {
		t.Fatalf("unexpected description %q", got)
	}
	entry.Summary = func(args Args, result any) string { return "custom" }
	if got := entry.Describe(nil, nil); got != "custom" {
		t.Fatalf("expected custom summary, got %q", got)
	}
}
