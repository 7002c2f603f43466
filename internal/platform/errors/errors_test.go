package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeMethodNotFound, "method \"divide\" not found")
	if !errors.Is(err, New(CodeMethodNotFound, "other message")) {
		t.Fatal("expected errors with same code to match")
	}
	if errors.Is(err, New(CodeInvalidParams, "method \"divide\" not found")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapUnwrapsCause(t *testing.T) {
	err := Wrap(CodeTransport, "read frame", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatal("expected wrapped cause to be reachable")
	}
	if err.Error() != "read frame" {
		t.Fatalf("expected message, got %q", err.Error())
	}
}

func TestGetCode(t *testing.T) {
	wrapped := fmt.Errorf("dispatch: %w", New(CodeInvalidParams, "missing a"))
	if got := GetCode(wrapped); got != CodeInvalidParams {
		t.Fatalf("expected %q, got %q", CodeInvalidParams, got)
	}
	if got := GetCode(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("expected unknown code, got %q", got)
	}
	if !IsCode(wrapped, CodeInvalidParams) {
		t.Fatal("expected IsCode to match wrapped domain error")
	}
}

func TestGetMetadata(t *testing.T) {
	err := WithMetadata(CodeInvalidParams, "bad b", map[string]string{"param": "b"})
	if got := GetMetadata(err)["param"]; got != "b" {
		t.Fatalf("expected param metadata, got %q", got)
	}
	if GetMetadata(errors.New("plain")) != nil {
		t.Fatal("expected nil metadata for plain errors")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CodeInternal, "integer overflow: %d * %d", 2, 3)
	if err.Message != "integer overflow: 2 * 3" {
		t.Fatalf("unexpected message %q", err.Message)
	}
}

func TestCodeClass(t *testing.T) {
	tests := []struct {
		code Code
		want Class
	}{
		{CodeParseError, ClassTransport},
		{CodeInvalidRequest, ClassTransport},
		{CodeTransport, ClassTransport},
		{CodeMethodNotFound, ClassProtocol},
		{CodeInvalidParams, ClassProtocol},
		{CodeInternal, ClassExecution},
		{CodeUnknown, ClassExecution},
		{CodeDuplicateName, ClassRegistration},
		{CodeRegistrySealed, ClassRegistration},
	}
	for _, tt := range tests {
		if got := tt.code.Class(); got != tt.want {
			t.Errorf("%s: expected class %q, got %q", tt.code, tt.want, got)
		}
	}
}
