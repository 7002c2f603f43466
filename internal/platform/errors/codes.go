// Package errors provides structured error handling with stable wire codes.
package errors

// Code is a machine-readable error code. Codes are snake_case so callers can
// act on them without a lookup table.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "unknown"

	// Transport errors
	CodeParseError     Code = "parse_error"
	CodeInvalidRequest Code = "invalid_request"
	CodeTransport      Code = "transport_error"

	// Protocol errors
	CodeMethodNotFound Code = "method_not_found"
	CodeInvalidParams  Code = "invalid_params"

	// Execution errors
	CodeInternal Code = "internal_error"

	// Registration errors
	CodeDuplicateName  Code = "duplicate_name"
	CodeInvalidEntry   Code = "invalid_entry"
	CodeRegistrySealed Code = "registry_sealed"
)

// Class groups codes by who is expected to act on them.
type Class string

const (
	ClassTransport    Class = "transport"
	ClassProtocol     Class = "protocol"
	ClassExecution    Class = "execution"
	ClassRegistration Class = "registration"
)

// Class maps a code onto its error class.
func (c Code) Class() Class {
	switch c {
	case CodeParseError, CodeInvalidRequest, CodeTransport:
		return ClassTransport
	case CodeMethodNotFound, CodeInvalidParams:
		return ClassProtocol
	case CodeDuplicateName, CodeInvalidEntry, CodeRegistrySealed:
		return ClassRegistration
	default:
		return ClassExecution
	}
}
