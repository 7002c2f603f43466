// Package protocol defines the line protocol envelope shared by the pipe and
// HTTP transports, and routes decoded requests to reserved methods or to the
// dispatcher.
//
// Wire format: one JSON object per frame. Requests carry "id", "method" and
// "params"; responses echo "id" and carry either "result" or
// "error" {"code","message"}.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/louisbranch/mathmcp/internal/platform/errors"
)

// ProtocolVersion is the capability negotiation version this server speaks.
const ProtocolVersion = "2024-11-05"

// Reserved method names.
const (
	MethodInitialize  = "initialize"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
	MethodPromptsList = "prompts/list"
	MethodPromptsGet  = "prompts/get"

	// NotificationPrefix marks one-way messages that never get a response.
	NotificationPrefix = "notifications/"
)

// nullID is the correlation identifier used when none could be recovered.
var nullID = json.RawMessage("null")

// Request is a decoded request frame.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error is the structured error carried by a failed response.
type Error struct {
	Code    apperrors.Code    `json:"code"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
}

// Error implements the error interface so clients can return it directly.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Response is a response frame. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Success builds a result response. A value that cannot be encoded becomes an
// internal error so the caller still gets exactly one response.
func Success(id json.RawMessage, value any) Response {
	data, err := json.Marshal(value)
	if err != nil {
		return Failure(id, apperrors.Wrap(apperrors.CodeInternal, fmt.Sprintf("encode result: %v", err), err))
	}
	return Response{ID: normalizeID(id), Result: data}
}

// Failure builds an error response from a domain error.
func Failure(id json.RawMessage, err *apperrors.Error) Response {
	if err == nil {
		err = apperrors.New(apperrors.CodeInternal, "unknown failure")
	}
	return Response{
		ID: normalizeID(id),
		Error: &Error{
			Code:    err.Code,
			Message: err.Message,
			Data:    err.Metadata,
		},
	}
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(id)) == 0 {
		return nullID
	}
	return id
}

// DecodeRequest parses one frame. On failure it returns the best-effort
// correlation identifier recovered from the frame (null when none) together
// with a parse_error or invalid_request error.
func DecodeRequest(frame []byte) (Request, *apperrors.Error) {
	frame = bytes.TrimSpace(frame)
	if !json.Valid(frame) {
		return Request{ID: nullID}, apperrors.New(apperrors.CodeParseError, "frame is not valid JSON")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(frame, &fields); err != nil || fields == nil {
		return Request{ID: nullID}, apperrors.New(apperrors.CodeInvalidRequest, "frame must be a JSON object")
	}

	req := Request{ID: nullID}
	if rawID, ok := fields["id"]; ok {
		if !validID(rawID) {
			return req, apperrors.New(apperrors.CodeInvalidRequest, "id must be a string, number or null")
		}
		req.ID = bytes.TrimSpace(rawID)
	} else {
		req.ID = nil
	}

	if rawVersion, ok := fields["jsonrpc"]; ok {
		_ = json.Unmarshal(rawVersion, &req.JSONRPC)
	}

	rawMethod, ok := fields["method"]
	if !ok {
		return Request{ID: normalizeID(req.ID)}, apperrors.New(apperrors.CodeInvalidRequest, "method is required")
	}
	if err := json.Unmarshal(rawMethod, &req.Method); err != nil || req.Method == "" {
		return Request{ID: normalizeID(req.ID)}, apperrors.New(apperrors.CodeInvalidRequest, "method must be a non-empty string")
	}

	req.Params = fields["params"]
	return req, nil
}

func validID(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch raw[0] {
	case '"', 'n':
		return true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	default:
		return false
	}
}

// HasID reports whether the request carried a correlation identifier.
func (r Request) HasID() bool {
	return len(r.ID) > 0
}

// IsNotification reports whether the request expects no response.
func (r Request) IsNotification() bool {
	return strings.HasPrefix(r.Method, NotificationPrefix)
}

// WriteFrame encodes v as one newline-terminated JSON line.
func WriteFrame(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
