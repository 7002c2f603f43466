// Package httpapi exposes the registry over HTTP: per-operation routes, a
// discovery listing, the line protocol envelope on /rpc and, optionally, the
// MCP streamable HTTP endpoint.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/mathmcp/internal/platform/errors"
	"github.com/louisbranch/mathmcp/internal/services/rpc/dispatch"
	"github.com/louisbranch/mathmcp/internal/services/rpc/protocol"
	"github.com/louisbranch/mathmcp/internal/services/rpc/registry"
)

// maxBodyBytes bounds request bodies, matching the pipe frame limit.
const maxBodyBytes = 1 << 20

// WelcomeMessage is returned by the root route.
const WelcomeMessage = "Welcome to Math MCP Server!"

// OperationResponse is the success body of an operation route.
type OperationResponse struct {
	Result    any    `json:"result"`
	Operation string `json:"operation,omitempty"`
}

// ErrorBody carries a structured error.
type ErrorBody struct {
	Code    apperrors.Code    `json:"code"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
}

// ErrorResponse is the failure body of every route.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Option configures the HTTP handler.
type Option func(*handler)

// WithPrefix mounts the RPC routes under prefix, e.g. "/math".
func WithPrefix(prefix string) Option {
	return func(h *handler) {
		h.prefix = NormalizePrefix(prefix)
	}
}

// WithMCPHandler mounts an MCP streamable HTTP handler at {prefix}/mcp.
func WithMCPHandler(mcpHandler http.Handler) Option {
	return func(h *handler) {
		h.mcp = mcpHandler
	}
}

// WithLogger routes request logs to logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *handler) {
		if logger != nil {
			h.logf = logger.Printf
		}
	}
}

type handler struct {
	dispatcher *dispatch.Dispatcher
	rpc        *protocol.Handler
	prefix     string
	mcp        http.Handler
	logf       func(format string, args ...any)
}

// NormalizePrefix returns prefix with a single leading slash and no trailing
// slash; the empty prefix and "/" both mount at the root.
func NormalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}

// NewHandler builds the HTTP routes over dispatcher. The envelope route shares
// rpc with the pipe transport so both report identical results.
func NewHandler(dispatcher *dispatch.Dispatcher, rpc *protocol.Handler, opts ...Option) http.Handler {
	h := &handler{
		dispatcher: dispatcher,
		rpc:        rpc,
		logf:       log.Printf,
	}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleWelcome)
	mux.HandleFunc("GET /health", h.handleHealth)

	p := h.prefix
	if p != "" {
		mux.HandleFunc("GET "+p+"/{$}", h.handleWelcome)
	}
	mux.HandleFunc("POST "+p+"/rpc", h.handleRPC)
	mux.HandleFunc("GET "+p+"/tools", h.handleList(registry.KindTool))
	mux.HandleFunc("GET "+p+"/prompts", h.handleList(registry.KindPrompt))
	if h.mcp != nil {
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
			mux.Handle(method+" "+p+"/mcp", h.mcp)
		}
	}
	mux.HandleFunc("POST "+p+"/{op}", h.handleOperation)
	mux.HandleFunc("GET "+p+"/{op}/{a}/{b}", h.handlePositional)
	return mux
}

func (h *handler) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": WelcomeMessage})
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleOperation dispatches POST {prefix}/{op} with a JSON argument object.
func (h *handler) handleOperation(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 && !json.Valid(body) {
		h.writeError(w, http.StatusInternalServerError, apperrors.New(apperrors.CodeParseError, "request body is not valid JSON"))
		return
	}
	args, appErr := dispatch.DecodeArgs(body)
	if appErr != nil {
		h.writeError(w, http.StatusInternalServerError, appErr)
		return
	}
	h.dispatch(w, r, r.PathValue("op"), args)
}

// handlePositional dispatches GET {prefix}/{op}/{a}/{b}, binding the path
// values to the entry's parameters in declaration order.
func (h *handler) handlePositional(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("op")
	values := []string{r.PathValue("a"), r.PathValue("b")}

	names := []string{"a", "b"}
	if reg := h.dispatcher.Registry(); reg != nil {
		if entry, ok := reg.Lookup(name); ok {
			if len(entry.Params) != len(values) {
				h.writeError(w, http.StatusInternalServerError, apperrors.Newf(
					apperrors.CodeInvalidParams,
					"%s takes %d arguments, got %d path values", name, len(entry.Params), len(values),
				))
				return
			}
			names = names[:0]
			for _, param := range entry.Params {
				names = append(names, param.Name)
			}
		}
	}

	args := make(map[string]any, len(values))
	for i, value := range values {
		args[names[i]] = value
	}
	h.dispatch(w, r, name, args)
}

func (h *handler) dispatch(w http.ResponseWriter, r *http.Request, name string, args map[string]any) {
	result := h.dispatcher.Dispatch(r.Context(), name, args)
	if !result.OK() {
		h.writeError(w, http.StatusInternalServerError, result.Err)
		return
	}
	writeJSON(w, http.StatusOK, OperationResponse{Result: result.Value, Operation: result.Summary})
}

// handleRPC answers one line protocol envelope.
func (h *handler) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusOK, protocol.Failure(nil, asAppError(err)))
		return
	}
	req, decodeErr := protocol.DecodeRequest(body)
	if decodeErr != nil {
		writeJSON(w, http.StatusOK, protocol.Failure(req.ID, decodeErr))
		return
	}
	resp, ok := h.rpc.Handle(r.Context(), req)
	if !ok {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleList(kind registry.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		reg := h.dispatcher.Registry()
		if kind == registry.KindPrompt && (reg == nil || !reg.HasKind(registry.KindPrompt)) {
			h.writeError(w, http.StatusNotFound, apperrors.New(apperrors.CodeMethodNotFound, "prompts capability is not declared"))
			return
		}
		descriptors := []registry.Descriptor{}
		if reg != nil {
			for descriptor := range reg.ListKind(kind) {
				descriptors = append(descriptors, descriptor)
			}
		}
		key := "tools"
		if kind == registry.KindPrompt {
			key = "prompts"
		}
		writeJSON(w, http.StatusOK, map[string]any{key: descriptors})
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.Newf(apperrors.CodeParseError, "request body exceeds %d bytes", maxBodyBytes)
		}
		return nil, apperrors.Wrap(apperrors.CodeParseError, "read request body", err)
	}
	return body, nil
}

func (h *handler) writeError(w http.ResponseWriter, status int, err error) {
	appErr := asAppError(err)
	h.logf("http request failed: status=%d code=%s message=%s", status, appErr.Code, appErr.Message)
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{
		Code:    appErr.Code,
		Message: appErr.Message,
		Data:    appErr.Metadata,
	}})
}

func asAppError(err error) *apperrors.Error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr != nil {
		return appErr
	}
	return apperrors.Wrap(apperrors.CodeInternal, err.Error(), err)
}

// writeJSON writes JSON responses with a consistent content type.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}
