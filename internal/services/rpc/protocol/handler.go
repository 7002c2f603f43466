package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/jsonschema-go/jsonschema"
	apperrors "github.com/louisbranch/mathmcp/internal/platform/errors"
	"github.com/louisbranch/mathmcp/internal/services/rpc/dispatch"
	"github.com/louisbranch/mathmcp/internal/services/rpc/registry"
)

// Implementation identifies a peer during initialize.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DefaultServerInfo is reported by servers that do not override it.
var DefaultServerInfo = Implementation{Name: "Math", Version: "0.1.0"}

// InitializeParams is the payload of an initialize request.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion,omitempty"`
	ClientInfo      Implementation `json:"clientInfo"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
}

// Capabilities lists the features a server declares. A nil member means the
// capability is not offered.
type Capabilities struct {
	Tools   *struct{} `json:"tools,omitempty"`
	Prompts *struct{} `json:"prompts,omitempty"`
}

// InitializeResult answers an initialize request.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      Implementation `json:"serverInfo"`
	Capabilities    Capabilities   `json:"capabilities"`
}

// Listing is one discovery entry: the registry descriptor plus its JSON
// Schema.
type Listing struct {
	registry.Descriptor
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

// ToolsListResult answers tools/list.
type ToolsListResult struct {
	Tools []Listing `json:"tools"`
}

// PromptsListResult answers prompts/list.
type PromptsListResult struct {
	Prompts []Listing `json:"prompts"`
}

// CallParams is the payload of tools/call and prompts/get.
type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Content is a single text content block.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult answers tools/call.
type CallResult struct {
	Content           []Content      `json:"content"`
	StructuredContent map[string]any `json:"structuredContent,omitempty"`
	Operation         string         `json:"operation,omitempty"`
}

// PromptMessage is one rendered prompt message.
type PromptMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// PromptResult answers prompts/get.
type PromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithServerInfo overrides the implementation reported by initialize.
func WithServerInfo(info Implementation) HandlerOption {
	return func(h *Handler) {
		h.info = info
	}
}

// WithHandlerLogger routes handler logs to logger.
func WithHandlerLogger(logger *log.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logf = logger.Printf
		}
	}
}

// Handler answers decoded requests. Reserved methods are handled here; every
// other method is handed to the dispatcher with params as arguments.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	info       Implementation
	logf       func(format string, args ...any)
}

// NewHandler builds a handler over dispatcher.
func NewHandler(dispatcher *dispatch.Dispatcher, opts ...HandlerOption) *Handler {
	h := &Handler{
		dispatcher: dispatcher,
		info:       DefaultServerInfo,
		logf:       log.Printf,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes one request. The boolean is false when no response must
// be written (notifications and requests without an id).
func (h *Handler) Handle(ctx context.Context, req Request) (Response, bool) {
	resp := h.handle(ctx, req)
	resp.JSONRPC = req.JSONRPC
	if req.IsNotification() || !req.HasID() {
		return resp, false
	}
	return resp, true
}

func (h *Handler) handle(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodInitialize:
		return h.initialize(req)
	case MethodPing:
		return Success(req.ID, struct{}{})
	case MethodToolsList:
		return Success(req.ID, ToolsListResult{Tools: h.listings(registry.KindTool)})
	case MethodPromptsList:
		if !h.hasPrompts() {
			return Failure(req.ID, promptsNotDeclared(req.Method))
		}
		return Success(req.ID, PromptsListResult{Prompts: h.listings(registry.KindPrompt)})
	case MethodToolsCall:
		return h.callTool(ctx, req)
	case MethodPromptsGet:
		if !h.hasPrompts() {
			return Failure(req.ID, promptsNotDeclared(req.Method))
		}
		return h.getPrompt(ctx, req)
	}
	if req.IsNotification() {
		return Response{ID: normalizeID(req.ID)}
	}

	args, err := dispatch.DecodeArgs(req.Params)
	if err != nil {
		return Failure(req.ID, err)
	}
	result := h.dispatcher.Dispatch(ctx, req.Method, args)
	if !result.OK() {
		return Failure(req.ID, result.Err)
	}
	return Success(req.ID, result.Value)
}

func (h *Handler) initialize(req Request) Response {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return Failure(req.ID, apperrors.Wrap(apperrors.CodeInvalidParams, "initialize params must be an object", err))
		}
	}
	if params.ClientInfo.Name != "" {
		h.logf("client %s %s connected (protocol %s)", params.ClientInfo.Name, params.ClientInfo.Version, params.ProtocolVersion)
	}

	result := InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      h.info,
		Capabilities:    Capabilities{Tools: &struct{}{}},
	}
	if h.hasPrompts() {
		result.Capabilities.Prompts = &struct{}{}
	}
	return Success(req.ID, result)
}

func (h *Handler) registry() *registry.Registry {
	if h.dispatcher == nil {
		return nil
	}
	return h.dispatcher.Registry()
}

func (h *Handler) hasPrompts() bool {
	reg := h.registry()
	return reg != nil && reg.HasKind(registry.KindPrompt)
}

func (h *Handler) listings(kind registry.Kind) []Listing {
	listings := []Listing{}
	reg := h.registry()
	if reg == nil {
		return listings
	}
	for descriptor := range reg.ListKind(kind) {
		listings = append(listings, Listing{Descriptor: descriptor, InputSchema: descriptor.InputSchema()})
	}
	return listings
}

func promptsNotDeclared(method string) *apperrors.Error {
	return apperrors.WithMetadata(
		apperrors.CodeMethodNotFound,
		"prompts capability is not declared",
		map[string]string{"method": method},
	)
}

// resolve decodes {name, arguments} and checks the named entry has kind.
func (h *Handler) resolve(req Request, kind registry.Kind) (string, map[string]any, *apperrors.Error) {
	var params CallParams
	if len(req.Params) == 0 {
		return "", nil, apperrors.New(apperrors.CodeInvalidParams, "params with a name are required")
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return "", nil, apperrors.Wrap(apperrors.CodeInvalidParams, "params must be an object", err)
	}
	if params.Name == "" {
		return "", nil, apperrors.WithMetadata(apperrors.CodeInvalidParams, "name is required", map[string]string{"param": "name"})
	}
	reg := h.registry()
	if reg == nil {
		return "", nil, apperrors.Newf(apperrors.CodeMethodNotFound, "%s %q not found", kind, params.Name)
	}
	if entry, ok := reg.Lookup(params.Name); !ok || entry.Kind != kind {
		return "", nil, apperrors.WithMetadata(
			apperrors.CodeMethodNotFound,
			fmt.Sprintf("%s %q not found", kind, params.Name),
			map[string]string{"method": params.Name},
		)
	}
	args, err := dispatch.DecodeArgs(params.Arguments)
	if err != nil {
		return "", nil, err
	}
	return params.Name, args, nil
}

func (h *Handler) callTool(ctx context.Context, req Request) Response {
	name, args, err := h.resolve(req, registry.KindTool)
	if err != nil {
		return Failure(req.ID, err)
	}
	result := h.dispatcher.Dispatch(ctx, name, args)
	if !result.OK() {
		return Failure(req.ID, result.Err)
	}
	return Success(req.ID, CallResult{
		Content:           []Content{{Type: "text", Text: fmt.Sprint(result.Value)}},
		StructuredContent: map[string]any{"result": result.Value},
		Operation:         result.Summary,
	})
}

func (h *Handler) getPrompt(ctx context.Context, req Request) Response {
	name, args, err := h.resolve(req, registry.KindPrompt)
	if err != nil {
		return Failure(req.ID, err)
	}
	result := h.dispatcher.Dispatch(ctx, name, args)
	if !result.OK() {
		return Failure(req.ID, result.Err)
	}
	var description string
	if entry, ok := h.registry().Lookup(name); ok {
		description = entry.Description
	}
	return Success(req.ID, PromptResult{
		Description: description,
		Messages: []PromptMessage{{
			Role:    "user",
			Content: Content{Type: "text", Text: fmt.Sprint(result.Value)},
		}},
	})
}
