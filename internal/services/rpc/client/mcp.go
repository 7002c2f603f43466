package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	apperrors "github.com/louisbranch/mathmcp/internal/platform/errors"
	"github.com/louisbranch/mathmcp/internal/services/rpc/protocol"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPSession talks to an MCP server through the go-sdk client.
type MCPSession struct {
	transport mcp.Transport
	session   *mcp.ClientSession
}

// NewMCPSession prepares a session over transport; Initialize connects.
func NewMCPSession(transport mcp.Transport) *MCPSession {
	return &MCPSession{transport: transport}
}

// NewMCPCommandSession prepares a session that spawns cmd and speaks MCP over
// its standard streams.
func NewMCPCommandSession(cmd *exec.Cmd) *MCPSession {
	return NewMCPSession(&mcp.CommandTransport{Command: cmd})
}

// Initialize connects and performs the MCP handshake.
func (s *MCPSession) Initialize(ctx context.Context) (protocol.InitializeResult, error) {
	var result protocol.InitializeResult
	if s.session != nil {
		return result, fmt.Errorf("session already initialized")
	}
	client := mcp.NewClient(&mcp.Implementation{Name: ClientInfo.Name, Version: ClientInfo.Version}, nil)
	session, err := client.Connect(ctx, s.transport, nil)
	if err != nil {
		return result, apperrors.Wrap(apperrors.CodeTransport, fmt.Sprintf("connect MCP server: %v", err), err)
	}
	s.session = session

	init := session.InitializeResult()
	if init == nil {
		return result, nil
	}
	result.ProtocolVersion = init.ProtocolVersion
	if init.ServerInfo != nil {
		result.ServerInfo = protocol.Implementation{Name: init.ServerInfo.Name, Version: init.ServerInfo.Version}
	}
	if init.Capabilities != nil {
		if init.Capabilities.Tools != nil {
			result.Capabilities.Tools = &struct{}{}
		}
		if init.Capabilities.Prompts != nil {
			result.Capabilities.Prompts = &struct{}{}
		}
	}
	return result, nil
}

func (s *MCPSession) connected() (*mcp.ClientSession, error) {
	if s.session == nil {
		return nil, apperrors.New(apperrors.CodeTransport, "session is not initialized")
	}
	return s.session, nil
}

// ListTools lists the server's tools.
func (s *MCPSession) ListTools(ctx context.Context) ([]Descriptor, error) {
	session, err := s.connected()
	if err != nil {
		return nil, err
	}
	result, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransport, fmt.Sprintf("list tools: %v", err), err)
	}
	descriptors := make([]Descriptor, 0, len(result.Tools))
	for _, tool := range result.Tools {
		descriptors = append(descriptors, Descriptor{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  schemaProperties(tool.InputSchema),
		})
	}
	return descriptors, nil
}

// ListPrompts lists the server's prompts.
func (s *MCPSession) ListPrompts(ctx context.Context) ([]Descriptor, error) {
	session, err := s.connected()
	if err != nil {
		return nil, err
	}
	if init := session.InitializeResult(); init == nil || init.Capabilities == nil || init.Capabilities.Prompts == nil {
		return nil, apperrors.New(apperrors.CodeMethodNotFound, "prompts capability is not declared")
	}
	result, err := session.ListPrompts(ctx, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransport, fmt.Sprintf("list prompts: %v", err), err)
	}
	descriptors := make([]Descriptor, 0, len(result.Prompts))
	for _, prompt := range result.Prompts {
		descriptor := Descriptor{Name: prompt.Name, Description: prompt.Description}
		for _, arg := range prompt.Arguments {
			descriptor.Parameters = append(descriptor.Parameters, arg.Name)
		}
		descriptors = append(descriptors, descriptor)
	}
	return descriptors, nil
}

// Call invokes a tool. Tool errors come back as errors carrying the
// server's message.
func (s *MCPSession) Call(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	session, err := s.connected()
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransport, fmt.Sprintf("call %s: %v", name, err), err)
	}
	text := contentText(result.Content)
	if result.IsError {
		return nil, parseToolError(text)
	}
	if structured, ok := result.StructuredContent.(map[string]any); ok {
		if value, ok := structured["result"]; ok {
			if data, err := json.Marshal(value); err == nil {
				return data, nil
			}
		}
	}
	if json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}
	data, err := json.Marshal(text)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", name, err)
	}
	return data, nil
}

// Close ends the MCP session, which stops a spawned server.
func (s *MCPSession) Close() error {
	if s.session == nil {
		return nil
	}
	return s.session.Close()
}

func contentText(content []mcp.Content) string {
	var parts []string
	for _, item := range content {
		if text, ok := item.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// parseToolError recovers the error code from a "code: message" tool error.
func parseToolError(text string) error {
	code, message, ok := strings.Cut(text, ": ")
	if ok && knownCode(apperrors.Code(code)) {
		return &protocol.Error{Code: apperrors.Code(code), Message: message}
	}
	return &protocol.Error{Code: apperrors.CodeInternal, Message: text}
}

func knownCode(code apperrors.Code) bool {
	switch code {
	case apperrors.CodeParseError, apperrors.CodeInvalidRequest, apperrors.CodeMethodNotFound,
		apperrors.CodeInvalidParams, apperrors.CodeInternal:
		return true
	default:
		return false
	}
}

func schemaProperties(schema any) []string {
	object, ok := schema.(map[string]any)
	if !ok {
		return nil
	}
	properties, ok := object["properties"].(map[string]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
