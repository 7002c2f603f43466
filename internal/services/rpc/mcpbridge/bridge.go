// Package mcpbridge publishes registry entries through the MCP go-sdk so
// standard MCP clients can discover and call them over stdio or streamable
// HTTP. Every call still goes through the dispatcher.
package mcpbridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/louisbranch/mathmcp/internal/platform/errors"
	"github.com/louisbranch/mathmcp/internal/services/rpc/dispatch"
	"github.com/louisbranch/mathmcp/internal/services/rpc/protocol"
	"github.com/louisbranch/mathmcp/internal/services/rpc/registry"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer builds an MCP server exposing every registry entry: tools as MCP
// tools and prompt templates as MCP prompts.
func NewServer(dispatcher *dispatch.Dispatcher, info protocol.Implementation) (*mcp.Server, error) {
	if dispatcher == nil || dispatcher.Registry() == nil {
		return nil, fmt.Errorf("dispatcher with a registry is required")
	}
	server := mcp.NewServer(&mcp.Implementation{Name: info.Name, Version: info.Version}, nil)
	for descriptor := range dispatcher.Registry().List() {
		switch descriptor.Kind {
		case registry.KindTool:
			server.AddTool(&mcp.Tool{
				Name:        descriptor.Name,
				Description: descriptor.Description,
				InputSchema: descriptor.InputSchema(),
			}, toolHandler(dispatcher, descriptor.Name))
		case registry.KindPrompt:
			server.AddPrompt(prompt(descriptor), promptHandler(dispatcher, descriptor))
		default:
			return nil, fmt.Errorf("register %s: unsupported kind %q", descriptor.Name, descriptor.Kind)
		}
	}
	return server, nil
}

func prompt(descriptor registry.Descriptor) *mcp.Prompt {
	args := make([]*mcp.PromptArgument, 0, len(descriptor.Parameters))
	for _, param := range descriptor.Parameters {
		args = append(args, &mcp.PromptArgument{
			Name:        param.Name,
			Description: param.Description,
			Required:    param.Required,
		})
	}
	return &mcp.Prompt{
		Name:        descriptor.Name,
		Description: descriptor.Description,
		Arguments:   args,
	}
}

// toolHandler dispatches a tool call. Dispatch failures are reported as tool
// results with IsError set so the model sees the message.
func toolHandler(dispatcher *dispatch.Dispatcher, name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var raw []byte
		if req != nil && req.Params != nil {
			raw = req.Params.Arguments
		}
		args, appErr := dispatch.DecodeArgs(raw)
		if appErr != nil {
			return errorResult(appErr), nil
		}
		result := dispatcher.Dispatch(ctx, name, args)
		if !result.OK() {
			return errorResult(result.Err), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprint(result.Value)},
			},
			StructuredContent: map[string]any{"result": result.Value},
		}, nil
	}
}

// errorResult renders err as "code: message" so clients can recover the code.
func errorResult(err *apperrors.Error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s: %s", err.Code, err.Message)},
		},
	}
}

func promptHandler(dispatcher *dispatch.Dispatcher, descriptor registry.Descriptor) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var values map[string]string
		if req != nil && req.Params != nil {
			values = req.Params.Arguments
		}
		result := dispatcher.Dispatch(ctx, descriptor.Name, dispatch.StringArgs(values))
		if !result.OK() {
			return nil, result.Err
		}
		return &mcp.GetPromptResult{
			Description: descriptor.Description,
			Messages: []*mcp.PromptMessage{
				{
					Role:    "user",
					Content: &mcp.TextContent{Text: fmt.Sprint(result.Value)},
				},
			},
		}, nil
	}
}

// ServeStdio runs server over the process's standard input and output and
// blocks until the client disconnects or ctx ends.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return Serve(ctx, server, &mcp.StdioTransport{})
}

// Serve runs server over transport. Cancellation is a clean exit.
func Serve(ctx context.Context, server *mcp.Server, transport mcp.Transport) error {
	if server == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := server.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// HTTPHandler returns the MCP streamable HTTP handler for server.
func HTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}
