package mcpbridge

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/mathmcp/internal/services/math/domain"
	"github.com/louisbranch/mathmcp/internal/services/rpc/dispatch"
	"github.com/louisbranch/mathmcp/internal/services/rpc/protocol"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func newTestServer(t *testing.T, prompts bool) *mcp.Server {
	t.Helper()
	reg, err := domain.NewRegistry(domain.Options{Prompts: prompts})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	server, err := NewServer(dispatch.New(reg, dispatch.WithLogger(log.New(io.Discard, "", 0))), protocol.DefaultServerInfo)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server
}

// connect serves server over in-memory transports and returns a client
// session; the server stops when the test ends.
func connect(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- Serve(ctx, server, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	connectCtx, connectCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer connectCancel()
	session, err := client.Connect(connectCtx, clientTransport, nil)
	if err != nil {
		cancel()
		t.Fatalf("connect client: %v", err)
	}
	t.Cleanup(func() {
		_ = session.Close()
		cancel()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return session
}

func TestNewServerRequiresDispatcher(t *testing.T) {
	if _, err := NewServer(nil, protocol.DefaultServerInfo); err == nil {
		t.Fatal("expected error for nil dispatcher")
	}
}

func TestListTools(t *testing.T) {
	session := connect(t, newTestServer(t, false))
	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	slices.Sort(names)
	if !slices.Equal(names, []string{"add", "multiply", "sub"}) {
		t.Fatalf("unexpected tools %v", names)
	}
}

func TestCallTool(t *testing.T) {
	session := connect(t, newTestServer(t, false))
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "add",
		Arguments: map[string]any{"a": 15, "b": 27},
	})
	if err != nil {
		t.Fatalf("call add: %v", err)
	}
	if result.IsError || len(result.Content) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok || text.Text != "42" {
		t.Fatalf("expected text 42, got %#v", result.Content[0])
	}
}

func TestCallToolInvalidParams(t *testing.T) {
	session := connect(t, newTestServer(t, false))
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "multiply",
		Arguments: map[string]any{"a": "six", "b": 9},
	})
	if err != nil {
		t.Fatalf("call multiply: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error, got %+v", result)
	}
	text, _ := result.Content[0].(*mcp.TextContent)
	if text == nil || !strings.Contains(text.Text, "invalid_params") {
		t.Fatalf("expected invalid_params message, got %#v", result.Content[0])
	}
}

func TestPrompts(t *testing.T) {
	session := connect(t, newTestServer(t, true))
	list, err := session.ListPrompts(context.Background(), nil)
	if err != nil {
		t.Fatalf("list prompts: %v", err)
	}
	if len(list.Prompts) != 3 {
		t.Fatalf("expected 3 prompts, got %d", len(list.Prompts))
	}

	result, err := session.GetPrompt(context.Background(), &mcp.GetPromptParams{
		Name:      domain.PromptMultiply,
		Arguments: map[string]string{"a": "8", "b": "6"},
	})
	if err != nil {
		t.Fatalf("get prompt: %v", err)
	}
	if len(result.Messages) != 1 {
		t.Fatalf("expected one message, got %+v", result)
	}
	text, ok := result.Messages[0].Content.(*mcp.TextContent)
	if !ok || text.Text != "Multiply 8 and 6." {
		t.Fatalf("unexpected prompt content %#v", result.Messages[0].Content)
	}
}

func TestHTTPHandler(t *testing.T) {
	server := httptest.NewServer(HTTPHandler(newTestServer(t, false)))
	defer server.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: server.URL}, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "sub",
		Arguments: map[string]any{"a": 20, "b": 8},
	})
	if err != nil {
		t.Fatalf("call sub: %v", err)
	}
	text, _ := result.Content[0].(*mcp.TextContent)
	if text == nil || text.Text != "12" {
		t.Fatalf("expected 12, got %#v", result.Content)
	}
}
