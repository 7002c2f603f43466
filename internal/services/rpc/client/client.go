// Package client opens a session to a math server over one of its
// transports, negotiates capabilities, discovers entries and invokes them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	apperrors "github.com/louisbranch/mathmcp/internal/platform/errors"
	"github.com/louisbranch/mathmcp/internal/services/rpc/protocol"
)

// ClientInfo identifies the harness during initialize.
var ClientInfo = protocol.Implementation{Name: "mathmcp-client", Version: "0.1.0"}

// Descriptor is a discovered tool or prompt.
type Descriptor struct {
	Name        string
	Description string
	Parameters  []string
}

// Session is an open connection to a server.
type Session interface {
	// Initialize performs the capability handshake.
	Initialize(ctx context.Context) (protocol.InitializeResult, error)
	ListTools(ctx context.Context) ([]Descriptor, error)
	// ListPrompts fails with method_not_found when the server does not declare
	// the prompts capability.
	ListPrompts(ctx context.Context) ([]Descriptor, error)
	// Call invokes a tool and returns its JSON-encoded result value.
	Call(ctx context.Context, name string, args map[string]any) (json.RawMessage, error)
	Close() error
}

// exchangeFunc sends one request and returns its response. With notify set no
// response is awaited. Server failures arrive inside the response; transport
// failures are returned as errors.
type exchangeFunc func(ctx context.Context, req protocol.Request, notify bool) (protocol.Response, error)

// envelopeClient implements the line protocol calls shared by the pipe and
// HTTP sessions.
type envelopeClient struct {
	exchange exchangeFunc
	nextID   atomic.Int64
}

func (c *envelopeClient) request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := json.RawMessage(fmt.Sprintf("%d", c.nextID.Add(1)))
	req := protocol.Request{JSONRPC: "2.0", ID: id, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode %s params: %w", method, err)
		}
		req.Params = data
	}
	resp, err := c.exchange(ctx, req, false)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(bytes.TrimSpace(resp.ID), id) {
		return nil, apperrors.WithMetadata(
			apperrors.CodeTransport,
			fmt.Sprintf("response id %s does not match request id %s", resp.ID, id),
			map[string]string{"method": method},
		)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

func (c *envelopeClient) notify(ctx context.Context, method string) error {
	_, err := c.exchange(ctx, protocol.Request{JSONRPC: "2.0", Method: method}, true)
	return err
}

// Initialize performs the handshake and then announces readiness.
func (c *envelopeClient) Initialize(ctx context.Context) (protocol.InitializeResult, error) {
	var result protocol.InitializeResult
	raw, err := c.request(ctx, protocol.MethodInitialize, protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		ClientInfo:      ClientInfo,
		Capabilities:    map[string]any{},
	})
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, apperrors.Wrap(apperrors.CodeTransport, "decode initialize result", err)
	}
	if err := c.notify(ctx, protocol.NotificationPrefix+"initialized"); err != nil {
		return result, err
	}
	return result, nil
}

// ListTools returns the server's tools in listing order.
func (c *envelopeClient) ListTools(ctx context.Context) ([]Descriptor, error) {
	raw, err := c.request(ctx, protocol.MethodToolsList, nil)
	if err != nil {
		return nil, err
	}
	var result protocol.ToolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransport, "decode tools/list result", err)
	}
	return fromListings(result.Tools), nil
}

// ListPrompts returns the server's prompt templates in listing order.
func (c *envelopeClient) ListPrompts(ctx context.Context) ([]Descriptor, error) {
	raw, err := c.request(ctx, protocol.MethodPromptsList, nil)
	if err != nil {
		return nil, err
	}
	var result protocol.PromptsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransport, "decode prompts/list result", err)
	}
	return fromListings(result.Prompts), nil
}

// Call invokes name directly with args as params.
func (c *envelopeClient) Call(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if args == nil {
		args = map[string]any{}
	}
	return c.request(ctx, name, args)
}

func fromListings(listings []protocol.Listing) []Descriptor {
	descriptors := make([]Descriptor, 0, len(listings))
	for _, listing := range listings {
		descriptors = append(descriptors, Descriptor{
			Name:        listing.Name,
			Description: listing.Description,
			Parameters:  listing.Names(),
		})
	}
	return descriptors
}

// Names returns the descriptor names in order.
func Names(descriptors []Descriptor) []string {
	names := make([]string, 0, len(descriptors))
	for _, descriptor := range descriptors {
		names = append(names, descriptor.Name)
	}
	return names
}

func decodeResponse(data []byte) (protocol.Response, *apperrors.Error) {
	var resp protocol.Response
	if err := json.Unmarshal(bytes.TrimSpace(data), &resp); err != nil {
		return resp, apperrors.Wrap(apperrors.CodeTransport, fmt.Sprintf("decode response: %v", err), err)
	}
	return resp, nil
}
