package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/mathmcp/internal/platform/errors"
	"github.com/louisbranch/mathmcp/internal/platform/timeouts"
	"github.com/louisbranch/mathmcp/internal/services/rpc/protocol"
)

// HTTPSession talks to a running server through its /rpc route.
type HTTPSession struct {
	envelopeClient

	endpoint   string
	httpClient *http.Client
}

// NewHTTPSession returns a session for the server mounted at baseURL, e.g.
// "http://localhost:8000" or "http://localhost:8000/math". A nil httpClient
// uses one bounded by the default call timeout.
func NewHTTPSession(baseURL string, httpClient *http.Client) (*HTTPSession, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeouts.ClientCall}
	}
	s := &HTTPSession{
		endpoint:   baseURL + "/rpc",
		httpClient: httpClient,
	}
	s.exchange = s.roundTrip
	return s, nil
}

func (s *HTTPSession) roundTrip(ctx context.Context, req protocol.Request, notify bool) (protocol.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("encode request: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return protocol.Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return protocol.Response{}, apperrors.Wrap(apperrors.CodeTransport, fmt.Sprintf("%s: %v", req.Method, err), err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return protocol.Response{}, apperrors.Wrap(apperrors.CodeTransport, fmt.Sprintf("%s: read response: %v", req.Method, err), err)
	}
	if notify {
		return protocol.Response{}, nil
	}
	if httpResp.StatusCode != http.StatusOK {
		return protocol.Response{}, apperrors.Newf(apperrors.CodeTransport, "%s: unexpected status %d", req.Method, httpResp.StatusCode)
	}
	resp, decodeErr := decodeResponse(data)
	if decodeErr != nil {
		return protocol.Response{}, decodeErr
	}
	return resp, nil
}

// Close releases idle keep-alive connections.
func (s *HTTPSession) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
