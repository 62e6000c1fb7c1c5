// Package openclaw is the client for the OpenClaw gateway, the external
// runtime that hosts agent conversations. All calls are request/response;
// connection failure is reported as a distinct, retryable error from a
// protocol-level rejection.
package openclaw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
)

// Session describes a live session inside the OpenClaw runtime.
type Session struct {
	Key       string `json:"key"`
	Channel   string `json:"channel"`
	UpdatedAt int64  `json:"updated_at"`
}

// ChatMessage is one entry of a session transcript.
type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Client abstracts the gateway methods the orchestrator uses, enabling
// test mocks.
type Client interface {
	// ListSessions returns the sessions currently known to the runtime.
	ListSessions(ctx context.Context) ([]Session, error)

	// Call invokes a gateway method (chat.send, chat.history,
	// sessions.send) generically and returns the raw result payload.
	Call(ctx context.Context, method string, params map[string]interface{}) (json.RawMessage, error)
}

// HTTPClient talks to the OpenClaw gateway over HTTP.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// Opts holds parameters for creating an HTTPClient.
type Opts struct {
	GatewayURL string
	Token      string
	Timeout    time.Duration // defaults to 30s
}

// New creates an HTTPClient.
func New(opts Opts) (*HTTPClient, error) {
	if opts.GatewayURL == "" {
		return nil, fmt.Errorf("openclaw: gateway URL is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: opts.GatewayURL,
		token:   opts.Token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// rpcRequest is the gateway call envelope.
type rpcRequest struct {
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// rpcResponse is the gateway reply envelope.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call posts a method invocation to the gateway. Transport failures and
// 5xx replies classify as upstream-unavailable; a well-formed error reply
// or an unparseable body classifies as a protocol error.
func (c *HTTPClient) Call(ctx context.Context, method string, params map[string]interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("openclaw: marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openclaw: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, orcerr.Wrap(orcerr.KindUpstreamUnavailable, err, "openclaw: %s", method)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, orcerr.Wrap(orcerr.KindUpstreamUnavailable, err, "openclaw: read %s reply", method)
	}
	if resp.StatusCode >= 500 {
		return nil, orcerr.New(orcerr.KindUpstreamUnavailable, "openclaw: %s returned %d", method, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, orcerr.New(orcerr.KindUpstreamProtocol, "openclaw: %s rejected with %d: %s", method, resp.StatusCode, truncate(data, 200))
	}

	var rpc rpcResponse
	if err := json.Unmarshal(data, &rpc); err != nil {
		return nil, orcerr.Wrap(orcerr.KindUpstreamProtocol, err, "openclaw: decode %s reply", method)
	}
	if rpc.Error != nil {
		return nil, orcerr.New(orcerr.KindUpstreamProtocol, "openclaw: %s error %d: %s", method, rpc.Error.Code, rpc.Error.Message)
	}
	return rpc.Result, nil
}

// ListSessions returns the runtime's current sessions.
func (c *HTTPClient) ListSessions(ctx context.Context) ([]Session, error) {
	raw, err := c.Call(ctx, "sessions.list", nil)
	if err != nil {
		return nil, err
	}
	var sessions []Session
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil, orcerr.Wrap(orcerr.KindUpstreamProtocol, err, "openclaw: decode session list")
	}
	return sessions, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
