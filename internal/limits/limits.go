// Package limits is the client for the external limits service, which
// reports per-agent remaining capacity as enforced by the underlying LLM
// provider.
package limits

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
)

// Capacity status values reported by the limits service.
const (
	StatusOK       = "ok"
	StatusLow      = "low"
	StatusCritical = "critical"
	StatusUnknown  = "unknown"
)

// Snapshot is one agent's capacity reading. Limit fields are nil when the
// service omits them; the monitor falls back to the last stored value.
type Snapshot struct {
	Status            string `json:"status"`
	Limit5h           *int   `json:"limit_5h"`
	LimitWeek         *int   `json:"limit_week"`
	Model             string `json:"model"`
	ProviderAccountID string `json:"provider_account_id"`
}

// Client fetches capacity readings for agents.
type Client interface {
	Fetch(ctx context.Context, openclawAgentID string) (*Snapshot, error)
}

// HTTPClient talks to the limits service over HTTP with a short hard
// timeout. Timeouts and non-OK replies classify as service unavailable so
// the monitor skips the agent without mutating state.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// New creates an HTTPClient. Timeout defaults to 5s.
func New(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("limits: base URL is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Fetch returns the capacity snapshot for one agent.
func (c *HTTPClient) Fetch(ctx context.Context, openclawAgentID string) (*Snapshot, error) {
	if openclawAgentID == "" {
		return nil, fmt.Errorf("limits: agent id is required")
	}

	url := fmt.Sprintf("%s/agents/%s/limits", c.baseURL, openclawAgentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("limits: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, orcerr.Wrap(orcerr.KindUpstreamUnavailable, err, "limits: fetch %s", openclawAgentID)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, orcerr.New(orcerr.KindUpstreamUnavailable, "limits: fetch %s returned %d", openclawAgentID, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, orcerr.Wrap(orcerr.KindUpstreamUnavailable, err, "limits: read reply for %s", openclawAgentID)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, orcerr.Wrap(orcerr.KindUpstreamProtocol, err, "limits: decode reply for %s", openclawAgentID)
	}
	if snap.Status == "" {
		snap.Status = StatusUnknown
	}
	return &snap, nil
}
