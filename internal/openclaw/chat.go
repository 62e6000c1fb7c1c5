package openclaw

import (
	"context"
	"encoding/json"

	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
)

// SendChat delivers a message into a session. The idempotency key is passed
// through so the runtime deduplicates retried delivery attempts.
func SendChat(ctx context.Context, c Client, sessionKey, message, idempotencyKey string) error {
	params := map[string]interface{}{
		"session_key": sessionKey,
		"message":     message,
	}
	if idempotencyKey != "" {
		params["idempotency_key"] = idempotencyKey
	}
	_, err := c.Call(ctx, "chat.send", params)
	return err
}

// ChatHistory retrieves the most recent transcript entries of a session.
func ChatHistory(ctx context.Context, c Client, sessionKey string, limit int) ([]ChatMessage, error) {
	raw, err := c.Call(ctx, "chat.history", map[string]interface{}{
		"session_key": sessionKey,
		"limit":       limit,
	})
	if err != nil {
		return nil, err
	}
	var msgs []ChatMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, orcerr.Wrap(orcerr.KindUpstreamProtocol, err, "openclaw: decode chat history")
	}
	return msgs, nil
}
