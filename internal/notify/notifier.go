package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/alex-devdone/mission-control-sub000/internal/models"
)

// pushTimeout bounds a single chat push so a slow platform cannot stall
// the caller.
const pushTimeout = 10 * time.Second

// Pusher delivers an urgent notification to a chat platform.
type Pusher interface {
	// Push sends a short titled message. Implementations must be safe for
	// concurrent use.
	Push(ctx context.Context, title, body string) error
}

// Notifier wraps the broker with typed publish helpers and best-effort
// chat push for urgent events.
type Notifier struct {
	broker  *Broker
	pushers []Pusher
}

// NewNotifier creates a Notifier. Pushers are optional.
func NewNotifier(broker *Broker, pushers ...Pusher) *Notifier {
	return &Notifier{broker: broker, pushers: pushers}
}

// Broker exposes the underlying broker for SSE subscription.
func (n *Notifier) Broker() *Broker { return n.broker }

// TaskUpdated publishes a task state change to observers.
func (n *Notifier) TaskUpdated(task *models.Task) {
	if n == nil || task == nil {
		return
	}
	n.broker.Publish(Update{Kind: KindTask, Payload: task})
}

// AgentUpdated publishes an agent state change to observers.
func (n *Notifier) AgentUpdated(agent *models.Agent) {
	if n == nil || agent == nil {
		return
	}
	n.broker.Publish(Update{Kind: KindAgent, Payload: agent})
}

// EventRecorded publishes a new audit event to observers.
func (n *Notifier) EventRecorded(evt *models.Event) {
	if n == nil || evt == nil {
		return
	}
	n.broker.Publish(Update{Kind: KindEvent, Payload: evt})
}

// Urgent publishes to observers and pushes to every configured chat
// platform. Push failures are logged, never returned.
func (n *Notifier) Urgent(title, body string) {
	if n == nil {
		return
	}
	n.broker.Publish(Update{Kind: KindEvent, Payload: map[string]string{
		"title": title,
		"body":  body,
	}})
	for _, p := range n.pushers {
		go func(p Pusher) {
			ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
			defer cancel()
			if err := p.Push(ctx, title, body); err != nil {
				log.Printf("notify: push failed: %v", err)
			}
		}(p)
	}
}

// DepletionNotice formats the standard depletion push for an agent.
func DepletionNotice(agent *models.Agent, limit5h int, evacuated int) (title, body string) {
	title = fmt.Sprintf("Agent %s depleted", agent.Name)
	body = fmt.Sprintf("5h capacity at %d%%; %d task(s) returned to inbox", limit5h, evacuated)
	return title, body
}
