// Package dispatch delivers task briefings into correlated agent sessions
// and advances task/agent state on success.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/alex-devdone/mission-control-sub000/internal/agent"
	"github.com/alex-devdone/mission-control-sub000/internal/event"
	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"github.com/alex-devdone/mission-control-sub000/internal/notify"
	"github.com/alex-devdone/mission-control-sub000/internal/openclaw"
	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
	"github.com/alex-devdone/mission-control-sub000/internal/session"
	"github.com/alex-devdone/mission-control-sub000/internal/task"
	"gorm.io/gorm"
)

// Service wires the dispatcher's dependencies.
type Service struct {
	db       *gorm.DB
	client   openclaw.Client
	notifier *notify.Notifier

	// now is swappable for deterministic idempotency keys in tests.
	now func() time.Time
}

// NewService creates a dispatch Service.
func NewService(db *gorm.DB, client openclaw.Client, n *notify.Notifier) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("dispatch: db is required")
	}
	if client == nil {
		return nil, fmt.Errorf("dispatch: openclaw client is required")
	}
	return &Service{db: db, client: client, notifier: n, now: time.Now}, nil
}

// IdempotencyKey builds the deduplication key for a dispatch send. Fixed
// wire format: dispatch-{task_id}-{unix_ms}.
func IdempotencyKey(taskID string, at time.Time) string {
	return fmt.Sprintf("dispatch-%s-%d", taskID, at.UnixMilli())
}

// Dispatch delivers the briefing for a task into its assigned agent's
// session. On delivery failure nothing is mutated and the error is
// surfaced; retry is the caller's responsibility.
func (s *Service) Dispatch(ctx context.Context, taskID string) error {
	t, err := task.Get(s.db, taskID)
	if err != nil {
		return err
	}
	if t.AssignedAgentID == nil || *t.AssignedAgentID == "" {
		return orcerr.New(orcerr.KindInvalidRequest, "dispatch: task %s has no assigned agent", taskID)
	}

	a, err := agent.Get(s.db, *t.AssignedAgentID)
	if err != nil {
		return err
	}
	if a.OpenclawAgentID == "" {
		return orcerr.New(orcerr.KindInvalidRequest, "dispatch: agent %s has no openclaw agent id", a.ID)
	}

	sc, created, err := session.EnsureActive(s.db, a, t.ID)
	if err != nil {
		return err
	}
	if created {
		if _, err := event.Record(s.db, models.EventSessionCreated,
			fmt.Sprintf("Session %s created for agent %s", sc.OpenclawSessionID, a.Name),
			event.Opts{AgentID: a.ID, TaskID: t.ID}); err != nil {
			log.Printf("dispatch: record session event: %v", err)
		}
	}

	var app *models.App
	if t.AppID != nil {
		var found models.App
		if result := s.db.Where("id = ?", *t.AppID).Limit(1).Find(&found); result.Error == nil && result.RowsAffected > 0 {
			app = &found
		}
	}

	briefing := ComposeBriefing(t, app)
	routingKey := session.RoutingKey(a.OpenclawAgentID, sc.OpenclawSessionID)
	idemKey := IdempotencyKey(t.ID, s.now())

	if err := openclaw.SendChat(ctx, s.client, routingKey, briefing, idemKey); err != nil {
		return err
	}

	// Delivery succeeded; advance task and agent.
	t.Status = models.TaskStatusInProgress
	if err := s.db.Save(t).Error; err != nil {
		return fmt.Errorf("dispatch: advance task %s: %w", t.ID, err)
	}
	a.Status = models.AgentStatusWorking
	if err := s.db.Save(a).Error; err != nil {
		return fmt.Errorf("dispatch: advance agent %s: %w", a.ID, err)
	}

	if _, err := event.Record(s.db, models.EventTaskDispatched,
		fmt.Sprintf("Task %q dispatched to %s", t.Title, a.Name),
		event.Opts{AgentID: a.ID, TaskID: t.ID, Metadata: map[string]interface{}{
			"routing_key": routingKey,
		}}); err != nil {
		log.Printf("dispatch: record dispatch event: %v", err)
	}

	s.notifier.TaskUpdated(t)
	s.notifier.AgentUpdated(a)
	return nil
}
