// Package intake receives "I am done" signals from agents and advances
// tasks to testing. Signals arrive either as a structured call keyed by
// task, or as a free-text sentinel keyed by session.
package intake

import (
	"fmt"
	"log"
	"strings"

	"github.com/alex-devdone/mission-control-sub000/internal/agent"
	"github.com/alex-devdone/mission-control-sub000/internal/dispatch"
	"github.com/alex-devdone/mission-control-sub000/internal/event"
	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"github.com/alex-devdone/mission-control-sub000/internal/notify"
	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
	"github.com/alex-devdone/mission-control-sub000/internal/session"
	"github.com/alex-devdone/mission-control-sub000/internal/task"
	"gorm.io/gorm"
)

// CompleteByTask advances a known task to testing with the given summary.
func CompleteByTask(db *gorm.DB, n *notify.Notifier, taskID, summary string) (*models.Task, error) {
	t, err := task.Get(db, taskID)
	if err != nil {
		return nil, err
	}
	return complete(db, n, t, summary)
}

// CompleteBySession resolves a completion sentinel to the agent behind the
// session and advances that agent's active task. The message must match
// the literal pattern "TASK_COMPLETE: <summary>".
func CompleteBySession(db *gorm.DB, n *notify.Notifier, sessionID, message string) (*models.Task, error) {
	summary, ok := ParseSentinel(message)
	if !ok {
		return nil, orcerr.New(orcerr.KindInvalidRequest,
			"intake: message does not match %q pattern", dispatch.CompletionSentinel+" <summary>")
	}

	sc, err := session.BySessionID(db, sessionID)
	if err != nil {
		return nil, err
	}

	// The agent's current task: prefer the one the session is bound to,
	// otherwise its single task still in flight.
	var t *models.Task
	if sc.TaskID != nil {
		if bound, err := task.Get(db, *sc.TaskID); err == nil && inFlight(bound.Status) {
			t = bound
		}
	}
	if t == nil {
		var found models.Task
		result := db.Where("assigned_agent_id = ? AND status IN ?", sc.AgentID,
			[]string{models.TaskStatusAssigned, models.TaskStatusInProgress}).
			Order("updated_at DESC").Limit(1).Find(&found)
		if result.Error != nil {
			return nil, fmt.Errorf("intake: find task for agent %s: %w", sc.AgentID, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, orcerr.New(orcerr.KindNotFound, "intake: no in-flight task for agent %s", sc.AgentID)
		}
		t = &found
	}

	return complete(db, n, t, summary)
}

// ParseSentinel extracts the summary from a completion sentinel line.
func ParseSentinel(message string) (summary string, ok bool) {
	message = strings.TrimSpace(message)
	if !strings.HasPrefix(message, dispatch.CompletionSentinel) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(message, dispatch.CompletionSentinel)), true
}

func inFlight(status string) bool {
	switch status {
	case models.TaskStatusAssigned, models.TaskStatusInProgress, models.TaskStatusTesting:
		return true
	}
	return false
}

func complete(db *gorm.DB, n *notify.Notifier, t *models.Task, summary string) (*models.Task, error) {
	oldStatus := t.Status
	t.Status = models.TaskStatusTesting
	if err := db.Save(t).Error; err != nil {
		return nil, fmt.Errorf("intake: advance task %s: %w", t.ID, err)
	}

	agentID := ""
	if t.AssignedAgentID != nil {
		agentID = *t.AssignedAgentID
	}

	if _, err := event.Record(db, models.EventTaskCompletedSignal,
		fmt.Sprintf("Task %q reported complete: %s", t.Title, summary),
		event.Opts{TaskID: t.ID, AgentID: agentID, Metadata: map[string]interface{}{
			"from":    oldStatus,
			"summary": summary,
		}}); err != nil {
		log.Printf("intake: record completion event: %v", err)
	}

	if _, err := task.LogActivity(db, t.ID, "completion", summary,
		task.ActivityOpts{AgentID: agentID}); err != nil {
		log.Printf("intake: log completion activity: %v", err)
	}

	// The finished task no longer occupies its agent.
	if agentID != "" {
		if err := agent.ReleaseIfIdle(db, n, agentID, t.ID); err != nil {
			log.Printf("intake: release agent %s: %v", agentID, err)
		}
	}

	n.TaskUpdated(t)
	return t, nil
}
