package task

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/alex-devdone/mission-control-sub000/internal/agent"
	"github.com/alex-devdone/mission-control-sub000/internal/event"
	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"github.com/alex-devdone/mission-control-sub000/internal/notify"
	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
	"gorm.io/gorm"
)

// UpdateOpts holds a partial task update. Nil pointer fields are left
// unchanged; an empty AssignedAgentID clears the assignment.
type UpdateOpts struct {
	Title           *string
	Description     *string
	Status          *string
	Priority        *string
	AssignedAgentID *string
	DueDate         *time.Time

	// ActorAgentID identifies who requested the change. Only the
	// workspace's master agent may move a task from review to done.
	ActorAgentID string
}

// Update applies a partial update to a task and runs the transition side
// effects: audit events, dispatch on assignment, agent standby downgrade on
// review/done, and async app progress recalculation. Dispatch failure here
// is logged and swallowed; the explicit dispatch endpoint surfaces errors.
func Update(ctx context.Context, db *gorm.DB, n *notify.Notifier, disp Dispatcher, id string, opts UpdateOpts) (*models.Task, error) {
	t, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	oldStatus := t.Status
	newStatus := oldStatus
	if opts.Status != nil {
		if !models.ValidTaskStatus(*opts.Status) {
			return nil, orcerr.New(orcerr.KindInvalidRequest, "task: invalid status %q", *opts.Status)
		}
		newStatus = *opts.Status
	}
	statusChanged := newStatus != oldStatus

	// The one authorization rule in the state machine: review → done
	// requires the workspace's master agent.
	if statusChanged && oldStatus == models.TaskStatusReview && newStatus == models.TaskStatusDone {
		if err := requireMaster(db, t.WorkspaceID, opts.ActorAgentID); err != nil {
			return nil, err
		}
	}

	oldAssignee := ""
	if t.AssignedAgentID != nil {
		oldAssignee = *t.AssignedAgentID
	}
	newAssignee := oldAssignee
	if opts.AssignedAgentID != nil {
		newAssignee = *opts.AssignedAgentID
	}
	assigneeChanged := newAssignee != oldAssignee

	if assigneeChanged && newAssignee != "" {
		if _, err := agent.Get(db, newAssignee); err != nil {
			return nil, err
		}
	}

	if opts.Title != nil {
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.Priority != nil {
		if !models.ValidPriority(*opts.Priority) {
			return nil, orcerr.New(orcerr.KindInvalidRequest, "task: invalid priority %q", *opts.Priority)
		}
		t.Priority = *opts.Priority
	}
	if opts.DueDate != nil {
		t.DueDate = opts.DueDate
	}
	t.Status = newStatus
	if newAssignee == "" {
		t.AssignedAgentID = nil
	} else {
		t.AssignedAgentID = &newAssignee
	}

	if err := db.Save(t).Error; err != nil {
		return nil, fmt.Errorf("task: update %s: %w", id, err)
	}

	if assigneeChanged && newAssignee != "" {
		if _, err := event.Record(db, models.EventTaskAssigned,
			fmt.Sprintf("Task %q assigned to agent", t.Title),
			event.Opts{TaskID: t.ID, AgentID: newAssignee}); err != nil {
			log.Printf("task: record assign event: %v", err)
		}
	}

	if statusChanged {
		evtType := models.EventTaskStatusChanged
		if newStatus == models.TaskStatusDone {
			evtType = models.EventTaskCompleted
		}
		if _, err := event.Record(db, evtType,
			fmt.Sprintf("Task %q moved %s → %s", t.Title, oldStatus, newStatus),
			event.Opts{TaskID: t.ID, Metadata: map[string]interface{}{
				"from": oldStatus,
				"to":   newStatus,
			}}); err != nil {
			log.Printf("task: record status event: %v", err)
		}
	}

	// Entering assigned with an agent on board, or handing an assigned task
	// to a new agent, triggers dispatch.
	needDispatch := t.AssignedAgentID != nil && t.Status == models.TaskStatusAssigned &&
		(statusChanged || assigneeChanged)
	if needDispatch && disp != nil {
		if err := disp.Dispatch(ctx, t.ID); err != nil {
			log.Printf("task: dispatch after update %s: %v", t.ID, err)
		} else {
			// Dispatch advanced the task; reload so the caller sees it.
			if fresh, err := Get(db, t.ID); err == nil {
				t = fresh
			}
		}
	}

	if statusChanged && (newStatus == models.TaskStatusReview || newStatus == models.TaskStatusDone) {
		if oldAssignee != "" {
			if err := agent.ReleaseIfIdle(db, n, oldAssignee, t.ID); err != nil {
				log.Printf("task: release agent %s: %v", oldAssignee, err)
			}
		}
		if t.AppID != nil {
			appID := *t.AppID
			go func() {
				if err := RecalcAppProgress(db, appID); err != nil {
					log.Printf("task: recalc app %s progress: %v", appID, err)
				}
			}()
		}
	}

	n.TaskUpdated(t)
	return t, nil
}

// requireMaster returns Forbidden unless actorAgentID names the master
// agent of the workspace.
func requireMaster(db *gorm.DB, workspaceID, actorAgentID string) error {
	if actorAgentID == "" {
		return orcerr.New(orcerr.KindForbidden, "task: only the master agent may approve review → done")
	}
	actor, err := agent.Get(db, actorAgentID)
	if err != nil {
		return orcerr.New(orcerr.KindForbidden, "task: unknown actor %s", actorAgentID)
	}
	if !actor.IsMaster || actor.WorkspaceID != workspaceID {
		return orcerr.New(orcerr.KindForbidden, "task: agent %s may not approve review → done", actorAgentID)
	}
	return nil
}

// RecalcAppProgress recomputes an app's progress as the percentage of its
// tasks in done. Fired asynchronously after review/done transitions.
func RecalcAppProgress(db *gorm.DB, appID string) error {
	if appID == "" {
		return fmt.Errorf("task: appID is required")
	}
	var total, done int64
	if err := db.Model(&models.Task{}).Where("app_id = ?", appID).Count(&total).Error; err != nil {
		return fmt.Errorf("task: count app tasks: %w", err)
	}
	progress := 0
	if total > 0 {
		if err := db.Model(&models.Task{}).
			Where("app_id = ? AND status = ?", appID, models.TaskStatusDone).
			Count(&done).Error; err != nil {
			return fmt.Errorf("task: count done tasks: %w", err)
		}
		progress = int(done * 100 / total)
	}
	if err := db.Model(&models.App{}).Where("id = ?", appID).
		Update("progress", progress).Error; err != nil {
		return fmt.Errorf("task: update app progress: %w", err)
	}
	return nil
}
