// Package task implements the task lifecycle: creation, filtering, the
// status state machine with its transition side effects, and cascade
// deletion.
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"github.com/alex-devdone/mission-control-sub000/internal/notify"
	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dispatcher delivers a task briefing into its assigned agent's session.
// Implemented by the dispatch package; injected to keep the state machine
// free of a dependency on the runtime client.
type Dispatcher interface {
	Dispatch(ctx context.Context, taskID string) error
}

// CreateOpts holds parameters for creating a task.
type CreateOpts struct {
	Title            string
	Description      string
	Status           string // defaults to inbox
	Priority         string // defaults to normal
	AssignedAgentID  string
	CreatedByAgentID string
	WorkspaceID      string
	AppID            string
	DueDate          *time.Time
}

// Create persists a new task. When the task is created directly in
// assigned with an agent, dispatch is the caller's next move (the REST
// handler triggers it fire-and-forget).
func Create(db *gorm.DB, n *notify.Notifier, opts CreateOpts) (*models.Task, error) {
	if opts.Title == "" {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "task: title is required")
	}
	status := opts.Status
	if status == "" {
		status = models.TaskStatusInbox
	}
	if !models.ValidTaskStatus(status) {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "task: invalid status %q", status)
	}
	priority := opts.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !models.ValidPriority(priority) {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "task: invalid priority %q", priority)
	}

	t := models.Task{
		ID:               uuid.NewString(),
		Title:            opts.Title,
		Description:      opts.Description,
		Status:           status,
		Priority:         priority,
		WorkspaceID:      opts.WorkspaceID,
		DueDate:          opts.DueDate,
		PlanningMessages: "[]",
		PlanningSpec:     "{}",
		PlanningAgents:   "[]",
	}
	if opts.AssignedAgentID != "" {
		t.AssignedAgentID = &opts.AssignedAgentID
	}
	if opts.CreatedByAgentID != "" {
		t.CreatedByAgentID = &opts.CreatedByAgentID
	}
	if opts.AppID != "" {
		t.AppID = &opts.AppID
	}

	if err := db.Create(&t).Error; err != nil {
		return nil, fmt.Errorf("task: create: %w", err)
	}
	n.TaskUpdated(&t)
	return &t, nil
}

// Get returns a task by id.
func Get(db *gorm.DB, id string) (*models.Task, error) {
	if id == "" {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "task: id is required")
	}
	var t models.Task
	result := db.Where("id = ?", id).Limit(1).Find(&t)
	if result.Error != nil {
		return nil, fmt.Errorf("task: get %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, orcerr.New(orcerr.KindNotFound, "task: not found: %s", id)
	}
	return &t, nil
}

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	Status          string
	AssignedAgentID string
	AppID           string
	WorkspaceID     string
}

// List returns tasks matching the filter, newest first.
func List(db *gorm.DB, f Filter) ([]models.Task, error) {
	q := db.Model(&models.Task{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AssignedAgentID != "" {
		q = q.Where("assigned_agent_id = ?", f.AssignedAgentID)
	}
	if f.AppID != "" {
		q = q.Where("app_id = ?", f.AppID)
	}
	if f.WorkspaceID != "" {
		q = q.Where("workspace_id = ?", f.WorkspaceID)
	}
	var tasks []models.Task
	if err := q.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task: list: %w", err)
	}
	return tasks, nil
}

// Delete removes a task and cascades to its correlated sessions, events,
// activities, and planning questions. The assigned agent is left alone.
func Delete(db *gorm.DB, id string) error {
	if _, err := Get(db, id); err != nil {
		return err
	}
	if err := db.Where("task_id = ?", id).Delete(&models.SessionCorrelation{}).Error; err != nil {
		return fmt.Errorf("task: delete sessions for %s: %w", id, err)
	}
	if err := db.Where("task_id = ?", id).Delete(&models.Event{}).Error; err != nil {
		return fmt.Errorf("task: delete events for %s: %w", id, err)
	}
	if err := db.Where("task_id = ?", id).Delete(&models.TaskActivity{}).Error; err != nil {
		return fmt.Errorf("task: delete activities for %s: %w", id, err)
	}
	if err := db.Where("task_id = ?", id).Delete(&models.PlanningQuestion{}).Error; err != nil {
		return fmt.Errorf("task: delete questions for %s: %w", id, err)
	}
	if err := db.Where("id = ?", id).Delete(&models.Task{}).Error; err != nil {
		return fmt.Errorf("task: delete %s: %w", id, err)
	}
	return nil
}
