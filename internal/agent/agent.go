// Package agent manages the worker roster.
package agent

import (
	"fmt"
	"log"

	"github.com/alex-devdone/mission-control-sub000/internal/event"
	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"github.com/alex-devdone/mission-control-sub000/internal/notify"
	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating an agent.
type CreateOpts struct {
	Name            string
	Role            string
	WorkspaceID     string
	OpenclawAgentID string
	Model           string
	IsMaster        bool
	Avatar          string
	Personality     string
	Instructions    string
}

// Create persists a new agent in standby with full capacity.
func Create(db *gorm.DB, opts CreateOpts) (*models.Agent, error) {
	if opts.Name == "" {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "agent: name is required")
	}
	a := models.Agent{
		ID:              uuid.NewString(),
		Name:            opts.Name,
		Role:            opts.Role,
		Status:          models.AgentStatusStandby,
		IsMaster:        opts.IsMaster,
		OpenclawAgentID: opts.OpenclawAgentID,
		Model:           opts.Model,
		WorkspaceID:     opts.WorkspaceID,
		Avatar:          opts.Avatar,
		Personality:     opts.Personality,
		Instructions:    opts.Instructions,
		Limit5h:         100,
		LimitWeek:       100,
	}
	if err := db.Create(&a).Error; err != nil {
		return nil, fmt.Errorf("agent: create: %w", err)
	}
	return &a, nil
}

// Get returns an agent by id.
func Get(db *gorm.DB, id string) (*models.Agent, error) {
	if id == "" {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "agent: id is required")
	}
	var a models.Agent
	result := db.Where("id = ?", id).Limit(1).Find(&a)
	if result.Error != nil {
		return nil, fmt.Errorf("agent: get %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, orcerr.New(orcerr.KindNotFound, "agent: not found: %s", id)
	}
	return &a, nil
}

// List returns agents, optionally filtered by workspace.
func List(db *gorm.DB, workspaceID string) ([]models.Agent, error) {
	q := db.Model(&models.Agent{})
	if workspaceID != "" {
		q = q.Where("workspace_id = ?", workspaceID)
	}
	var agents []models.Agent
	if err := q.Order("created_at ASC").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("agent: list: %w", err)
	}
	return agents, nil
}

// UpdateOpts holds a partial agent update. Nil fields are left unchanged.
type UpdateOpts struct {
	Name            *string
	Role            *string
	Status          *string
	Model           *string
	OpenclawAgentID *string
	Instructions    *string
}

// Update applies a partial update to an agent.
func Update(db *gorm.DB, n *notify.Notifier, id string, opts UpdateOpts) (*models.Agent, error) {
	a, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if opts.Name != nil {
		a.Name = *opts.Name
	}
	if opts.Role != nil {
		a.Role = *opts.Role
	}
	if opts.Status != nil {
		if !models.ValidAgentStatus(*opts.Status) {
			return nil, orcerr.New(orcerr.KindInvalidRequest, "agent: invalid status %q", *opts.Status)
		}
		a.Status = *opts.Status
	}
	if opts.Model != nil {
		a.Model = *opts.Model
	}
	if opts.OpenclawAgentID != nil {
		a.OpenclawAgentID = *opts.OpenclawAgentID
	}
	if opts.Instructions != nil {
		a.Instructions = *opts.Instructions
	}
	if err := db.Save(a).Error; err != nil {
		return nil, fmt.Errorf("agent: update %s: %w", id, err)
	}
	n.AgentUpdated(a)
	return a, nil
}

// Delete removes an agent, unassigning its open tasks and deactivating its
// correlated sessions first.
func Delete(db *gorm.DB, id string) error {
	if _, err := Get(db, id); err != nil {
		return err
	}
	if err := db.Model(&models.Task{}).Where("assigned_agent_id = ?", id).
		Update("assigned_agent_id", nil).Error; err != nil {
		return fmt.Errorf("agent: unassign tasks of %s: %w", id, err)
	}
	if err := db.Model(&models.SessionCorrelation{}).
		Where("agent_id = ? AND status = ?", id, models.SessionStatusActive).
		Update("status", models.SessionStatusInactive).Error; err != nil {
		return fmt.Errorf("agent: deactivate sessions of %s: %w", id, err)
	}
	if err := db.Where("id = ?", id).Delete(&models.Agent{}).Error; err != nil {
		return fmt.Errorf("agent: delete %s: %w", id, err)
	}
	return nil
}

// ReleaseIfIdle sets an agent to standby when it has no active task left.
// Active means any status outside done, review, and backlog; excludeTaskID
// is the task whose transition triggered the check. This is the single
// authority for the working-means-active-task convention; dispatch,
// completion intake, and the capacity monitor all route through it.
func ReleaseIfIdle(db *gorm.DB, n *notify.Notifier, agentID, excludeTaskID string) error {
	if agentID == "" {
		return fmt.Errorf("agent: agentID is required")
	}
	var active int64
	q := db.Model(&models.Task{}).
		Where("assigned_agent_id = ? AND status NOT IN ?", agentID,
			[]string{models.TaskStatusDone, models.TaskStatusReview, models.TaskStatusBacklog})
	if excludeTaskID != "" {
		q = q.Where("id != ?", excludeTaskID)
	}
	if err := q.Count(&active).Error; err != nil {
		return fmt.Errorf("agent: count active tasks for %s: %w", agentID, err)
	}
	if active > 0 {
		return nil
	}

	a, err := Get(db, agentID)
	if err != nil {
		return err
	}
	if a.Status == models.AgentStatusStandby {
		return nil
	}
	a.Status = models.AgentStatusStandby
	if err := db.Save(a).Error; err != nil {
		return fmt.Errorf("agent: set %s standby: %w", agentID, err)
	}
	if _, err := event.Record(db, models.EventAgentUpdated,
		fmt.Sprintf("Agent %s returned to standby", a.Name),
		event.Opts{AgentID: a.ID}); err != nil {
		log.Printf("agent: record standby event: %v", err)
	}
	n.AgentUpdated(a)
	return nil
}
