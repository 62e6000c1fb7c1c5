package models

import "time"

// Task statuses. Lifecycle: planning → inbox → assigned → in_progress →
// testing → review → done, with backlog reachable from reassignment.
const (
	TaskStatusPlanning   = "planning"
	TaskStatusInbox      = "inbox"
	TaskStatusBacklog    = "backlog"
	TaskStatusAssigned   = "assigned"
	TaskStatusInProgress = "in_progress"
	TaskStatusTesting    = "testing"
	TaskStatusReview     = "review"
	TaskStatusDone       = "done"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Task is the core unit of work in Mission Control.
type Task struct {
	ID               string  `gorm:"primaryKey;size:36" json:"id"`
	Title            string  `gorm:"not null" json:"title"`
	Description      string  `gorm:"type:text" json:"description"`
	Status           string  `gorm:"size:16;default:inbox;index" json:"status"`
	Priority         string  `gorm:"size:8;default:normal" json:"priority"`
	AssignedAgentID  *string `gorm:"size:36;index" json:"assigned_agent_id"`
	CreatedByAgentID *string `gorm:"size:36" json:"created_by_agent_id"`
	WorkspaceID      string  `gorm:"size:36;index" json:"workspace_id"`
	AppID            *string `gorm:"size:36;index" json:"app_id"`
	DueDate          *time.Time `json:"due_date"`

	// Planning sub-record. The session key is set exactly once when a
	// planning conversation starts and never reassigned. The transcript,
	// locked spec, and proposed agent roster are stored as JSON text.
	PlanningSessionKey *string `gorm:"size:128" json:"planning_session_key"`
	PlanningMessages   string  `gorm:"type:json" json:"planning_messages"`
	PlanningComplete   bool    `gorm:"default:false" json:"planning_complete"`
	PlanningSpec       string  `gorm:"type:json" json:"planning_spec"`
	PlanningAgents     string  `gorm:"type:json" json:"planning_agents"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AssignedAgent *Agent         `gorm:"foreignKey:AssignedAgentID" json:"assigned_agent,omitempty"`
	App           *App           `gorm:"foreignKey:AppID" json:"app,omitempty"`
	Activities    []TaskActivity `gorm:"foreignKey:TaskID" json:"-"`
}

// ActiveTaskStatuses are statuses that count as live work for an agent.
// A task in done, review, or backlog no longer occupies its agent.
var ActiveTaskStatuses = []string{
	TaskStatusPlanning, TaskStatusInbox, TaskStatusAssigned,
	TaskStatusInProgress, TaskStatusTesting,
}

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusPlanning, TaskStatusInbox, TaskStatusBacklog,
		TaskStatusAssigned, TaskStatusInProgress, TaskStatusTesting,
		TaskStatusReview, TaskStatusDone:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known task priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
