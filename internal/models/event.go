package models

import "time"

// Event types emitted by the orchestration core.
const (
	EventTaskStatusChanged    = "task_status_changed"
	EventTaskAssigned         = "task_assigned"
	EventTaskDispatched       = "task_dispatched"
	EventTaskCompleted        = "task_completed"
	EventTaskCompletedSignal  = "task_completed_signal"
	EventAgentUpdated         = "agent_updated"
	EventAgentCapacityChanged = "agent_capacity_changed"
	EventSessionCreated       = "session_created"
	EventPlanningStarted      = "planning_started"
	EventPlanningCompleted    = "planning_completed"
)

// Event is an append-only audit entry. Rows are write-once, read-many; they
// feed the notifier fan-out and the dashboard feed and are never mutated.
type Event struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Type      string  `gorm:"size:48;not null;index" json:"type"`
	AgentID   *string `gorm:"size:36;index" json:"agent_id"`
	TaskID    *string `gorm:"size:36;index" json:"task_id"`
	Message   string  `gorm:"type:text" json:"message"`
	Metadata  string  `gorm:"type:json" json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}
