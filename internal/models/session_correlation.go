package models

import "time"

// Session correlation statuses and types.
const (
	SessionStatusActive   = "active"
	SessionStatusInactive = "inactive"

	SessionTypePersistent = "persistent"
	SessionTypeSubagent   = "subagent"
)

// SessionCorrelation binds an internal Agent (and optionally a Task) to a
// session handle inside the OpenClaw runtime. At most one active record
// exists per agent for persistent sessions; the correlator enforces this.
type SessionCorrelation struct {
	ID                uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	AgentID           string  `gorm:"size:36;not null;index" json:"agent_id"`
	TaskID            *string `gorm:"size:36;index" json:"task_id"`
	OpenclawSessionID string  `gorm:"size:128;not null" json:"openclaw_session_id"`
	Status            string  `gorm:"size:16;default:active;index" json:"status"`
	Channel           string  `gorm:"size:64" json:"channel"`
	SessionType       string  `gorm:"size:16;default:persistent" json:"session_type"`
	CreatedAt         time.Time  `json:"created_at"`
	DeactivatedAt     *time.Time `json:"deactivated_at"`

	Agent Agent `gorm:"foreignKey:AgentID" json:"-"`
}
