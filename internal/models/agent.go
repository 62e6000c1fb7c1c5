package models

import "time"

// Agent statuses.
const (
	AgentStatusStandby = "standby"
	AgentStatusWorking = "working"
	AgentStatusOffline = "offline"
)

// Agent represents a worker identity correlated to a session in the
// OpenClaw runtime. The OpenclawAgentID is the correlation key into that
// runtime and is distinct from the internal ID.
type Agent struct {
	ID                string `gorm:"primaryKey;size:36" json:"id"`
	Name              string `gorm:"not null" json:"name"`
	Role              string `gorm:"size:64" json:"role"`
	Status            string `gorm:"size:16;default:standby;index" json:"status"`
	IsMaster          bool   `gorm:"default:false" json:"is_master"`
	OpenclawAgentID   string `gorm:"size:64;index" json:"openclaw_agent_id"`
	Model             string `gorm:"size:64" json:"model"`
	ProviderAccountID string `gorm:"size:64" json:"provider_account_id"`
	WorkspaceID       string `gorm:"size:36;index" json:"workspace_id"`
	Avatar            string `gorm:"size:128" json:"avatar"`
	Personality       string `gorm:"type:text" json:"personality"`
	Instructions      string `gorm:"type:text" json:"instructions"`

	// Remaining capacity percentages reported by the limits service:
	// a 5-hour rolling window and a weekly window, 0-100.
	Limit5h    int        `gorm:"default:100" json:"limit_5h"`
	LimitWeek  int        `gorm:"default:100" json:"limit_week"`
	LastPollAt *time.Time `json:"last_poll_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidAgentStatus reports whether s is a known agent status.
func ValidAgentStatus(s string) bool {
	switch s {
	case AgentStatusStandby, AgentStatusWorking, AgentStatusOffline:
		return true
	}
	return false
}
