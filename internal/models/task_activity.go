package models

import "time"

// TaskActivity is a task-scoped log entry used for human-facing progress
// narration, distinct from the Event audit trail. Metadata may carry
// model/tokens_in/tokens_out for LLM cost attribution.
type TaskActivity struct {
	ID           uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID       string  `gorm:"size:36;not null;index" json:"task_id"`
	AgentID      *string `gorm:"size:36;index" json:"agent_id"`
	ActivityType string  `gorm:"size:32;not null" json:"activity_type"`
	Message      string  `gorm:"type:text" json:"message"`
	Metadata     string  `gorm:"type:json" json:"metadata"`
	CreatedAt    time.Time `json:"created_at"`
}

// Planning question categories for the approval path.
var PlanningCategories = []string{
	"goal", "audience", "scope", "design",
	"content", "technical", "timeline", "constraints",
}

// PlanningQuestion is one entry in the fixed question battery a human
// answers on the planning approval path. Approval is blocked while any
// question for the task remains unanswered.
type PlanningQuestion struct {
	ID         uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID     string  `gorm:"size:36;not null;index" json:"task_id"`
	Category   string  `gorm:"size:16;not null" json:"category"`
	Question   string  `gorm:"type:text;not null" json:"question"`
	Answer     *string `gorm:"type:text" json:"answer"`
	AnsweredAt *time.Time `json:"answered_at"`
	CreatedAt  time.Time  `json:"created_at"`
}
