package models

import "time"

// Workspace groups agents, tasks, and apps. By convention exactly one agent
// per workspace carries is_master and approves review → done transitions.
type Workspace struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// App is a project a task may be linked to. Path, port, and spec file are
// surfaced in dispatch briefings; Progress is the percentage of the app's
// tasks that have reached done.
type App struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string    `gorm:"size:36;index" json:"workspace_id"`
	Name        string    `gorm:"not null" json:"name"`
	Path        string    `gorm:"size:256" json:"path"`
	Port        int       `json:"port"`
	SpecFile    string    `gorm:"size:256" json:"spec_file"`
	Progress    int       `gorm:"default:0" json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
