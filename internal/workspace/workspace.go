// Package workspace manages workspaces and their linked apps.
package workspace

import (
	"fmt"

	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Create persists a new workspace.
func Create(db *gorm.DB, name string) (*models.Workspace, error) {
	if name == "" {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "workspace: name is required")
	}
	w := models.Workspace{ID: uuid.NewString(), Name: name}
	if err := db.Create(&w).Error; err != nil {
		return nil, fmt.Errorf("workspace: create: %w", err)
	}
	return &w, nil
}

// List returns all workspaces.
func List(db *gorm.DB) ([]models.Workspace, error) {
	var ws []models.Workspace
	if err := db.Order("created_at ASC").Find(&ws).Error; err != nil {
		return nil, fmt.Errorf("workspace: list: %w", err)
	}
	return ws, nil
}

// AppOpts holds parameters for creating an app.
type AppOpts struct {
	WorkspaceID string
	Name        string
	Path        string
	Port        int
	SpecFile    string
}

// CreateApp persists a new app.
func CreateApp(db *gorm.DB, opts AppOpts) (*models.App, error) {
	if opts.Name == "" {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "workspace: app name is required")
	}
	a := models.App{
		ID:          uuid.NewString(),
		WorkspaceID: opts.WorkspaceID,
		Name:        opts.Name,
		Path:        opts.Path,
		Port:        opts.Port,
		SpecFile:    opts.SpecFile,
	}
	if err := db.Create(&a).Error; err != nil {
		return nil, fmt.Errorf("workspace: create app: %w", err)
	}
	return &a, nil
}

// ListApps returns apps, optionally filtered by workspace.
func ListApps(db *gorm.DB, workspaceID string) ([]models.App, error) {
	q := db.Model(&models.App{})
	if workspaceID != "" {
		q = q.Where("workspace_id = ?", workspaceID)
	}
	var apps []models.App
	if err := q.Order("created_at ASC").Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("workspace: list apps: %w", err)
	}
	return apps, nil
}

// GetApp returns an app by id.
func GetApp(db *gorm.DB, id string) (*models.App, error) {
	if id == "" {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "workspace: app id is required")
	}
	var a models.App
	result := db.Where("id = ?", id).Limit(1).Find(&a)
	if result.Error != nil {
		return nil, fmt.Errorf("workspace: get app %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, orcerr.New(orcerr.KindNotFound, "workspace: app not found: %s", id)
	}
	return &a, nil
}
