package db

import (
	"fmt"

	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&models.Workspace{},
		&models.App{},
		&models.Agent{},
		&models.Task{},
		&models.SessionCorrelation{},
		&models.Event{},
		&models.TaskActivity{},
		&models.PlanningQuestion{},
	}
}

// AutoMigrate creates or updates all entity store tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
