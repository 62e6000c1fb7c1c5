// Package event provides the append-only audit log.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"gorm.io/gorm"
)

// Opts holds optional parameters for recording an event.
type Opts struct {
	AgentID  string
	TaskID   string
	Metadata map[string]interface{}
}

// Record appends an event to the audit log. Metadata is marshalled to JSON;
// rows are never mutated after creation.
func Record(db *gorm.DB, eventType, message string, opts Opts) (*models.Event, error) {
	if eventType == "" {
		return nil, fmt.Errorf("event: type is required")
	}

	meta := "{}"
	if len(opts.Metadata) > 0 {
		data, err := json.Marshal(opts.Metadata)
		if err != nil {
			return nil, fmt.Errorf("event: marshal metadata: %w", err)
		}
		meta = string(data)
	}

	evt := models.Event{
		Type:      eventType,
		Message:   message,
		Metadata:  meta,
		CreatedAt: time.Now(),
	}
	if opts.AgentID != "" {
		evt.AgentID = &opts.AgentID
	}
	if opts.TaskID != "" {
		evt.TaskID = &opts.TaskID
	}

	if err := db.Create(&evt).Error; err != nil {
		return nil, fmt.Errorf("event: record %s: %w", eventType, err)
	}
	return &evt, nil
}

// Feed returns the most recent events, newest first.
func Feed(db *gorm.DB, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.Event
	if err := db.Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("event: feed: %w", err)
	}
	return events, nil
}

// ForTask returns all events for a task, oldest first.
func ForTask(db *gorm.DB, taskID string) ([]models.Event, error) {
	if taskID == "" {
		return nil, fmt.Errorf("event: taskID is required")
	}
	var events []models.Event
	if err := db.Where("task_id = ?", taskID).Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("event: for task %s: %w", taskID, err)
	}
	return events, nil
}
