package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
	"gorm.io/gorm"
)

// ActivityOpts holds optional parameters for logging a task activity.
type ActivityOpts struct {
	AgentID  string
	Metadata map[string]interface{} // may carry model, tokens_in, tokens_out
}

// LogActivity appends a human-facing progress entry to a task.
func LogActivity(db *gorm.DB, taskID, activityType, message string, opts ActivityOpts) (*models.TaskActivity, error) {
	if taskID == "" {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "task: taskID is required")
	}
	if activityType == "" {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "task: activity type is required")
	}
	if _, err := Get(db, taskID); err != nil {
		return nil, err
	}

	meta := "{}"
	if len(opts.Metadata) > 0 {
		data, err := json.Marshal(opts.Metadata)
		if err != nil {
			return nil, fmt.Errorf("task: marshal activity metadata: %w", err)
		}
		meta = string(data)
	}

	act := models.TaskActivity{
		TaskID:       taskID,
		ActivityType: activityType,
		Message:      message,
		Metadata:     meta,
		CreatedAt:    time.Now(),
	}
	if opts.AgentID != "" {
		act.AgentID = &opts.AgentID
	}
	if err := db.Create(&act).Error; err != nil {
		return nil, fmt.Errorf("task: log activity: %w", err)
	}
	return &act, nil
}

// Activities returns a task's activity log, oldest first.
func Activities(db *gorm.DB, taskID string) ([]models.TaskActivity, error) {
	if taskID == "" {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "task: taskID is required")
	}
	var acts []models.TaskActivity
	if err := db.Where("task_id = ?", taskID).Order("id ASC").Find(&acts).Error; err != nil {
		return nil, fmt.Errorf("task: activities for %s: %w", taskID, err)
	}
	return acts, nil
}
