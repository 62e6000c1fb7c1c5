// Package session maps internal agents to session handles inside the
// OpenClaw runtime.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
	"gorm.io/gorm"
)

// RoutingKey builds the wire-format key the runtime expects for a
// correlated session. The format is fixed for compatibility; do not change.
func RoutingKey(openclawAgentID, openclawSessionID string) string {
	return fmt.Sprintf("agent:%s:%s", openclawAgentID, openclawSessionID)
}

// PlanningKey builds the dedicated session key for a task's planning
// conversation. Fixed wire format, as with RoutingKey.
func PlanningKey(taskID string) string {
	return fmt.Sprintf("agent:devops:planning:%s", taskID)
}

// SessionName derives the deterministic runtime session name for an agent.
func SessionName(agentName string) string {
	slug := strings.ToLower(strings.TrimSpace(agentName))
	slug = strings.Join(strings.Fields(slug), "-")
	return slug + "-main"
}

// Active returns the agent's active persistent correlation, or nil when
// none exists.
func Active(db *gorm.DB, agentID string) (*models.SessionCorrelation, error) {
	if agentID == "" {
		return nil, fmt.Errorf("session: agentID is required")
	}
	var sc models.SessionCorrelation
	result := db.Where("agent_id = ? AND status = ? AND session_type = ?",
		agentID, models.SessionStatusActive, models.SessionTypePersistent).
		Limit(1).Find(&sc)
	if result.Error != nil {
		return nil, fmt.Errorf("session: active for %s: %w", agentID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &sc, nil
}

// EnsureActive finds the agent's active persistent correlation or creates
// one with a deterministic session name. It never leaves two simultaneous
// active persistent records for the same agent. The created flag tells the
// caller whether to log a session-created event.
func EnsureActive(db *gorm.DB, a *models.Agent, taskID string) (sc *models.SessionCorrelation, created bool, err error) {
	if a == nil {
		return nil, false, fmt.Errorf("session: agent is required")
	}
	existing, err := Active(db, a.ID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	rec := models.SessionCorrelation{
		AgentID:           a.ID,
		OpenclawSessionID: SessionName(a.Name),
		Status:            models.SessionStatusActive,
		Channel:           "openclaw",
		SessionType:       models.SessionTypePersistent,
		CreatedAt:         time.Now(),
	}
	if taskID != "" {
		rec.TaskID = &taskID
	}
	if err := db.Create(&rec).Error; err != nil {
		return nil, false, fmt.Errorf("session: create for %s: %w", a.ID, err)
	}
	return &rec, true, nil
}

// CreateSubagent records a subagent correlation. Unlike persistent
// sessions, several subagent records may coexist per agent, but a runtime
// session id can back at most one active correlation.
func CreateSubagent(db *gorm.DB, agentID, taskID, openclawSessionID string) (*models.SessionCorrelation, error) {
	if agentID == "" || openclawSessionID == "" {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "session: agentID and session id are required")
	}
	var active int64
	if err := db.Model(&models.SessionCorrelation{}).
		Where("openclaw_session_id = ? AND status = ?", openclawSessionID, models.SessionStatusActive).
		Count(&active).Error; err != nil {
		return nil, fmt.Errorf("session: check %s: %w", openclawSessionID, err)
	}
	if active > 0 {
		return nil, orcerr.New(orcerr.KindConflict, "session: %s is already active", openclawSessionID)
	}
	rec := models.SessionCorrelation{
		AgentID:           agentID,
		OpenclawSessionID: openclawSessionID,
		Status:            models.SessionStatusActive,
		Channel:           "openclaw",
		SessionType:       models.SessionTypeSubagent,
		CreatedAt:         time.Now(),
	}
	if taskID != "" {
		rec.TaskID = &taskID
	}
	if err := db.Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("session: create subagent for %s: %w", agentID, err)
	}
	return &rec, nil
}

// Deactivate tears down an agent's active correlations.
func Deactivate(db *gorm.DB, agentID string) error {
	if agentID == "" {
		return fmt.Errorf("session: agentID is required")
	}
	now := time.Now()
	if err := db.Model(&models.SessionCorrelation{}).
		Where("agent_id = ? AND status = ?", agentID, models.SessionStatusActive).
		Updates(map[string]interface{}{
			"status":         models.SessionStatusInactive,
			"deactivated_at": &now,
		}).Error; err != nil {
		return fmt.Errorf("session: deactivate for %s: %w", agentID, err)
	}
	return nil
}

// BySessionID resolves a correlation by its runtime session identifier.
// Used by the completion webhook to map a session back to its agent.
func BySessionID(db *gorm.DB, openclawSessionID string) (*models.SessionCorrelation, error) {
	if openclawSessionID == "" {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "session: session id is required")
	}
	var sc models.SessionCorrelation
	result := db.Where("openclaw_session_id = ? AND status = ?",
		openclawSessionID, models.SessionStatusActive).
		Limit(1).Find(&sc)
	if result.Error != nil {
		return nil, fmt.Errorf("session: lookup %s: %w", openclawSessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, orcerr.New(orcerr.KindNotFound, "session: no active correlation for %s", openclawSessionID)
	}
	return &sc, nil
}
