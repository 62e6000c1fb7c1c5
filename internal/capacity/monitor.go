// Package capacity polls the external limits service and evacuates work
// from depleted agents before the underlying provider throttles them.
package capacity

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/alex-devdone/mission-control-sub000/internal/event"
	"github.com/alex-devdone/mission-control-sub000/internal/limits"
	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"github.com/alex-devdone/mission-control-sub000/internal/notify"
	"gorm.io/gorm"
)

const (
	// depletionFloor is the 5h-window percentage below which an agent is
	// considered depleted regardless of reported status.
	depletionFloor = 10
	// deltaThreshold is the minimum 5h-limit movement, in percentage
	// points, that warrants a capacity-change event.
	deltaThreshold = 5
)

// Monitor runs the capacity sweep.
type Monitor struct {
	db       *gorm.DB
	limits   limits.Client
	notifier *notify.Notifier
}

// NewMonitor creates a Monitor.
func NewMonitor(db *gorm.DB, lc limits.Client, n *notify.Notifier) (*Monitor, error) {
	if db == nil {
		return nil, fmt.Errorf("capacity: db is required")
	}
	if lc == nil {
		return nil, fmt.Errorf("capacity: limits client is required")
	}
	return &Monitor{db: db, limits: lc, notifier: n}, nil
}

// SweepResult summarizes one capacity sweep.
type SweepResult struct {
	Polled    int
	Depleted  int
	Evacuated int
	Skipped   int
}

// Sweep fetches capacity for every agent with an OpenClaw correlation id,
// persists the refreshed figures, and evacuates work from depleted agents.
// A limits-service failure for one agent skips that agent without mutating
// any state.
func (m *Monitor) Sweep(ctx context.Context, out io.Writer) (SweepResult, error) {
	if out == nil {
		out = io.Discard
	}
	var res SweepResult

	var agents []models.Agent
	if err := m.db.Where("openclaw_agent_id != ''").Find(&agents).Error; err != nil {
		return res, fmt.Errorf("capacity: list agents: %w", err)
	}

	for i := range agents {
		a := &agents[i]
		snap, err := m.limits.Fetch(ctx, a.OpenclawAgentID)
		if err != nil {
			log.Printf("capacity: fetch limits for %s: %v", a.OpenclawAgentID, err)
			res.Skipped++
			continue
		}
		res.Polled++

		prev5h := a.Limit5h
		effective5h := prev5h
		if snap.Limit5h != nil {
			effective5h = *snap.Limit5h
		}

		depleted := snap.Status == limits.StatusCritical || effective5h < depletionFloor
		if depleted {
			res.Depleted++
			evacuated, err := m.evacuate(a, snap.Status, effective5h)
			if err != nil {
				log.Printf("capacity: evacuate %s: %v", a.ID, err)
			} else {
				res.Evacuated += evacuated
				if evacuated > 0 || a.Status != models.AgentStatusStandby {
					fmt.Fprintf(out, "Agent %s depleted (status=%s, 5h=%d%%): %d task(s) evacuated\n",
						a.Name, snap.Status, effective5h, evacuated)
				}
				title, body := notify.DepletionNotice(a, effective5h, evacuated)
				m.notifier.Urgent(title, body)
			}
			a.Status = models.AgentStatusStandby
		}

		// Persist refreshed figures regardless of depletion.
		now := time.Now()
		a.Limit5h = effective5h
		if snap.LimitWeek != nil {
			a.LimitWeek = *snap.LimitWeek
		}
		if snap.Model != "" {
			a.Model = snap.Model
		}
		if snap.ProviderAccountID != "" {
			a.ProviderAccountID = snap.ProviderAccountID
		}
		a.LastPollAt = &now
		if err := m.db.Save(a).Error; err != nil {
			log.Printf("capacity: save agent %s: %v", a.ID, err)
			continue
		}
		m.notifier.AgentUpdated(a)

		// Movement beyond the threshold gets an audit event tagged with
		// direction.
		if diff := effective5h - prev5h; diff > deltaThreshold || diff < -deltaThreshold {
			direction := "recovered"
			if diff < 0 {
				direction = "dropped"
			}
			if _, err := event.Record(m.db, models.EventAgentCapacityChanged,
				fmt.Sprintf("Agent %s capacity %s: %d%% → %d%%", a.Name, direction, prev5h, effective5h),
				event.Opts{AgentID: a.ID, Metadata: map[string]interface{}{
					"direction": direction,
					"limit_5h":  effective5h,
					"previous":  prev5h,
				}}); err != nil {
				log.Printf("capacity: record capacity event: %v", err)
			}
		}
	}

	return res, nil
}

// evacuate clears the depleted agent's assignments. Tasks already in done
// or review are never touched; in_progress and testing demote to inbox,
// anything else keeps its status.
func (m *Monitor) evacuate(a *models.Agent, reportedStatus string, limit5h int) (int, error) {
	var tasks []models.Task
	if err := m.db.Where("assigned_agent_id = ? AND status NOT IN ?", a.ID,
		[]string{models.TaskStatusDone, models.TaskStatusReview}).
		Find(&tasks).Error; err != nil {
		return 0, fmt.Errorf("list assigned tasks: %w", err)
	}

	for i := range tasks {
		t := &tasks[i]
		oldStatus := t.Status
		t.AssignedAgentID = nil
		if oldStatus == models.TaskStatusInProgress || oldStatus == models.TaskStatusTesting {
			t.Status = models.TaskStatusInbox
		}
		if err := m.db.Save(t).Error; err != nil {
			return i, fmt.Errorf("save task %s: %w", t.ID, err)
		}

		if _, err := event.Record(m.db, models.EventTaskStatusChanged,
			fmt.Sprintf("Task %q returned to %s: agent %s depleted", t.Title, t.Status, a.Name),
			event.Opts{TaskID: t.ID, AgentID: a.ID, Metadata: map[string]interface{}{
				"reason":          "limit_depleted",
				"reported_status": reportedStatus,
				"limit_5h":        limit5h,
				"from":            oldStatus,
				"to":              t.Status,
			}}); err != nil {
			log.Printf("capacity: record evacuation event: %v", err)
		}
		m.notifier.TaskUpdated(t)
	}
	return len(tasks), nil
}
