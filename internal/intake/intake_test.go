package intake

import (
	"testing"

	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"github.com/alex-devdone/mission-control-sub000/internal/notify"
	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB creates an in-memory SQLite database with the required tables.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Agent{},
		&models.Task{},
		&models.SessionCorrelation{},
		&models.Event{},
		&models.TaskActivity{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testNotifier() *notify.Notifier {
	return notify.NewNotifier(notify.NewBroker())
}

func TestParseSentinel(t *testing.T) {
	tests := []struct {
		name        string
		message     string
		wantSummary string
		wantOK      bool
	}{
		{"plain", "TASK_COMPLETE: shipped the cart", "shipped the cart", true},
		{"leading whitespace", "  TASK_COMPLETE: done", "done", true},
		{"empty summary", "TASK_COMPLETE:", "", true},
		{"missing prefix", "I finished the task", "", false},
		{"prefix mid-text", "note TASK_COMPLETE: x", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, ok := ParseSentinel(tt.message)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if summary != tt.wantSummary {
				t.Errorf("summary = %q, want %q", summary, tt.wantSummary)
			}
		})
	}
}

func TestCompleteByTask(t *testing.T) {
	db := testDB(t)
	a := &models.Agent{ID: "a1", Name: "Atlas", Status: models.AgentStatusWorking}
	db.Create(a)
	tk := &models.Task{ID: "t1", Title: "work", Status: models.TaskStatusInProgress, AssignedAgentID: &a.ID}
	db.Create(tk)

	done, err := CompleteByTask(db, testNotifier(), tk.ID, "it works")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.Status != models.TaskStatusTesting {
		t.Errorf("status = %q, want testing", done.Status)
	}

	var evt models.Event
	result := db.Where("type = ?", models.EventTaskCompletedSignal).Limit(1).Find(&evt)
	if result.RowsAffected == 0 {
		t.Error("expected task_completed_signal event")
	}

	var act models.TaskActivity
	result = db.Where("task_id = ? AND activity_type = ?", tk.ID, "completion").Limit(1).Find(&act)
	if result.RowsAffected == 0 {
		t.Error("expected completion activity")
	}
	if act.Message != "it works" {
		t.Errorf("activity message = %q", act.Message)
	}

	// The finishing agent goes back to standby (its only task is excluded).
	var fresh models.Agent
	db.First(&fresh, "id = ?", a.ID)
	if fresh.Status != models.AgentStatusStandby {
		t.Errorf("agent status = %q, want standby", fresh.Status)
	}
}

func TestCompleteByTask_Unknown(t *testing.T) {
	db := testDB(t)
	_, err := CompleteByTask(db, testNotifier(), "missing", "x")
	if !orcerr.Is(err, orcerr.KindNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestCompleteBySession_BadSentinel(t *testing.T) {
	db := testDB(t)
	_, err := CompleteBySession(db, testNotifier(), "sess-1", "I'm done now")
	if !orcerr.Is(err, orcerr.KindInvalidRequest) {
		t.Errorf("error = %v, want invalid request", err)
	}
}

func TestCompleteBySession_UnknownSession(t *testing.T) {
	db := testDB(t)
	_, err := CompleteBySession(db, testNotifier(), "ghost", "TASK_COMPLETE: done")
	if !orcerr.Is(err, orcerr.KindNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestCompleteBySession_BoundTask(t *testing.T) {
	db := testDB(t)
	a := &models.Agent{ID: "a1", Name: "Atlas", Status: models.AgentStatusWorking}
	db.Create(a)
	tk := &models.Task{ID: "t1", Title: "work", Status: models.TaskStatusInProgress, AssignedAgentID: &a.ID}
	db.Create(tk)
	db.Create(&models.SessionCorrelation{
		AgentID: a.ID, TaskID: &tk.ID, OpenclawSessionID: "atlas-main",
		Status: models.SessionStatusActive, SessionType: models.SessionTypePersistent,
	})

	done, err := CompleteBySession(db, testNotifier(), "atlas-main", "TASK_COMPLETE: shipped")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.ID != tk.ID {
		t.Errorf("completed task = %q, want %q", done.ID, tk.ID)
	}
	if done.Status != models.TaskStatusTesting {
		t.Errorf("status = %q, want testing", done.Status)
	}
}

func TestCompleteBySession_FallsBackToInFlightTask(t *testing.T) {
	db := testDB(t)
	a := &models.Agent{ID: "a1", Name: "Atlas", Status: models.AgentStatusWorking}
	db.Create(a)
	// Session bound to a task that already reached review: fall back to
	// the agent's in-flight work.
	doneTask := &models.Task{ID: "t-old", Title: "old", Status: models.TaskStatusReview, AssignedAgentID: &a.ID}
	db.Create(doneTask)
	current := &models.Task{ID: "t-new", Title: "current", Status: models.TaskStatusInProgress, AssignedAgentID: &a.ID}
	db.Create(current)
	db.Create(&models.SessionCorrelation{
		AgentID: a.ID, TaskID: &doneTask.ID, OpenclawSessionID: "atlas-main",
		Status: models.SessionStatusActive, SessionType: models.SessionTypePersistent,
	})

	done, err := CompleteBySession(db, testNotifier(), "atlas-main", "TASK_COMPLETE: next one done")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.ID != current.ID {
		t.Errorf("completed task = %q, want %q", done.ID, current.ID)
	}
}

func TestCompleteBySession_NoInFlightTask(t *testing.T) {
	db := testDB(t)
	a := &models.Agent{ID: "a1", Name: "Atlas"}
	db.Create(a)
	db.Create(&models.SessionCorrelation{
		AgentID: a.ID, OpenclawSessionID: "atlas-main",
		Status: models.SessionStatusActive, SessionType: models.SessionTypePersistent,
	})

	_, err := CompleteBySession(db, testNotifier(), "atlas-main", "TASK_COMPLETE: huh")
	if !orcerr.Is(err, orcerr.KindNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}
