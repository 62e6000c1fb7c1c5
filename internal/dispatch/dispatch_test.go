package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"github.com/alex-devdone/mission-control-sub000/internal/notify"
	"github.com/alex-devdone/mission-control-sub000/internal/openclaw"
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
		&models.App{},
		&models.Agent{},
		&models.Task{},
		&models.SessionCorrelation{},
		&models.Event{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// mockClient is a test double for the OpenClaw gateway.
type mockClient struct {
	calls []call
	err   error
}

type call struct {
	method string
	params map[string]interface{}
}

func (m *mockClient) Call(ctx context.Context, method string, params map[string]interface{}) (json.RawMessage, error) {
	m.calls = append(m.calls, call{method: method, params: params})
	if m.err != nil {
		return nil, m.err
	}
	return json.RawMessage(`{}`), nil
}

func (m *mockClient) ListSessions(ctx context.Context) ([]openclaw.Session, error) {
	return nil, nil
}

func testNotifier() *notify.Notifier {
	return notify.NewNotifier(notify.NewBroker())
}

func seedTask(t *testing.T, db *gorm.DB, assigned bool) (*models.Task, *models.Agent) {
	t.Helper()
	a := &models.Agent{ID: "a1", Name: "Atlas", OpenclawAgentID: "oc-atlas", Status: models.AgentStatusStandby}
	if err := db.Create(a).Error; err != nil {
		t.Fatal(err)
	}
	tk := &models.Task{ID: "t1", Title: "Build it", Status: models.TaskStatusAssigned, Priority: models.PriorityNormal}
	if assigned {
		tk.AssignedAgentID = &a.ID
	}
	if err := db.Create(tk).Error; err != nil {
		t.Fatal(err)
	}
	return tk, a
}

func TestIdempotencyKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	got := IdempotencyKey("t1", at)
	if got != "dispatch-t1-1700000000123" {
		t.Errorf("IdempotencyKey() = %q", got)
	}
}

func TestDispatch_Success(t *testing.T) {
	db := testDB(t)
	client := &mockClient{}
	svc, err := NewService(db, client, testNotifier())
	if err != nil {
		t.Fatal(err)
	}
	fixed := time.UnixMilli(1700000000000)
	svc.now = func() time.Time { return fixed }
	tk, a := seedTask(t, db, true)

	if err := svc.Dispatch(context.Background(), tk.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.calls) != 1 || client.calls[0].method != "chat.send" {
		t.Fatalf("calls = %+v", client.calls)
	}
	params := client.calls[0].params
	if params["session_key"] != "agent:oc-atlas:atlas-main" {
		t.Errorf("session_key = %v", params["session_key"])
	}
	if params["idempotency_key"] != "dispatch-t1-1700000000000" {
		t.Errorf("idempotency_key = %v", params["idempotency_key"])
	}
	msg, _ := params["message"].(string)
	if !strings.Contains(msg, "NEW TASK: Build it") {
		t.Errorf("message = %q", msg)
	}
	if !strings.Contains(msg, CompletionSentinel) {
		t.Error("briefing should restate the completion sentinel")
	}

	var freshTask models.Task
	db.First(&freshTask, "id = ?", tk.ID)
	if freshTask.Status != models.TaskStatusInProgress {
		t.Errorf("task status = %q, want in_progress", freshTask.Status)
	}

	var freshAgent models.Agent
	db.First(&freshAgent, "id = ?", a.ID)
	if freshAgent.Status != models.AgentStatusWorking {
		t.Errorf("agent status = %q, want working", freshAgent.Status)
	}

	var evt models.Event
	result := db.Where("type = ?", models.EventTaskDispatched).Limit(1).Find(&evt)
	if result.RowsAffected == 0 {
		t.Error("expected task_dispatched event")
	}
}

func TestDispatch_CreatesSessionOnFirstSend(t *testing.T) {
	db := testDB(t)
	client := &mockClient{}
	svc, _ := NewService(db, client, testNotifier())
	tk, a := seedTask(t, db, true)

	if err := svc.Dispatch(context.Background(), tk.ID); err != nil {
		t.Fatal(err)
	}

	var count int64
	db.Model(&models.SessionCorrelation{}).
		Where("agent_id = ? AND status = ?", a.ID, models.SessionStatusActive).
		Count(&count)
	if count != 1 {
		t.Errorf("active sessions = %d, want 1", count)
	}

	var evt models.Event
	result := db.Where("type = ?", models.EventSessionCreated).Limit(1).Find(&evt)
	if result.RowsAffected == 0 {
		t.Error("expected session_created event")
	}

	// A second dispatch reuses the session.
	db.Model(&models.Task{}).Where("id = ?", tk.ID).Update("status", models.TaskStatusAssigned)
	if err := svc.Dispatch(context.Background(), tk.ID); err != nil {
		t.Fatal(err)
	}
	db.Model(&models.SessionCorrelation{}).
		Where("agent_id = ? AND status = ?", a.ID, models.SessionStatusActive).
		Count(&count)
	if count != 1 {
		t.Errorf("active sessions after redispatch = %d, want 1", count)
	}
}

func TestDispatch_NoAssignee(t *testing.T) {
	db := testDB(t)
	svc, _ := NewService(db, &mockClient{}, testNotifier())
	tk, _ := seedTask(t, db, false)

	err := svc.Dispatch(context.Background(), tk.ID)
	if !orcerr.Is(err, orcerr.KindInvalidRequest) {
		t.Errorf("error = %v, want invalid request", err)
	}
}

func TestDispatch_AgentWithoutCorrelationID(t *testing.T) {
	db := testDB(t)
	svc, _ := NewService(db, &mockClient{}, testNotifier())

	a := &models.Agent{ID: "a1", Name: "Atlas"} // no OpenclawAgentID
	db.Create(a)
	tk := &models.Task{ID: "t1", Title: "x", Status: models.TaskStatusAssigned, AssignedAgentID: &a.ID}
	db.Create(tk)

	err := svc.Dispatch(context.Background(), tk.ID)
	if !orcerr.Is(err, orcerr.KindInvalidRequest) {
		t.Errorf("error = %v, want invalid request", err)
	}
}

func TestDispatch_UnknownTask(t *testing.T) {
	db := testDB(t)
	svc, _ := NewService(db, &mockClient{}, testNotifier())

	err := svc.Dispatch(context.Background(), "missing")
	if !orcerr.Is(err, orcerr.KindNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestDispatch_SendFailureMutatesNothing(t *testing.T) {
	db := testDB(t)
	client := &mockClient{err: orcerr.New(orcerr.KindUpstreamUnavailable, "gateway down")}
	svc, _ := NewService(db, client, testNotifier())
	tk, a := seedTask(t, db, true)

	err := svc.Dispatch(context.Background(), tk.ID)
	if !orcerr.Is(err, orcerr.KindUpstreamUnavailable) {
		t.Fatalf("error = %v, want upstream unavailable", err)
	}

	var freshTask models.Task
	db.First(&freshTask, "id = ?", tk.ID)
	if freshTask.Status != models.TaskStatusAssigned {
		t.Errorf("task status = %q, want assigned (unchanged)", freshTask.Status)
	}

	var freshAgent models.Agent
	db.First(&freshAgent, "id = ?", a.ID)
	if freshAgent.Status != models.AgentStatusStandby {
		t.Errorf("agent status = %q, want standby (unchanged)", freshAgent.Status)
	}

	var count int64
	db.Model(&models.Event{}).Where("type = ?", models.EventTaskDispatched).Count(&count)
	if count != 0 {
		t.Errorf("dispatch events = %d, want 0", count)
	}
}

func TestNewService_RequiresDeps(t *testing.T) {
	if _, err := NewService(nil, &mockClient{}, nil); err == nil {
		t.Error("expected error for nil db")
	}
	if _, err := NewService(testDB(t), nil, nil); err == nil {
		t.Error("expected error for nil client")
	}
}
