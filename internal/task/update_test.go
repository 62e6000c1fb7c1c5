package task

import (
	"context"
	"testing"

	"github.com/alex-devdone/mission-control-sub000/internal/agent"
	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
)

func strptr(s string) *string { return &s }

func TestUpdate_StatusChangeRecordsEvent(t *testing.T) {
	db := testDB(t)
	n := testNotifier()
	tk, err := Create(db, n, CreateOpts{Title: "work"})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := Update(context.Background(), db, n, nil, tk.ID, UpdateOpts{
		Status: strptr(models.TaskStatusBacklog),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != models.TaskStatusBacklog {
		t.Errorf("status = %q", updated.Status)
	}

	var evt models.Event
	result := db.Where("type = ?", models.EventTaskStatusChanged).Limit(1).Find(&evt)
	if result.RowsAffected == 0 {
		t.Fatal("expected task_status_changed event")
	}
	if evt.TaskID == nil || *evt.TaskID != tk.ID {
		t.Errorf("event task id = %v", evt.TaskID)
	}
}

func TestUpdate_InvalidStatus(t *testing.T) {
	db := testDB(t)
	n := testNotifier()
	tk, err := Create(db, n, CreateOpts{Title: "work"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = Update(context.Background(), db, n, nil, tk.ID, UpdateOpts{Status: strptr("bogus")})
	if !orcerr.Is(err, orcerr.KindInvalidRequest) {
		t.Errorf("error = %v, want invalid request", err)
	}
}

func TestUpdate_AssignUnknownAgent(t *testing.T) {
	db := testDB(t)
	n := testNotifier()
	tk, err := Create(db, n, CreateOpts{Title: "work"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = Update(context.Background(), db, n, nil, tk.ID, UpdateOpts{
		AssignedAgentID: strptr("ghost"),
	})
	if !orcerr.Is(err, orcerr.KindNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestUpdate_AssignRecordsEventAndDispatches(t *testing.T) {
	db := testDB(t)
	n := testNotifier()
	a, err := agent.Create(db, agent.CreateOpts{Name: "Atlas"})
	if err != nil {
		t.Fatal(err)
	}
	tk, err := Create(db, n, CreateOpts{Title: "work"})
	if err != nil {
		t.Fatal(err)
	}

	disp := &mockDispatcher{}
	_, err = Update(context.Background(), db, n, disp, tk.ID, UpdateOpts{
		Status:          strptr(models.TaskStatusAssigned),
		AssignedAgentID: &a.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(disp.calls) != 1 || disp.calls[0] != tk.ID {
		t.Errorf("dispatch calls = %v", disp.calls)
	}

	var evt models.Event
	result := db.Where("type = ?", models.EventTaskAssigned).Limit(1).Find(&evt)
	if result.RowsAffected == 0 {
		t.Error("expected task_assigned event")
	}
}

func TestUpdate_NoDispatchWithoutAssignee(t *testing.T) {
	db := testDB(t)
	n := testNotifier()
	tk, err := Create(db, n, CreateOpts{Title: "work"})
	if err != nil {
		t.Fatal(err)
	}

	disp := &mockDispatcher{}
	_, err = Update(context.Background(), db, n, disp, tk.ID, UpdateOpts{
		Status: strptr(models.TaskStatusAssigned),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(disp.calls) != 0 {
		t.Errorf("dispatch calls = %v, want none", disp.calls)
	}
}

func TestUpdate_DispatchFailureSwallowed(t *testing.T) {
	db := testDB(t)
	n := testNotifier()
	a, err := agent.Create(db, agent.CreateOpts{Name: "Atlas"})
	if err != nil {
		t.Fatal(err)
	}
	tk, err := Create(db, n, CreateOpts{Title: "work"})
	if err != nil {
		t.Fatal(err)
	}

	disp := &mockDispatcher{err: errDispatch}
	updated, err := Update(context.Background(), db, n, disp, tk.ID, UpdateOpts{
		Status:          strptr(models.TaskStatusAssigned),
		AssignedAgentID: &a.ID,
	})
	if err != nil {
		t.Fatalf("dispatch failure must not surface, got: %v", err)
	}
	if updated.Status != models.TaskStatusAssigned {
		t.Errorf("status = %q, want assigned (dispatch failed)", updated.Status)
	}
}

func TestUpdate_ReassignDispatchesAgain(t *testing.T) {
	db := testDB(t)
	n := testNotifier()
	a1, _ := agent.Create(db, agent.CreateOpts{Name: "Atlas"})
	a2, _ := agent.Create(db, agent.CreateOpts{Name: "Borg"})
	tk, err := Create(db, n, CreateOpts{Title: "work", Status: models.TaskStatusAssigned, AssignedAgentID: a1.ID})
	if err != nil {
		t.Fatal(err)
	}

	disp := &mockDispatcher{err: errDispatch} // keep status at assigned
	_, err = Update(context.Background(), db, n, disp, tk.ID, UpdateOpts{
		AssignedAgentID: &a2.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(disp.calls) != 1 {
		t.Errorf("dispatch calls = %d, want 1 (handoff to new agent)", len(disp.calls))
	}
}

func TestUpdate_ClearAssignee(t *testing.T) {
	db := testDB(t)
	n := testNotifier()
	a, _ := agent.Create(db, agent.CreateOpts{Name: "Atlas"})
	tk, err := Create(db, n, CreateOpts{Title: "work", AssignedAgentID: a.ID})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := Update(context.Background(), db, n, nil, tk.ID, UpdateOpts{
		AssignedAgentID: strptr(""),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.AssignedAgentID != nil {
		t.Errorf("assignee = %v, want nil", updated.AssignedAgentID)
	}
}

func TestUpdate_ReviewToDoneRequiresMaster(t *testing.T) {
	db := testDB(t)
	n := testNotifier()
	ws := models.Workspace{ID: "ws-1", Name: "Main"}
	db.Create(&ws)

	master, _ := agent.Create(db, agent.CreateOpts{Name: "Master", WorkspaceID: ws.ID, IsMaster: true})
	worker, _ := agent.Create(db, agent.CreateOpts{Name: "Worker", WorkspaceID: ws.ID})
	outsider, _ := agent.Create(db, agent.CreateOpts{Name: "Outsider", WorkspaceID: "ws-2", IsMaster: true})

	newReviewTask := func(id string) string {
		tk, err := Create(db, n, CreateOpts{Title: id, Status: models.TaskStatusReview, WorkspaceID: ws.ID})
		if err != nil {
			t.Fatal(err)
		}
		return tk.ID
	}

	// No actor.
	_, err := Update(context.Background(), db, n, nil, newReviewTask("a"), UpdateOpts{
		Status: strptr(models.TaskStatusDone),
	})
	if !orcerr.Is(err, orcerr.KindForbidden) {
		t.Errorf("no actor: error = %v, want forbidden", err)
	}

	// Non-master actor.
	_, err = Update(context.Background(), db, n, nil, newReviewTask("b"), UpdateOpts{
		Status:       strptr(models.TaskStatusDone),
		ActorAgentID: worker.ID,
	})
	if !orcerr.Is(err, orcerr.KindForbidden) {
		t.Errorf("worker: error = %v, want forbidden", err)
	}

	// Master of a different workspace.
	_, err = Update(context.Background(), db, n, nil, newReviewTask("c"), UpdateOpts{
		Status:       strptr(models.TaskStatusDone),
		ActorAgentID: outsider.ID,
	})
	if !orcerr.Is(err, orcerr.KindForbidden) {
		t.Errorf("outsider: error = %v, want forbidden", err)
	}

	// The workspace's master succeeds.
	updated, err := Update(context.Background(), db, n, nil, newReviewTask("d"), UpdateOpts{
		Status:       strptr(models.TaskStatusDone),
		ActorAgentID: master.ID,
	})
	if err != nil {
		t.Fatalf("master: unexpected error: %v", err)
	}
	if updated.Status != models.TaskStatusDone {
		t.Errorf("status = %q, want done", updated.Status)
	}

	var evt models.Event
	result := db.Where("type = ?", models.EventTaskCompleted).Limit(1).Find(&evt)
	if result.RowsAffected == 0 {
		t.Error("expected task_completed event")
	}
}

func TestUpdate_MasterRuleOnlyGuardsReviewToDone(t *testing.T) {
	db := testDB(t)
	n := testNotifier()
	tk, err := Create(db, n, CreateOpts{Title: "work", Status: models.TaskStatusTesting})
	if err != nil {
		t.Fatal(err)
	}

	// testing → review needs no master.
	updated, err := Update(context.Background(), db, n, nil, tk.ID, UpdateOpts{
		Status: strptr(models.TaskStatusReview),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != models.TaskStatusReview {
		t.Errorf("status = %q", updated.Status)
	}
}

func TestUpdate_ReviewReleasesAgent(t *testing.T) {
	db := testDB(t)
	n := testNotifier()
	a, _ := agent.Create(db, agent.CreateOpts{Name: "Atlas"})
	db.Model(&models.Agent{}).Where("id = ?", a.ID).Update("status", models.AgentStatusWorking)

	tk, err := Create(db, n, CreateOpts{Title: "work", Status: models.TaskStatusTesting, AssignedAgentID: a.ID})
	if err != nil {
		t.Fatal(err)
	}

	_, err = Update(context.Background(), db, n, nil, tk.ID, UpdateOpts{
		Status: strptr(models.TaskStatusReview),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fresh, _ := agent.Get(db, a.ID)
	if fresh.Status != models.AgentStatusStandby {
		t.Errorf("agent status = %q, want standby", fresh.Status)
	}
}
