package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alex-devdone/mission-control-sub000/internal/agent"
	"github.com/alex-devdone/mission-control-sub000/internal/event"
	"github.com/alex-devdone/mission-control-sub000/internal/intake"
	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
	"github.com/alex-devdone/mission-control-sub000/internal/planning"
	"github.com/alex-devdone/mission-control-sub000/internal/session"
	"github.com/alex-devdone/mission-control-sub000/internal/task"
	"github.com/alex-devdone/mission-control-sub000/internal/workspace"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, deps Deps) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/tasks", handleTaskCreate(deps))
	router.GET("/tasks", handleTaskList(deps))
	router.GET("/tasks/:id", handleTaskGet(deps))
	router.PATCH("/tasks/:id", handleTaskUpdate(deps))
	router.DELETE("/tasks/:id", handleTaskDelete(deps))
	router.POST("/tasks/:id/dispatch", handleTaskDispatch(deps))

	router.POST("/tasks/:id/planning", handlePlanningStart(deps))
	router.GET("/tasks/:id/planning", handlePlanningGet(deps))
	router.POST("/tasks/:id/planning/answer", handlePlanningAnswer(deps))
	router.POST("/tasks/:id/planning/approve", handlePlanningApprove(deps))

	router.POST("/tasks/:id/activities", handleActivityCreate(deps))
	router.GET("/tasks/:id/activities", handleActivityList(deps))

	router.GET("/agents", handleAgentList(deps))
	router.POST("/agents", handleAgentCreate(deps))
	router.PATCH("/agents/:id", handleAgentUpdate(deps))
	router.DELETE("/agents/:id", handleAgentDelete(deps))
	router.POST("/agents/:id/subagents", handleSubagentCreate(deps))
	router.GET("/agents/limits", handleLimitsGet(deps))
	router.POST("/agents/limits", handleLimitsPoll(deps))

	router.POST("/webhooks/agent-completion", handleCompletionWebhook(deps))

	router.GET("/workspaces", handleWorkspaceList(deps))
	router.POST("/workspaces", handleWorkspaceCreate(deps))
	router.GET("/apps", handleAppList(deps))
	router.POST("/apps", handleAppCreate(deps))

	router.GET("/events", handleEventFeed(deps))
	router.GET("/api/events", handleSSE(deps.Notifier))
}

// respondErr maps a classified error to its HTTP status. Upstream
// unavailability gets a retryable hint.
func respondErr(c *gin.Context, err error) {
	status := orcerr.HTTPStatus(err)
	body := gin.H{"error": err.Error()}
	if status == http.StatusServiceUnavailable {
		body["retryable"] = true
	}
	c.JSON(status, body)
}

type taskCreateRequest struct {
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           string     `json:"status"`
	Priority         string     `json:"priority"`
	AssignedAgentID  string     `json:"assigned_agent_id"`
	CreatedByAgentID string     `json:"created_by_agent_id"`
	WorkspaceID      string     `json:"workspace_id"`
	AppID            string     `json:"app_id"`
	DueDate          *time.Time `json:"due_date"`
}

func handleTaskCreate(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req taskCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, orcerr.Wrap(orcerr.KindInvalidRequest, err, "invalid body"))
			return
		}
		t, err := task.Create(deps.DB, deps.Notifier, task.CreateOpts{
			Title:            req.Title,
			Description:      req.Description,
			Status:           req.Status,
			Priority:         req.Priority,
			AssignedAgentID:  req.AssignedAgentID,
			CreatedByAgentID: req.CreatedByAgentID,
			WorkspaceID:      req.WorkspaceID,
			AppID:            req.AppID,
			DueDate:          req.DueDate,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

func handleTaskList(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks, err := task.List(deps.DB, task.Filter{
			Status:          c.Query("status"),
			AssignedAgentID: c.Query("assigned_agent_id"),
			AppID:           c.Query("app_id"),
			WorkspaceID:     c.Query("workspace_id"),
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, tasks)
	}
}

func handleTaskGet(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := task.Get(deps.DB, c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

type taskUpdateRequest struct {
	Title           *string    `json:"title"`
	Description     *string    `json:"description"`
	Status          *string    `json:"status"`
	Priority        *string    `json:"priority"`
	AssignedAgentID *string    `json:"assigned_agent_id"`
	DueDate         *time.Time `json:"due_date"`
	ActorAgentID    string     `json:"actor_agent_id"`
}

func handleTaskUpdate(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req taskUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, orcerr.Wrap(orcerr.KindInvalidRequest, err, "invalid body"))
			return
		}
		t, err := task.Update(c.Request.Context(), deps.DB, deps.Notifier, deps.Dispatcher,
			c.Param("id"), task.UpdateOpts{
				Title:           req.Title,
				Description:     req.Description,
				Status:          req.Status,
				Priority:        req.Priority,
				AssignedAgentID: req.AssignedAgentID,
				DueDate:         req.DueDate,
				ActorAgentID:    req.ActorAgentID,
			})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func handleTaskDelete(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := task.Delete(deps.DB, c.Param("id")); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleTaskDispatch(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := deps.Dispatcher.Dispatch(c.Request.Context(), c.Param("id")); err != nil {
			respondErr(c, err)
			return
		}
		t, err := task.Get(deps.DB, c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func handlePlanningStart(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := deps.Planner.Start(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func handlePlanningGet(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := deps.Planner.Get(c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		qs, err := planning.Questions(deps.DB, c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"planning": st, "questions": qs})
	}
}

type planningAnswerRequest struct {
	// Conversation path: free-text or selected option.
	Answer string `json:"answer"`
	// Approval path: answer one battery question instead.
	QuestionID uint `json:"question_id"`
}

func handlePlanningAnswer(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req planningAnswerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, orcerr.Wrap(orcerr.KindInvalidRequest, err, "invalid body"))
			return
		}
		if req.QuestionID != 0 {
			q, err := planning.AnswerQuestion(deps.DB, c.Param("id"), req.QuestionID, req.Answer)
			if err != nil {
				respondErr(c, err)
				return
			}
			c.JSON(http.StatusOK, q)
			return
		}
		st, err := deps.Planner.Answer(c.Request.Context(), c.Param("id"), req.Answer)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

func handlePlanningApprove(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := planning.Approve(deps.DB, c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		deps.Notifier.TaskUpdated(t)
		c.JSON(http.StatusOK, t)
	}
}

type activityRequest struct {
	AgentID      string                 `json:"agent_id"`
	ActivityType string                 `json:"activity_type"`
	Message      string                 `json:"message"`
	Metadata     map[string]interface{} `json:"metadata"`
}

func handleActivityCreate(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req activityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, orcerr.Wrap(orcerr.KindInvalidRequest, err, "invalid body"))
			return
		}
		act, err := task.LogActivity(deps.DB, c.Param("id"), req.ActivityType, req.Message,
			task.ActivityOpts{AgentID: req.AgentID, Metadata: req.Metadata})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, act)
	}
}

func handleActivityList(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		acts, err := task.Activities(deps.DB, c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, acts)
	}
}

type agentCreateRequest struct {
	Name            string `json:"name"`
	Role            string `json:"role"`
	WorkspaceID     string `json:"workspace_id"`
	OpenclawAgentID string `json:"openclaw_agent_id"`
	Model           string `json:"model"`
	IsMaster        bool   `json:"is_master"`
	Avatar          string `json:"avatar"`
	Personality     string `json:"personality"`
	Instructions    string `json:"instructions"`
}

func handleAgentCreate(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req agentCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, orcerr.Wrap(orcerr.KindInvalidRequest, err, "invalid body"))
			return
		}
		a, err := agent.Create(deps.DB, agent.CreateOpts{
			Name:            req.Name,
			Role:            req.Role,
			WorkspaceID:     req.WorkspaceID,
			OpenclawAgentID: req.OpenclawAgentID,
			Model:           req.Model,
			IsMaster:        req.IsMaster,
			Avatar:          req.Avatar,
			Personality:     req.Personality,
			Instructions:    req.Instructions,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

func handleAgentList(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		agents, err := agent.List(deps.DB, c.Query("workspace_id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, agents)
	}
}

type agentUpdateRequest struct {
	Name            *string `json:"name"`
	Role            *string `json:"role"`
	Status          *string `json:"status"`
	Model           *string `json:"model"`
	OpenclawAgentID *string `json:"openclaw_agent_id"`
	Instructions    *string `json:"instructions"`
}

func handleAgentUpdate(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req agentUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, orcerr.Wrap(orcerr.KindInvalidRequest, err, "invalid body"))
			return
		}
		a, err := agent.Update(deps.DB, deps.Notifier, c.Param("id"), agent.UpdateOpts{
			Name:            req.Name,
			Role:            req.Role,
			Status:          req.Status,
			Model:           req.Model,
			OpenclawAgentID: req.OpenclawAgentID,
			Instructions:    req.Instructions,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func handleAgentDelete(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := agent.Delete(deps.DB, c.Param("id")); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type subagentCreateRequest struct {
	TaskID    string `json:"task_id"`
	SessionID string `json:"session_id"`
}

// handleSubagentCreate registers a runtime-spawned subagent session so the
// completion webhook can resolve work arriving from it.
func handleSubagentCreate(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subagentCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, orcerr.Wrap(orcerr.KindInvalidRequest, err, "invalid body"))
			return
		}
		a, err := agent.Get(deps.DB, c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		sc, err := session.CreateSubagent(deps.DB, a.ID, req.TaskID, req.SessionID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, sc)
	}
}

// handleLimitsGet returns the stored capacity figures for every agent.
func handleLimitsGet(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		agents, err := agent.List(deps.DB, c.Query("workspace_id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		type row struct {
			AgentID    string     `json:"agent_id"`
			Name       string     `json:"name"`
			Status     string     `json:"status"`
			Limit5h    int        `json:"limit_5h"`
			LimitWeek  int        `json:"limit_week"`
			LastPollAt *time.Time `json:"last_poll_at"`
		}
		rows := make([]row, len(agents))
		for i, a := range agents {
			rows[i] = row{
				AgentID:    a.ID,
				Name:       a.Name,
				Status:     a.Status,
				Limit5h:    a.Limit5h,
				LimitWeek:  a.LimitWeek,
				LastPollAt: a.LastPollAt,
			}
		}
		c.JSON(http.StatusOK, rows)
	}
}

// handleLimitsPoll runs a capacity sweep on demand.
func handleLimitsPoll(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := deps.Monitor.Sweep(c.Request.Context(), nil)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type completionWebhookRequest struct {
	TaskID    string `json:"task_id"`
	Summary   string `json:"summary"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func handleCompletionWebhook(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req completionWebhookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, orcerr.Wrap(orcerr.KindInvalidRequest, err, "invalid body"))
			return
		}
		switch {
		case req.TaskID != "":
			t, err := intake.CompleteByTask(deps.DB, deps.Notifier, req.TaskID, req.Summary)
			if err != nil {
				respondErr(c, err)
				return
			}
			c.JSON(http.StatusOK, t)
		case req.SessionID != "":
			t, err := intake.CompleteBySession(deps.DB, deps.Notifier, req.SessionID, req.Message)
			if err != nil {
				respondErr(c, err)
				return
			}
			c.JSON(http.StatusOK, t)
		default:
			respondErr(c, orcerr.New(orcerr.KindInvalidRequest, "task_id or session_id is required"))
		}
	}
}

func handleWorkspaceCreate(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name string `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, orcerr.Wrap(orcerr.KindInvalidRequest, err, "invalid body"))
			return
		}
		w, err := workspace.Create(deps.DB, req.Name)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, w)
	}
}

func handleWorkspaceList(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := workspace.List(deps.DB)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ws)
	}
}

type appCreateRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Port        int    `json:"port"`
	SpecFile    string `json:"spec_file"`
}

func handleAppCreate(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req appCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, orcerr.Wrap(orcerr.KindInvalidRequest, err, "invalid body"))
			return
		}
		a, err := workspace.CreateApp(deps.DB, workspace.AppOpts{
			WorkspaceID: req.WorkspaceID,
			Name:        req.Name,
			Path:        req.Path,
			Port:        req.Port,
			SpecFile:    req.SpecFile,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

func handleAppList(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		apps, err := workspace.ListApps(deps.DB, c.Query("workspace_id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, apps)
	}
}

func handleEventFeed(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		events, err := event.Feed(deps.DB, limit)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}
