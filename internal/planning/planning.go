// Package planning runs the bounded multi-turn dialogue that converts a
// vague request into a locked specification and a provisioned sub-team.
package planning

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/alex-devdone/mission-control-sub000/internal/agent"
	"github.com/alex-devdone/mission-control-sub000/internal/event"
	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"github.com/alex-devdone/mission-control-sub000/internal/notify"
	"github.com/alex-devdone/mission-control-sub000/internal/openclaw"
	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
	"github.com/alex-devdone/mission-control-sub000/internal/session"
	"github.com/alex-devdone/mission-control-sub000/internal/task"
	"gorm.io/gorm"
)

// Bounded-poll parameters: 30 attempts 500ms apart give a ~15s ceiling per
// turn. A timed-out wait is not an error; the transcript is persisted
// before every wait and the GET endpoint recovers it.
const (
	DefaultMaxPolls     = 30
	DefaultPollInterval = 500 * time.Millisecond
)

// startPrompt is the fixed instruction sent when a planning conversation
// opens. Multiple-choice-only with a mandatory "Other" option.
const startPrompt = `You are planning a task with a human. Ask clarifying questions ONE AT A TIME as multiple choice. Reply ONLY with JSON: {"question": "...", "options": ["...", "...", "Other"]}. Every question MUST include an "Other" option. When you have enough detail, reply instead with {"status": "complete", "spec": {"title": "...", "summary": "...", "deliverables": [...], "success_criteria": [...], "constraints": [...]}, "agents": [{"name": "...", "role": "...", "avatar": "...", "personality": "...", "instructions": "..."}]}.

Task: %s

%s`

// answerPrompt wraps a human answer when it is relayed back into the
// session.
const answerPrompt = `Answer: %s

Either ask the next multiple-choice question (same JSON shape, include "Other") or, if you have enough detail, emit the completion payload.`

// Message is one transcript entry, stored as JSON on the task.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Engine runs planning conversations.
type Engine struct {
	db         *gorm.DB
	client     openclaw.Client
	notifier   *notify.Notifier
	dispatcher task.Dispatcher

	maxPolls     int
	pollInterval time.Duration
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	DB         *gorm.DB
	Client     openclaw.Client
	Notifier   *notify.Notifier
	Dispatcher task.Dispatcher // used for the fire-and-forget dispatch after completion

	MaxPolls     int           // defaults to DefaultMaxPolls
	PollInterval time.Duration // defaults to DefaultPollInterval
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("planning: db is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("planning: openclaw client is required")
	}
	maxPolls := opts.MaxPolls
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Engine{
		db:           opts.DB,
		client:       opts.Client,
		notifier:     opts.Notifier,
		dispatcher:   opts.Dispatcher,
		maxPolls:     maxPolls,
		pollInterval: interval,
	}, nil
}

// State is what planning calls return to the caller: the persisted
// transcript plus whichever of question/completion/waiting applies.
type State struct {
	SessionKey string          `json:"session_key"`
	Messages   []Message       `json:"messages"`
	Complete   bool            `json:"complete"`
	Waiting    bool            `json:"waiting"`
	Question   string          `json:"question,omitempty"`
	Options    []string        `json:"options,omitempty"`
	Spec       *SpecDoc        `json:"spec,omitempty"`
	Agents     []ProposedAgent `json:"agents,omitempty"`
}

// Start opens a planning conversation for a task. A second start on the
// same task fails and leaves the original session key untouched; a start
// whose initial send fails persists nothing and may be retried.
func (e *Engine) Start(ctx context.Context, taskID string) (*State, error) {
	t, err := task.Get(e.db, taskID)
	if err != nil {
		return nil, err
	}
	if t.PlanningSessionKey != nil {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "planning: already started for task %s", taskID)
	}

	key := session.PlanningKey(t.ID)
	prompt := fmt.Sprintf(startPrompt, t.Title, t.Description)

	// Nothing is persisted until the instruction prompt is delivered, so a
	// gateway outage here leaves the task startable again.
	if err := openclaw.SendChat(ctx, e.client, key, prompt, ""); err != nil {
		return nil, err
	}

	transcript := []Message{{Role: "user", Content: prompt, Timestamp: time.Now()}}
	t.PlanningSessionKey = &key
	t.Status = models.TaskStatusPlanning
	if err := e.saveTranscript(t, transcript); err != nil {
		return nil, err
	}

	SeedQuestions(e.db, t.ID)

	if _, err := event.Record(e.db, models.EventPlanningStarted,
		fmt.Sprintf("Planning started for %q", t.Title),
		event.Opts{TaskID: t.ID}); err != nil {
		log.Printf("planning: record start event: %v", err)
	}
	e.notifier.TaskUpdated(t)

	return e.awaitTurn(ctx, t, transcript)
}

// Answer relays a caller's answer (or "Other" free text) into the session
// and awaits the next turn.
func (e *Engine) Answer(ctx context.Context, taskID, answer string) (*State, error) {
	if answer == "" {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "planning: answer is required")
	}
	t, err := task.Get(e.db, taskID)
	if err != nil {
		return nil, err
	}
	if t.PlanningSessionKey == nil {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "planning: not started for task %s", taskID)
	}
	if t.PlanningComplete {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "planning: already complete for task %s", taskID)
	}

	transcript, err := e.transcript(t)
	if err != nil {
		return nil, err
	}
	transcript = append(transcript, Message{Role: "user", Content: answer, Timestamp: time.Now()})
	if err := e.saveTranscript(t, transcript); err != nil {
		return nil, err
	}

	if err := openclaw.SendChat(ctx, e.client, *t.PlanningSessionKey,
		fmt.Sprintf(answerPrompt, answer), ""); err != nil {
		return nil, err
	}

	return e.awaitTurn(ctx, t, transcript)
}

// Get returns the persisted planning state without contacting the runtime.
// This is the read-only recovery path after a timed-out wait.
func (e *Engine) Get(taskID string) (*State, error) {
	t, err := task.Get(e.db, taskID)
	if err != nil {
		return nil, err
	}
	if t.PlanningSessionKey == nil {
		return nil, orcerr.New(orcerr.KindNotFound, "planning: not started for task %s", taskID)
	}
	transcript, err := e.transcript(t)
	if err != nil {
		return nil, err
	}
	st := &State{
		SessionKey: *t.PlanningSessionKey,
		Messages:   transcript,
		Complete:   t.PlanningComplete,
	}
	if t.PlanningComplete {
		st.Spec, st.Agents = decodeOutcome(t)
	} else if last := lastAssistant(transcript); last != nil {
		if r := ExtractReply(last.Content); r != nil && r.IsQuestion() {
			st.Question = r.Question
			st.Options = r.Options
		}
	}
	return st, nil
}

// awaitTurn polls the session transcript for a new parseable assistant
// reply and applies it. Hitting the ceiling returns a waiting state, not
// an error.
func (e *Engine) awaitTurn(ctx context.Context, t *models.Task, transcript []Message) (*State, error) {
	key := *t.PlanningSessionKey
	baseline := countAssistant(transcript)

	for attempt := 0; attempt < e.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return e.waitingState(t, transcript), nil
		case <-time.After(e.pollInterval):
		}

		history, err := openclaw.ChatHistory(ctx, e.client, key, 50)
		if err != nil {
			// Unavailable mid-wait is not fatal: keep polling until the
			// ceiling; the transcript is already persisted.
			log.Printf("planning: poll history for %s: %v", t.ID, err)
			continue
		}

		reply, raw := findNewReply(history, baseline)
		if reply == nil {
			continue
		}

		transcript = append(transcript, Message{Role: "assistant", Content: raw, Timestamp: time.Now()})
		if err := e.saveTranscript(t, transcript); err != nil {
			return nil, err
		}

		if reply.IsComplete() {
			return e.complete(ctx, t, transcript, reply)
		}
		st := e.waitingState(t, transcript)
		st.Waiting = false
		st.Question = reply.Question
		st.Options = reply.Options
		return st, nil
	}

	return e.waitingState(t, transcript), nil
}

// complete applies a completion payload: persist spec and roster, move the
// task to inbox, provision the proposed agents, assign the first, and
// kick off dispatch fire-and-forget.
func (e *Engine) complete(ctx context.Context, t *models.Task, transcript []Message, reply *Reply) (*State, error) {
	specJSON, err := json.Marshal(reply.Spec)
	if err != nil {
		return nil, fmt.Errorf("planning: marshal spec: %w", err)
	}
	agentsJSON, err := json.Marshal(reply.Agents)
	if err != nil {
		return nil, fmt.Errorf("planning: marshal agents: %w", err)
	}

	t.PlanningSpec = string(specJSON)
	t.PlanningAgents = string(agentsJSON)
	t.PlanningComplete = true
	t.Status = models.TaskStatusInbox

	var createdIDs []string
	for _, pa := range reply.Agents {
		created, err := agent.Create(e.db, agent.CreateOpts{
			Name:         pa.Name,
			Role:         pa.Role,
			WorkspaceID:  t.WorkspaceID,
			Avatar:       pa.Avatar,
			Personality:  pa.Personality,
			Instructions: pa.Instructions,
		})
		if err != nil {
			log.Printf("planning: provision agent %q: %v", pa.Name, err)
			continue
		}
		createdIDs = append(createdIDs, created.ID)
	}
	if len(createdIDs) > 0 {
		first := createdIDs[0]
		t.AssignedAgentID = &first
	}

	if err := e.db.Save(t).Error; err != nil {
		return nil, fmt.Errorf("planning: save completion for %s: %w", t.ID, err)
	}

	if _, err := event.Record(e.db, models.EventPlanningCompleted,
		fmt.Sprintf("Planning complete for %q: %d agent(s) provisioned", t.Title, len(createdIDs)),
		event.Opts{TaskID: t.ID}); err != nil {
		log.Printf("planning: record completion event: %v", err)
	}
	e.notifier.TaskUpdated(t)

	// Auto-dispatch is best-effort: failure is logged, never surfaced to
	// the planning caller.
	if e.dispatcher != nil && t.AssignedAgentID != nil {
		taskID := t.ID
		go func() {
			if err := e.dispatcher.Dispatch(context.WithoutCancel(ctx), taskID); err != nil {
				log.Printf("planning: auto-dispatch %s: %v", taskID, err)
			}
		}()
	}

	return &State{
		SessionKey: *t.PlanningSessionKey,
		Messages:   transcript,
		Complete:   true,
		Spec:       reply.Spec,
		Agents:     reply.Agents,
	}, nil
}

func (e *Engine) waitingState(t *models.Task, transcript []Message) *State {
	return &State{
		SessionKey: *t.PlanningSessionKey,
		Messages:   transcript,
		Complete:   t.PlanningComplete,
		Waiting:    true,
	}
}

func (e *Engine) transcript(t *models.Task) ([]Message, error) {
	var msgs []Message
	if t.PlanningMessages != "" {
		if err := json.Unmarshal([]byte(t.PlanningMessages), &msgs); err != nil {
			return nil, fmt.Errorf("planning: decode transcript for %s: %w", t.ID, err)
		}
	}
	return msgs, nil
}

// saveTranscript persists the transcript along with any other pending
// field changes on the task. Transcripts are always written before a wait
// so a timed-out poll never loses conversational state.
func (e *Engine) saveTranscript(t *models.Task, transcript []Message) error {
	data, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("planning: marshal transcript: %w", err)
	}
	t.PlanningMessages = string(data)
	if err := e.db.Save(t).Error; err != nil {
		return fmt.Errorf("planning: save task %s: %w", t.ID, err)
	}
	return nil
}

func countAssistant(transcript []Message) int {
	n := 0
	for _, m := range transcript {
		if m.Role == "assistant" {
			n++
		}
	}
	return n
}

func lastAssistant(transcript []Message) *Message {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == "assistant" {
			return &transcript[i]
		}
	}
	return nil
}

// findNewReply scans a session history for an assistant message beyond the
// baseline count that parses as a planning turn. Unparseable messages are
// skipped; the loop keeps polling.
func findNewReply(history []openclaw.ChatMessage, baseline int) (*Reply, string) {
	seen := 0
	for _, m := range history {
		if m.Role != "assistant" {
			continue
		}
		seen++
		if seen <= baseline {
			continue
		}
		if r := ExtractReply(m.Content); r != nil {
			return r, m.Content
		}
	}
	return nil, ""
}

func decodeOutcome(t *models.Task) (*SpecDoc, []ProposedAgent) {
	var spec SpecDoc
	var agents []ProposedAgent
	if t.PlanningSpec != "" {
		if err := json.Unmarshal([]byte(t.PlanningSpec), &spec); err != nil {
			return nil, nil
		}
	}
	if t.PlanningAgents != "" {
		if err := json.Unmarshal([]byte(t.PlanningAgents), &agents); err != nil {
			return &spec, nil
		}
	}
	return &spec, agents
}
