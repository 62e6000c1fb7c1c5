package planning

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/alex-devdone/mission-control-sub000/internal/models"
	"github.com/alex-devdone/mission-control-sub000/internal/orcerr"
	"github.com/alex-devdone/mission-control-sub000/internal/task"
	"gorm.io/gorm"
)

// questionBattery is the fixed set of categorized questions a human
// answers on the approval path, in render order.
var questionBattery = []struct {
	Category string
	Question string
}{
	{"goal", "What is the primary goal of this task?"},
	{"audience", "Who is the audience or end user of the result?"},
	{"scope", "What is explicitly in scope, and what is out?"},
	{"design", "Are there design constraints or references to follow?"},
	{"content", "What content or data must be included?"},
	{"technical", "Are there technical requirements (stack, integrations, performance)?"},
	{"timeline", "When is this needed, and are there milestones?"},
	{"constraints", "Any other constraints (budget, compliance, access)?"},
}

// SeedQuestions creates the approval question battery for a task if it
// does not exist yet. Best-effort: an error is logged, not returned, since
// the conversation path does not depend on the battery.
func SeedQuestions(db *gorm.DB, taskID string) {
	var count int64
	if err := db.Model(&models.PlanningQuestion{}).Where("task_id = ?", taskID).Count(&count).Error; err != nil {
		log.Printf("planning: count questions for %s: %v", taskID, err)
		return
	}
	if count > 0 {
		return
	}
	for _, q := range questionBattery {
		pq := models.PlanningQuestion{
			TaskID:    taskID,
			Category:  q.Category,
			Question:  q.Question,
			CreatedAt: time.Now(),
		}
		if err := db.Create(&pq).Error; err != nil {
			log.Printf("planning: seed question for %s: %v", taskID, err)
			return
		}
	}
}

// Questions returns the task's approval battery in creation order.
func Questions(db *gorm.DB, taskID string) ([]models.PlanningQuestion, error) {
	var qs []models.PlanningQuestion
	if err := db.Where("task_id = ?", taskID).Order("id ASC").Find(&qs).Error; err != nil {
		return nil, fmt.Errorf("planning: questions for %s: %w", taskID, err)
	}
	return qs, nil
}

// AnswerQuestion records a human answer to one battery question.
func AnswerQuestion(db *gorm.DB, taskID string, questionID uint, answer string) (*models.PlanningQuestion, error) {
	if answer == "" {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "planning: answer is required")
	}
	var q models.PlanningQuestion
	result := db.Where("id = ? AND task_id = ?", questionID, taskID).Limit(1).Find(&q)
	if result.Error != nil {
		return nil, fmt.Errorf("planning: get question %d: %w", questionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, orcerr.New(orcerr.KindNotFound, "planning: question %d not found for task %s", questionID, taskID)
	}
	now := time.Now()
	q.Answer = &answer
	q.AnsweredAt = &now
	if err := db.Save(&q).Error; err != nil {
		return nil, fmt.Errorf("planning: answer question %d: %w", questionID, err)
	}
	return &q, nil
}

// Approve locks the task's specification from the answered battery. It
// fails while any question is unanswered, and fails again once the spec
// is already locked. Approving renders a deterministic markdown document
// grouping answers by category and installs it as the task description,
// moving the task to inbox.
func Approve(db *gorm.DB, taskID string) (*models.Task, error) {
	t, err := task.Get(db, taskID)
	if err != nil {
		return nil, err
	}
	if t.PlanningComplete {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "planning: spec already locked for task %s", taskID)
	}

	qs, err := Questions(db, taskID)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, orcerr.New(orcerr.KindInvalidRequest, "planning: no questions to approve for task %s", taskID)
	}
	var unanswered int
	for _, q := range qs {
		if q.Answer == nil || *q.Answer == "" {
			unanswered++
		}
	}
	if unanswered > 0 {
		return nil, orcerr.New(orcerr.KindInvalidRequest,
			"planning: %d question(s) unanswered for task %s", unanswered, taskID)
	}

	t.Description = RenderSpec(t.Title, qs)
	t.PlanningComplete = true
	t.Status = models.TaskStatusInbox
	if err := db.Save(t).Error; err != nil {
		return nil, fmt.Errorf("planning: approve %s: %w", taskID, err)
	}
	return t, nil
}

// RenderSpec renders the locked specification document. Output is
// deterministic: categories appear in battery order, questions in
// creation order.
func RenderSpec(title string, qs []models.PlanningQuestion) string {
	byCategory := make(map[string][]models.PlanningQuestion)
	for _, q := range qs {
		byCategory[q.Category] = append(byCategory[q.Category], q)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Specification: %s\n", title)
	for _, entry := range questionBattery {
		list := byCategory[entry.Category]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n", capitalize(entry.Category))
		for _, q := range list {
			answer := ""
			if q.Answer != nil {
				answer = *q.Answer
			}
			fmt.Fprintf(&b, "\n**%s**\n\n%s\n", q.Question, answer)
		}
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
