package dispatch

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/alex-devdone/mission-control-sub000/internal/models"
)

// CompletionSentinel is the literal prefix an agent must emit to signal
// completion through the free-text webhook path. Fixed wire format.
const CompletionSentinel = "TASK_COMPLETE:"

// briefingTemplate is the structured message delivered into an agent's
// session on dispatch. The three post-completion actions and the
// completion sentinel are restated verbatim in every briefing.
const briefingTemplate = `{{ .PriorityMark }} NEW TASK: {{ .Title }}

{{ .Description }}
{{ if .DueDate }}
Due: {{ .DueDate }}
{{ end }}Task ID: {{ .TaskID }}
{{ if .App }}
## Linked App
- Path: {{ .App.Path }}
- Port: {{ .App.Port }}
- Spec file: {{ .App.SpecFile }}
{{ end }}
## When you are done, you MUST:
1. Log an activity describing what you did (POST /tasks/{{ .TaskID }}/activities)
2. Register each changed artifact as a deliverable
3. Set the task status to "review"

Then emit this exact line in your session:
TASK_COMPLETE: <one-line summary of what you did>
`

var briefingTmpl = template.Must(template.New("briefing").Parse(briefingTemplate))

// priorityMark maps a priority to its briefing indicator.
func priorityMark(priority string) string {
	switch priority {
	case models.PriorityUrgent:
		return "[URGENT]"
	case models.PriorityHigh:
		return "[HIGH]"
	case models.PriorityLow:
		return "[LOW]"
	default:
		return "[NORMAL]"
	}
}

// ComposeBriefing renders the dispatch briefing for a task. The app is
// optional; when present its path/port/spec-file hint is included.
func ComposeBriefing(t *models.Task, app *models.App) string {
	data := struct {
		PriorityMark string
		Title        string
		Description  string
		DueDate      string
		TaskID       string
		App          *models.App
	}{
		PriorityMark: priorityMark(t.Priority),
		Title:        t.Title,
		Description:  strings.TrimSpace(t.Description),
		TaskID:       t.ID,
		App:          app,
	}
	if t.DueDate != nil {
		data.DueDate = t.DueDate.Format("2006-01-02")
	}

	var buf bytes.Buffer
	if err := briefingTmpl.Execute(&buf, data); err != nil {
		// The template is static and the data is plain values; execution
		// cannot fail at runtime, but fall back to a minimal briefing
		// rather than panic.
		return fmt.Sprintf("%s NEW TASK: %s\n\nTask ID: %s", data.PriorityMark, t.Title, t.ID)
	}
	return buf.String()
}
