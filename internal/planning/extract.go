package planning

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// SpecDoc is the locked specification a completed planning conversation
// produces.
type SpecDoc struct {
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	Deliverables    []string `json:"deliverables"`
	SuccessCriteria []string `json:"success_criteria"`
	Constraints     []string `json:"constraints"`
}

// ProposedAgent is one member of the sub-team a completed planning
// conversation provisions.
type ProposedAgent struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	Avatar       string `json:"avatar"`
	Personality  string `json:"personality"`
	Instructions string `json:"instructions"`
}

// Reply is a parsed planning turn from the agent: either a follow-up
// question with options, or a completion payload carrying the spec and
// proposed agents.
type Reply struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`

	Status string          `json:"status"`
	Spec   *SpecDoc        `json:"spec"`
	Agents []ProposedAgent `json:"agents"`
}

// IsQuestion reports whether the reply is a follow-up question turn.
func (r *Reply) IsQuestion() bool { return r.Question != "" }

// IsComplete reports whether the reply is a completion payload.
func (r *Reply) IsComplete() bool { return r.Status == "complete" && r.Spec != nil }

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractReply pulls a structured reply out of free-form assistant text.
// Extraction tries, in order: the whole text as JSON, the contents of a
// fenced code block, the substring between the first '{' and the last '}',
// and finally a jsonrepair pass over that substring for the off-by-a-comma
// outputs LLMs produce. Returns nil when nothing parses.
func ExtractReply(text string) *Reply {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if r := parseReply(text); r != nil {
		return r
	}

	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		if r := parseReply(strings.TrimSpace(m[1])); r != nil {
			return r
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		candidate := text[start : end+1]
		if r := parseReply(candidate); r != nil {
			return r
		}
		if fixed, err := jsonrepair.JSONRepair(candidate); err == nil {
			if r := parseReply(fixed); r != nil {
				return r
			}
		}
	}

	return nil
}

// parseReply unmarshals a candidate and checks it actually carries a turn.
func parseReply(candidate string) *Reply {
	var r Reply
	if err := json.Unmarshal([]byte(candidate), &r); err != nil {
		return nil
	}
	if r.Question == "" && r.Status == "" {
		return nil
	}
	return &r
}
