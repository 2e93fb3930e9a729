package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/anglenexus/nexus/internal/model/agent"
)

// PromptTemplate defines the structure for agent prompts
type PromptTemplate struct {
	Hints []string
	Rules []string
}

// PromptManager holds the per-agent prompt templates.
type PromptManager struct {
	templates map[string]*PromptTemplate
}

func NewPromptManager() *PromptManager {
	pm := &PromptManager{templates: make(map[string]*PromptTemplate)}
	pm.loadDefaultTemplates()
	return pm
}

// Template returns the template registered for agentID.
func (pm *PromptManager) Template(agentID string) (*PromptTemplate, bool) {
	t, ok := pm.templates[agentID]
	return t, ok
}

// BuildSystemPrompt composes the system message for a. today anchors
// relative dates ("last quarter", "two years ago") in the user query.
func (pm *PromptManager) BuildSystemPrompt(a agent.Agent, today time.Time) string {
	base := a.SystemPrompt
	if base == "" {
		base = fmt.Sprintf("You are %s, %s.", a.Name, strings.ToLower(a.Title))
	}

	t, ok := pm.templates[a.ID]
	if !ok {
		return fmt.Sprintf("%s\n\nToday's date: %s", base, today.Format("2006-01-02"))
	}

	return fmt.Sprintf(`%s

Guidance:
- %s

Rules:
- %s

Today's date: %s`,
		base,
		strings.Join(t.Hints, "\n- "),
		strings.Join(t.Rules, "\n- "),
		today.Format("2006-01-02"),
	)
}

func (pm *PromptManager) loadDefaultTemplates() {
	pm.templates[agent.Daimon] = &PromptTemplate{
		Hints: []string{
			"Identify every company or crypto asset the user mentions and use its official ticker symbol",
			"Separate distinct topics, such as profile, price history, statements or news, and answer each one",
			"Prefer concrete figures over general commentary",
		},
		Rules: []string{
			"Resolve relative date ranges against today's date",
			"Say so plainly when the question is not about markets or companies",
			"Never present speculation as fact",
		},
	}

	pm.templates[agent.Weaver] = &PromptTemplate{
		Hints: []string{
			"Break the request into knowledge topics before answering",
			"Combine what is known about each topic into one structured report",
			"Name the kind of source each finding would come from",
		},
		Rules: []string{
			"Use headings and short bullet lists",
			"Flag information that may be out of date",
			"Keep the summary first and details after",
		},
	}
}
