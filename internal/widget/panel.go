package widget

import (
	"fmt"

	"github.com/anglenexus/nexus/internal/model/agent"
	"github.com/anglenexus/nexus/internal/storage"
	"github.com/anglenexus/nexus/internal/transcript"
)

// Panel owns one Widget per agent. Widgets share the sender and the
// key-value store but no state.
type Panel struct {
	order   []string
	widgets map[string]*Widget
}

// TranscriptKey is the storage key of an agent's persisted transcript.
func TranscriptKey(agentID string) string {
	return fmt.Sprintf("%s_chat_history", agentID)
}

// NewPanel builds widgets for agents. newView is called once per agent.
func NewPanel(agents []agent.Agent, sender Sender, kv storage.Store, newView func(agent.Agent) Renderer, opts ...Option) *Panel {
	p := &Panel{widgets: make(map[string]*Widget, len(agents))}
	for _, a := range agents {
		widgetOpts := opts
		if a.Persist && kv != nil {
			store := transcript.New(kv, transcript.WithKey(TranscriptKey(a.ID)))
			widgetOpts = append(append([]Option(nil), opts...), WithTranscript(store))
		}
		p.widgets[a.ID] = New(a, sender, newView(a), widgetOpts...)
		p.order = append(p.order, a.ID)
	}
	return p
}

// Widget returns the widget for agentID.
func (p *Panel) Widget(agentID string) (*Widget, bool) {
	w, ok := p.widgets[agentID]
	return w, ok
}

// Widgets returns every widget in catalogue order.
func (p *Panel) Widgets() []*Widget {
	out := make([]*Widget, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.widgets[id])
	}
	return out
}
