package agent

// Agent describes one chat widget and the backend persona behind it.
type Agent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Title        string `json:"title"`
	Welcome      string `json:"welcome"`
	LoadingLabel string `json:"loadingLabel"`
	// Path is the endpoint the widget posts to, relative to the API base URL.
	Path string `json:"path"`
	// MessagePrefix is a routing token prepended to outgoing messages.
	MessagePrefix string `json:"messagePrefix,omitempty"`
	// Persist marks the widget whose transcript survives restarts.
	Persist bool `json:"persist"`
	// Placeholder agents answer with a canned acknowledgement.
	Placeholder     bool   `json:"placeholder"`
	PlaceholderNote string `json:"-"`
	SystemPrompt    string `json:"-"`
}

const (
	Daimon   = "daimon"
	Avvocato = "avvocato"
	Weaver   = "weaver"
	Sophon   = "sophon"
)

// Seed returns the default agent catalogue.
func Seed() []Agent {
	return []Agent{
		{
			ID:           Daimon,
			Name:         "Daimon",
			Title:        "Financial analysis",
			Welcome:      "I analyse equities and crypto markets. Ask me about a ticker, a sector or today's movers.",
			LoadingLabel: "Analyzing...",
			Path:         "/api/chat/daimon",
			SystemPrompt: "You are Daimon, a financial analysis agent. Identify the symbols the user is asking about, " +
				"state the user's intent in one sentence and answer with concise, factual market commentary.",
		},
		{
			ID:              Avvocato,
			Name:            "Avvocato",
			Title:           "Legal and compliance",
			Welcome:         "I review legal and compliance questions around listed companies and filings.",
			LoadingLabel:    "Consulting legal references...",
			Path:            "/api/chat/avvocato",
			Placeholder:     true,
			PlaceholderNote: "Legal analysis coming soon.",
		},
		{
			ID:           Weaver,
			Name:         "Weaver",
			Title:        "Weaver Intelligence",
			Welcome:      "I gather and synthesize information from multiple sources. Ask me to research companies, analyze market data, or compile comprehensive reports.",
			LoadingLabel: "Gathering information...",
			Path:         "/api/chat/weaver",
			Persist:      true,
			SystemPrompt: "You are Weaver, an information gathering agent. Break the user's question into knowledge topics, " +
				"combine what you know about each and produce a structured, sourced summary.",
		},
		{
			ID:              Sophon,
			Name:            "Sophon",
			Title:           "Interface orchestration",
			Welcome:         "Coming soon.",
			LoadingLabel:    "Thinking...",
			Path:            "/api/chat/sophon",
			Placeholder:     true,
			PlaceholderNote: "Interface orchestration coming soon.",
		},
	}
}
