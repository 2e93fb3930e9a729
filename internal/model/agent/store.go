package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store exposes the agent catalogue for handlers and widgets.
type Store interface {
	List() []Agent
	FindByID(id string) (Agent, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Agent
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied agents.
func NewMemoryStore(items []Agent) *MemoryStore {
	return &MemoryStore{items: append([]Agent(nil), items...)}
}

// List returns the catalogue in declaration order.
func (s *MemoryStore) List() []Agent {
	return append([]Agent(nil), s.items...)
}

// FindByID looks up an agent by identifier.
func (s *MemoryStore) FindByID(id string) (Agent, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Agent{}, false
}

type catalogueEntry struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Title           string `yaml:"title"`
	Welcome         string `yaml:"welcome"`
	LoadingLabel    string `yaml:"loading_label"`
	Path            string `yaml:"path"`
	MessagePrefix   string `yaml:"message_prefix"`
	Persist         *bool  `yaml:"persist"`
	Placeholder     *bool  `yaml:"placeholder"`
	PlaceholderNote string `yaml:"placeholder_note"`
	SystemPrompt    string `yaml:"system_prompt"`
}

type catalogueFile struct {
	Agents []catalogueEntry `yaml:"agents"`
}

// LoadFile reads a YAML catalogue and merges it over base by ID. Fields set
// in the file replace the base values; unknown IDs are appended.
func LoadFile(path string, base []Agent) ([]Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent catalogue %s: %w", path, err)
	}

	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse agent catalogue %s: %w", path, err)
	}

	merged := append([]Agent(nil), base...)
	for _, entry := range file.Agents {
		if entry.ID == "" {
			return nil, fmt.Errorf("agent catalogue %s: entry without id", path)
		}
		idx := indexOf(merged, entry.ID)
		if idx < 0 {
			merged = append(merged, entry.apply(Agent{ID: entry.ID}))
			continue
		}
		merged[idx] = entry.apply(merged[idx])
	}
	return merged, nil
}

func indexOf(items []Agent, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (e catalogueEntry) apply(a Agent) Agent {
	pick := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	pick(&a.Name, e.Name)
	pick(&a.Title, e.Title)
	pick(&a.Welcome, e.Welcome)
	pick(&a.LoadingLabel, e.LoadingLabel)
	pick(&a.Path, e.Path)
	pick(&a.MessagePrefix, e.MessagePrefix)
	pick(&a.PlaceholderNote, e.PlaceholderNote)
	pick(&a.SystemPrompt, e.SystemPrompt)
	if e.Persist != nil {
		a.Persist = *e.Persist
	}
	if e.Placeholder != nil {
		a.Placeholder = *e.Placeholder
	}
	return a
}
