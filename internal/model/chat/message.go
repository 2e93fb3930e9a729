package chat

import (
	"encoding/json"
	"time"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TimestampLayout matches the millisecond UTC form browsers emit for ISO-8601.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Message is a single chat turn. Values are never mutated after creation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage stamps a turn with now in UTC.
func NewMessage(role Role, content string, now time.Time) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: now.UTC(),
	}
}

type wireMessage struct {
	Role      Role            `json:"role"`
	Content   string          `json:"content"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// MarshalJSON writes the timestamp as an ISO-8601 string.
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{Role: m.Role, Content: m.Content}
	if !m.Timestamp.IsZero() {
		ts, err := json.Marshal(m.Timestamp.UTC().Format(TimestampLayout))
		if err != nil {
			return nil, err
		}
		w.Timestamp = ts
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts any RFC 3339 timestamp string. A timestamp that is
// unparsable or not a string leaves the zero time.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Role = w.Role
	m.Content = w.Content
	m.Timestamp = time.Time{}
	var raw string
	if err := json.Unmarshal(w.Timestamp, &raw); err != nil || raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		m.Timestamp = ts.UTC()
	}
	return nil
}
