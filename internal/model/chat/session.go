package chat

import "time"

// Session groups the server-side turns of one widget instance.
type Session struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agentId"`
	CreatedAt time.Time `json:"createdAt"`
}
