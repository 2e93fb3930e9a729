package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anglenexus/nexus/internal/model/agent"
	"github.com/anglenexus/nexus/internal/model/chat"
	chatservice "github.com/anglenexus/nexus/internal/service/chat"
)

var (
	ErrUnknownAgent     = errors.New("unknown agent")
	ErrEmptyMessage     = errors.New("no message provided")
	ErrModelUnavailable = errors.New("model backend unavailable")
)

// StatusPlaceholder marks replies from agents that are not built yet.
const StatusPlaceholder = "placeholder"

// Request is one user turn addressed to an agent.
type Request struct {
	SessionID string
	Message   string
	ModelName string
	// History, when set, replaces the server-side window for this turn.
	History []chat.Message
}

// Reply is the agent's answer to a Request.
type Reply struct {
	Agent     string `json:"agent"`
	Message   string `json:"message"`
	Status    string `json:"status,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Service answers agent requests, either with a canned placeholder or by
// running the agent's prompt chain over the chat model.
type Service struct {
	agents   agent.Store
	sessions *chatservice.Service
	prompts  *PromptManager
	chain    compose.Runnable[map[string]any, *schema.Message]
	window   int
	now      func() time.Time
	logger   zerolog.Logger
}

type Option func(*Service)

// WithWindow sets how many recent turns are replayed to the model.
func WithWindow(window int) Option {
	return func(s *Service) {
		if window > 0 {
			s.window = window
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService builds the responder. chatModel may be nil, in which case only
// placeholder agents can answer.
func NewService(ctx context.Context, agents agent.Store, sessions *chatservice.Service, chatModel model.BaseChatModel, opts ...Option) (*Service, error) {
	s := &Service{
		agents:   agents,
		sessions: sessions,
		prompts:  NewPromptManager(),
		window:   chatservice.DefaultWindow,
		now:      time.Now,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	if chatModel == nil {
		return s, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	s.chain = runnable
	return s, nil
}

// ModelEnabled reports whether model-backed agents can answer.
func (s *Service) ModelEnabled() bool {
	return s.chain != nil
}

// Agents exposes the catalogue the service answers for.
func (s *Service) Agents() agent.Store {
	return s.agents
}

// Respond produces a complete reply for agentID.
func (s *Service) Respond(ctx context.Context, agentID string, req Request) (Reply, error) {
	return s.respond(ctx, agentID, req, nil)
}

// Stream behaves like Respond but hands every content chunk to onDelta as
// the model produces it. Placeholder replies arrive as a single chunk.
func (s *Service) Stream(ctx context.Context, agentID string, req Request, onDelta func(string) error) (Reply, error) {
	return s.respond(ctx, agentID, req, onDelta)
}

func (s *Service) respond(ctx context.Context, agentID string, req Request, onDelta func(string) error) (Reply, error) {
	a, ok := s.agents.FindByID(agentID)
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	query := strings.TrimSpace(req.Message)
	if query == "" {
		return Reply{}, ErrEmptyMessage
	}
	if !a.Placeholder && s.chain == nil {
		return Reply{}, ErrModelUnavailable
	}

	session, err := s.sessions.EnsureSession(ctx, a.ID, req.SessionID)
	if err != nil {
		return Reply{}, err
	}
	logger := s.logger.With().Str("agent", a.ID).Str("session", session.ID).Logger()

	reply := Reply{Agent: a.ID, SessionID: session.ID}
	if a.Placeholder {
		reply.Message = PlaceholderReply(a, query)
		reply.Status = StatusPlaceholder
		if onDelta != nil {
			if err := onDelta(reply.Message); err != nil {
				return Reply{}, err
			}
		}
	} else {
		history, err := s.history(ctx, session, req.History)
		if err != nil {
			return Reply{}, err
		}
		input := map[string]any{
			"system":  s.prompts.BuildSystemPrompt(a, s.now()),
			"history": toSchemaMessages(history),
			"query":   query,
		}

		var out *schema.Message
		if onDelta == nil {
			out, err = s.chain.Invoke(ctx, input)
		} else {
			out, err = s.streamChain(ctx, input, onDelta)
		}
		if err != nil {
			return Reply{}, fmt.Errorf("failed to run AI chain: %w", err)
		}
		reply.Message = out.Content
	}

	now := s.now()
	if err := s.sessions.SaveMessage(ctx, session,
		chat.NewMessage(chat.RoleUser, query, now),
		chat.NewMessage(chat.RoleAssistant, reply.Message, now),
	); err != nil {
		logger.Warn().Err(err).Msg("failed to record turn")
	}

	logger.Info().
		Str("model", req.ModelName).
		Int("length", len(reply.Message)).
		Msg("generated response")
	return reply, nil
}

func (s *Service) streamChain(ctx context.Context, input map[string]any, onDelta func(string) error) (*schema.Message, error) {
	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, recvErr
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			if err := onDelta(chunk.Content); err != nil {
				return nil, err
			}
		}
	}
	if len(chunks) == 0 {
		return &schema.Message{Role: schema.Assistant}, nil
	}
	return schema.ConcatMessages(chunks)
}

func (s *Service) history(ctx context.Context, session chat.Session, supplied []chat.Message) ([]chat.Message, error) {
	if len(supplied) > 0 {
		if len(supplied) > s.window {
			supplied = supplied[len(supplied)-s.window:]
		}
		return supplied, nil
	}
	return s.sessions.History(ctx, session, s.window)
}

// PlaceholderReply is the canned acknowledgement of an agent that is not
// built yet.
func PlaceholderReply(a agent.Agent, query string) string {
	reply := fmt.Sprintf("%s agent received your query: '%s'.", a.Name, query)
	if a.PlaceholderNote != "" {
		reply += " " + a.PlaceholderNote
	}
	return reply
}

func toSchemaMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}
	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
