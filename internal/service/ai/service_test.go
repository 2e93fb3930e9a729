package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anglenexus/nexus/internal/model/agent"
	"github.com/anglenexus/nexus/internal/model/chat"
	chatservice "github.com/anglenexus/nexus/internal/service/chat"
)

// echoModel answers with a fixed reply and records what it was asked.
type echoModel struct {
	mu     sync.Mutex
	reply  string
	err    error
	inputs [][]*schema.Message
}

func (m *echoModel) record(input []*schema.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, input)
}

func (m *echoModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.record(input)
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *echoModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.record(input)
	if m.err != nil {
		return nil, m.err
	}
	var chunks []*schema.Message
	for _, word := range strings.SplitAfter(m.reply, " ") {
		chunks = append(chunks, schema.AssistantMessage(word, nil))
	}
	return schema.StreamReaderFromArray(chunks), nil
}

func (m *echoModel) last() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs[len(m.inputs)-1]
}

var today = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T, m model.BaseChatModel, opts ...Option) (*Service, *chatservice.Service) {
	t.Helper()
	sessions := chatservice.NewService()
	opts = append([]Option{WithLogger(zerolog.Nop()), WithClock(func() time.Time { return today })}, opts...)
	svc, err := NewService(context.Background(), agent.NewMemoryStore(agent.Seed()), sessions, m, opts...)
	require.NoError(t, err)
	return svc, sessions
}

func TestRespondPlaceholder(t *testing.T) {
	svc, _ := newService(t, nil)

	reply, err := svc.Respond(context.Background(), agent.Avvocato, Request{Message: "Is insider trading legal?"})
	require.NoError(t, err)
	assert.Equal(t, "avvocato", reply.Agent)
	assert.Equal(t, StatusPlaceholder, reply.Status)
	assert.Equal(t, "Avvocato agent received your query: 'Is insider trading legal?'. Legal analysis coming soon.", reply.Message)
	assert.NotEmpty(t, reply.SessionID)
}

func TestRespondWithoutModel(t *testing.T) {
	svc, _ := newService(t, nil)
	assert.False(t, svc.ModelEnabled())

	_, err := svc.Respond(context.Background(), agent.Daimon, Request{Message: "AAPL"})
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestRespondValidation(t *testing.T) {
	svc, _ := newService(t, &echoModel{reply: "x"})

	_, err := svc.Respond(context.Background(), "oracle", Request{Message: "hi"})
	assert.ErrorIs(t, err, ErrUnknownAgent)

	_, err = svc.Respond(context.Background(), agent.Weaver, Request{Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestRespondRunsChainWithSystemPromptAndHistory(t *testing.T) {
	ctx := context.Background()
	m := &echoModel{reply: "NVDA closed higher."}
	svc, sessions := newService(t, m, WithWindow(2))

	_, err := svc.Respond(ctx, agent.Weaver, Request{SessionID: "s1", Message: "first"})
	require.NoError(t, err)
	reply, err := svc.Respond(ctx, agent.Weaver, Request{SessionID: "s1", Message: "second"})
	require.NoError(t, err)
	assert.Equal(t, "NVDA closed higher.", reply.Message)
	assert.Equal(t, "s1", reply.SessionID)
	assert.Empty(t, reply.Status)

	input := m.last()
	require.Len(t, input, 4)
	assert.Equal(t, schema.System, input[0].Role)
	assert.Contains(t, input[0].Content, "You are Weaver")
	assert.Contains(t, input[0].Content, "Today's date: 2026-03-14")
	assert.Equal(t, "first", input[1].Content)
	assert.Equal(t, schema.Assistant, input[2].Role)
	assert.Equal(t, schema.User, input[3].Role)
	assert.Equal(t, "second", input[3].Content)

	session, err := sessions.GetSession(ctx, agent.Weaver, "s1")
	require.NoError(t, err)
	all, err := sessions.LoadTranscript(ctx, session)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestRespondPrefersSuppliedHistory(t *testing.T) {
	m := &echoModel{reply: "ok"}
	svc, _ := newService(t, m, WithWindow(1))

	_, err := svc.Respond(context.Background(), agent.Daimon, Request{
		Message: "and now?",
		History: []chat.Message{
			chat.NewMessage(chat.RoleUser, "dropped", today),
			chat.NewMessage(chat.RoleAssistant, "kept", today),
		},
	})
	require.NoError(t, err)

	input := m.last()
	require.Len(t, input, 3)
	assert.Equal(t, "kept", input[1].Content)
}

func TestRespondModelError(t *testing.T) {
	svc, _ := newService(t, &echoModel{err: errors.New("rate limited")})

	_, err := svc.Respond(context.Background(), agent.Daimon, Request{Message: "AAPL"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestStreamDeliversChunks(t *testing.T) {
	svc, _ := newService(t, &echoModel{reply: "markets are calm"})

	var deltas []string
	reply, err := svc.Stream(context.Background(), agent.Daimon, Request{Message: "summary"}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"markets ", "are ", "calm"}, deltas)
	assert.Equal(t, "markets are calm", reply.Message)
}

func TestStreamPlaceholderIsOneChunk(t *testing.T) {
	svc, _ := newService(t, nil)

	var deltas []string
	reply, err := svc.Stream(context.Background(), agent.Sophon, Request{Message: "build a form"}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{reply.Message}, deltas)
	assert.Equal(t, "Sophon agent received your query: 'build a form'. Interface orchestration coming soon.", reply.Message)
}

func TestBuildSystemPromptWithoutTemplate(t *testing.T) {
	pm := NewPromptManager()
	got := pm.BuildSystemPrompt(agent.Agent{ID: "oracle", Name: "Oracle", Title: "Forecasts"}, today)
	assert.Equal(t, "You are Oracle, forecasts.\n\nToday's date: 2026-03-14", got)

	_, ok := pm.Template(agent.Daimon)
	assert.True(t, ok)
}
