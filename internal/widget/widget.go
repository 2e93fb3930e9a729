// Package widget drives one agent chat panel: visibility, sending user input
// to the backend, rendering replies and, for the persisting agent, keeping
// the transcript in local storage.
package widget

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anglenexus/nexus/internal/client"
	"github.com/anglenexus/nexus/internal/model/agent"
	"github.com/anglenexus/nexus/internal/model/chat"
	"github.com/anglenexus/nexus/internal/transcript"
)

const (
	ApologyText    = "Sorry, I encountered an error. Please try again."
	NoResponseText = "No response received"
	DefaultModel   = "o3-mini"
)

// Sender delivers a chat request to the backend.
type Sender interface {
	Send(ctx context.Context, path string, req client.ChatRequest) (client.ChatResponse, error)
}

// Widget holds the state of one chat panel. Send may run concurrently with
// itself; nothing is serialised beyond transcript writes.
type Widget struct {
	agent     agent.Agent
	sender    Sender
	view      Renderer
	history   *transcript.Store
	modelName string
	now       func() time.Time
	logger    zerolog.Logger

	mu       sync.Mutex
	open     bool
	busy     bool
	restored bool

	// historyMu orders load-append-save cycles of concurrent sends.
	historyMu sync.Mutex
}

type Option func(*Widget)

// WithTranscript attaches the store used when the agent persists its turns.
func WithTranscript(store *transcript.Store) Option {
	return func(w *Widget) { w.history = store }
}

func WithModelName(name string) Option {
	return func(w *Widget) {
		if name != "" {
			w.modelName = name
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Widget) { w.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(w *Widget) { w.logger = logger }
}

// New builds a closed widget and shows its welcome placeholder.
func New(a agent.Agent, sender Sender, view Renderer, opts ...Option) *Widget {
	w := &Widget{
		agent:     a,
		sender:    sender,
		view:      view,
		modelName: DefaultModel,
		now:       time.Now,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	if !a.Persist {
		w.history = nil
	}
	w.logger = w.logger.With().Str("agent", a.ID).Logger()
	w.view.Reset(a.Welcome)
	return w
}

func (w *Widget) Agent() agent.Agent { return w.agent }

func (w *Widget) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// Busy reports whether input is disabled by an in-flight send.
func (w *Widget) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// Toggle flips visibility and returns the new state. The first open of a
// persisting widget with nothing rendered restores the stored transcript.
func (w *Widget) Toggle(ctx context.Context) bool {
	w.mu.Lock()
	w.open = !w.open
	open := w.open
	restore := open && w.history != nil && !w.restored && w.view.MessageCount() == 0
	if restore {
		w.restored = true
	}
	w.mu.Unlock()

	if !open {
		w.view.Hide()
		return false
	}
	w.view.Show()
	if restore {
		w.restore(ctx)
	}
	return true
}

func (w *Widget) restore(ctx context.Context) {
	messages := w.history.Load(ctx)
	if len(messages) == 0 {
		return
	}
	w.view.HideWelcome()
	for _, msg := range messages {
		w.view.RenderMessage(msg)
	}
	w.logger.Debug().Int("messages", len(messages)).Msg("restored transcript")
}

// Send renders text as a user turn, posts it and renders the reply. Empty
// input is ignored. A failed request renders ApologyText and the error is
// returned for the caller's information; the widget stays usable.
func (w *Widget) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	w.view.HideWelcome()
	userMsg := chat.NewMessage(chat.RoleUser, text, w.now())
	w.view.RenderMessage(userMsg)
	w.record(ctx, userMsg)

	w.setBusy(true)
	w.view.ShowLoading(w.agent.LoadingLabel)

	resp, err := w.sender.Send(ctx, w.agent.Path, client.ChatRequest{
		Message:   w.agent.MessagePrefix + text,
		ModelName: w.modelName,
	})
	w.view.HideLoading()

	reply := ApologyText
	if err != nil {
		w.logger.Error().Err(err).Msg("send failed")
	} else if resp.Message != "" {
		reply = resp.Message
	} else {
		reply = NoResponseText
	}

	assistantMsg := chat.NewMessage(chat.RoleAssistant, reply, w.now())
	w.view.RenderMessage(assistantMsg)
	w.record(ctx, assistantMsg)

	w.setBusy(false)
	return err
}

// Clear drops the stored transcript and resets the view to the welcome text.
func (w *Widget) Clear(ctx context.Context) {
	if w.history != nil {
		w.historyMu.Lock()
		w.history.Clear(ctx)
		w.historyMu.Unlock()
	}
	w.view.Reset(w.agent.Welcome)
}

// Transcript returns the persisted turns, or nil for agents that keep none.
func (w *Widget) Transcript(ctx context.Context) []chat.Message {
	if w.history == nil {
		return nil
	}
	return w.history.Load(ctx)
}

func (w *Widget) record(ctx context.Context, msg chat.Message) {
	if w.history == nil {
		return
	}
	w.historyMu.Lock()
	defer w.historyMu.Unlock()
	w.history.Append(ctx, msg)
}

func (w *Widget) setBusy(busy bool) {
	w.mu.Lock()
	w.busy = busy
	w.mu.Unlock()
	w.view.SetInputEnabled(!busy)
}
