// Package transcript keeps a bounded, chronologically ordered log of chat
// turns for one widget in a key-value store.
//
// Every operation fails soft: read problems yield an empty transcript and
// write problems are logged, so a broken store never interrupts a chat.
package transcript

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anglenexus/nexus/internal/model/chat"
	"github.com/anglenexus/nexus/internal/storage"
)

const (
	DefaultKey = "weaver_chat_history"
	// MaxMessages bounds what a save writes.
	MaxMessages = 200
	// ReducedMessages is the size of the single retry after a quota failure.
	ReducedMessages = 50
)

// Store persists one transcript under a fixed key.
type Store struct {
	kv      storage.Store
	key     string
	max     int
	reduced int
	logger  zerolog.Logger
}

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

func WithMaxMessages(n int) Option {
	return func(s *Store) { s.max = n }
}

func WithReducedMessages(n int) Option {
	return func(s *Store) { s.reduced = n }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func New(kv storage.Store, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		key:     DefaultKey,
		max:     MaxMessages,
		reduced: ReducedMessages,
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.max <= 0 {
		s.max = MaxMessages
	}
	if s.reduced <= 0 || s.reduced > s.max {
		s.reduced = s.max
	}
	s.logger = s.logger.With().Str("component", "transcript").Str("key", s.key).Logger()
	return s
}

// Key returns the storage key the transcript lives under.
func (s *Store) Key() string { return s.key }

// Load returns the stored turns, or an empty slice if nothing usable is stored.
func (s *Store) Load(ctx context.Context) []chat.Message {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.Error().Err(err).Msg("error loading history")
		return []chat.Message{}
	}
	if !ok || raw == "" {
		return []chat.Message{}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.logger.Error().Err(err).Msg("error loading history")
		return []chat.Message{}
	}
	messages := make([]chat.Message, 0, len(entries))
	for i, entry := range entries {
		var m chat.Message
		if err := json.Unmarshal(entry, &m); err != nil {
			s.logger.Warn().Err(err).Int("index", i).Msg("skipping unreadable history entry")
			continue
		}
		messages = append(messages, m)
	}
	return messages
}

// Save writes the last MaxMessages turns. A quota failure triggers one retry
// with the last ReducedMessages turns; any remaining failure is only logged.
// It returns the turns actually written, or nil when nothing was.
func (s *Store) Save(ctx context.Context, messages []chat.Message) []chat.Message {
	kept := tail(messages, s.max)
	err := s.write(ctx, kept)
	if err == nil {
		return kept
	}
	s.logger.Error().Err(err).Int("messages", len(messages)).Msg("error saving history")
	if !errors.Is(err, storage.ErrQuotaExceeded) {
		return nil
	}

	kept = tail(messages, s.reduced)
	if err := s.write(ctx, kept); err != nil {
		s.logger.Error().Err(err).Int("messages", s.reduced).Msg("still failed after reducing messages")
		return nil
	}
	s.logger.Warn().Int("kept", len(kept)).Msg("history truncated to fit storage quota")
	return kept
}

// Append loads the transcript, adds turns and saves it. It returns what
// storage now holds; if the write failed that is whatever was there before.
func (s *Store) Append(ctx context.Context, turns ...chat.Message) []chat.Message {
	history := append(s.Load(ctx), turns...)
	if kept := s.Save(ctx, history); kept != nil {
		return kept
	}
	return s.Load(ctx)
}

// Clear removes the persisted transcript. Other keys are untouched.
func (s *Store) Clear(ctx context.Context) {
	if err := s.kv.Remove(ctx, s.key); err != nil {
		s.logger.Error().Err(err).Msg("error clearing history")
	}
}

func (s *Store) write(ctx context.Context, messages []chat.Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return errors.Wrap(err, "encode history")
	}
	return s.kv.Set(ctx, s.key, string(data))
}

// tail returns the last n entries, always as a non-nil slice.
func tail(messages []chat.Message, n int) []chat.Message {
	if len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	if messages == nil {
		return []chat.Message{}
	}
	return messages
}
