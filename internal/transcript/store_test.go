package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/anglenexus/nexus/internal/model/chat"
	"github.com/anglenexus/nexus/internal/storage"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func turns(n int) []chat.Message {
	out := make([]chat.Message, n)
	for i := range out {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		out[i] = chat.NewMessage(role, fmt.Sprintf("turn %03d", i), epoch.Add(time.Duration(i)*time.Second))
	}
	return out
}

func newStore(kv storage.Store, opts ...Option) *Store {
	return New(kv, append([]Option{WithLogger(zerolog.Nop())}, opts...)...)
}

// scriptedKV fails Set for values larger than limit and records attempts.
type scriptedKV struct {
	*storage.MemoryStore
	limit    int
	setErr   error
	getErr   error
	attempts []int
}

func (s *scriptedKV) Get(ctx context.Context, key string) (string, bool, error) {
	if s.getErr != nil {
		return "", false, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *scriptedKV) Set(ctx context.Context, key, value string) error {
	var decoded []json.RawMessage
	_ = json.Unmarshal([]byte(value), &decoded)
	s.attempts = append(s.attempts, len(decoded))
	if s.setErr != nil {
		return s.setErr
	}
	if s.limit > 0 && len(decoded) > s.limit {
		return errors.Wrap(storage.ErrQuotaExceeded, "scripted")
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func TestSaveKeepsLastMaxMessagesInOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(storage.NewMemoryStore(0))

	all := turns(205)
	s.Save(ctx, all)

	got := s.Load(ctx)
	require.Len(t, got, MaxMessages)
	require.Equal(t, all[5:], got)
	require.Equal(t, "turn 005", got[0].Content)
	require.Equal(t, "turn 204", got[199].Content)
}

func TestLoadWithNothingStored(t *testing.T) {
	got := newStore(storage.NewMemoryStore(0)).Load(context.Background())
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestLoadMalformedData(t *testing.T) {
	cases := map[string]string{
		"not json":      "{weaver",
		"object":        `{"role":"user"}`,
		"string":        `"hello"`,
		"number":        `42`,
		"null":          `null`,
		"array of junk": `[1, 2, 3]`,
		"empty":         ``,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := storage.NewMemoryStore(0)
			require.NoError(t, kv.Set(ctx, DefaultKey, raw))

			got := newStore(kv).Load(ctx)
			require.NotNil(t, got)
			require.Empty(t, got)
		})
	}
}

func TestAppendKeepsReadableTurnsAroundABadEntry(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore(0)
	require.NoError(t, kv.Set(ctx, DefaultKey, `[
		{"role":"user","content":"Hello","timestamp":"2026-01-01T00:00:00.000Z"},
		{"role":"assistant","content":"Hi","timestamp":1767225600000},
		{"role":"user","content":42,"timestamp":"2026-01-01T00:00:02.000Z"},
		{"role":"assistant","content":"Still here","timestamp":"2026-01-01T00:00:03.000Z"}
	]`))
	s := newStore(kv)

	loaded := s.Load(ctx)
	require.Len(t, loaded, 3)
	require.Equal(t, "Hi", loaded[1].Content)
	require.True(t, loaded[1].Timestamp.IsZero())

	saved := s.Append(ctx, chat.NewMessage(chat.RoleUser, "next", epoch))
	require.Len(t, saved, 4)

	var contents []string
	for _, m := range s.Load(ctx) {
		contents = append(contents, m.Content)
	}
	require.Equal(t, []string{"Hello", "Hi", "Still here", "next"}, contents)
}

func TestLoadStorageError(t *testing.T) {
	kv := &scriptedKV{MemoryStore: storage.NewMemoryStore(0), getErr: errors.New("disk gone")}
	got := newStore(kv).Load(context.Background())
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestClearRemovesOnlyOwnKey(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore(0)
	require.NoError(t, kv.Set(ctx, "daimon_prefs", "keep"))

	s := newStore(kv)
	s.Save(ctx, turns(3))
	require.Len(t, s.Load(ctx), 3)

	s.Clear(ctx)
	require.Empty(t, s.Load(ctx))
	s.Clear(ctx)

	v, ok, err := kv.Get(ctx, "daimon_prefs")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "keep", v)
}

func TestSaveRetriesWithReducedHistoryOnQuota(t *testing.T) {
	ctx := context.Background()
	kv := &scriptedKV{MemoryStore: storage.NewMemoryStore(0), limit: 50}
	s := newStore(kv)

	all := turns(200)
	s.Save(ctx, all)

	require.Equal(t, []int{200, 50}, kv.attempts)
	got := s.Load(ctx)
	require.Equal(t, all[150:], got)
}

func TestSaveRetryUsesRealByteQuota(t *testing.T) {
	ctx := context.Background()
	all := turns(200)

	full, err := json.Marshal(all)
	require.NoError(t, err)
	reduced, err := json.Marshal(all[150:])
	require.NoError(t, err)

	quota := len(DefaultKey) + (len(full)+len(reduced))/2
	s := newStore(storage.NewMemoryStore(quota))
	s.Save(ctx, all)

	require.Equal(t, all[150:], s.Load(ctx))
}

func TestSaveSwallowsSecondQuotaFailure(t *testing.T) {
	ctx := context.Background()
	kv := &scriptedKV{MemoryStore: storage.NewMemoryStore(0), limit: 10}
	s := newStore(kv)
	s.Save(ctx, turns(4))

	require.NotPanics(t, func() { s.Save(ctx, turns(120)) })
	require.Equal(t, []int{4, 120, 50}, kv.attempts)
	// previous value survives
	require.Len(t, s.Load(ctx), 4)
}

func TestSaveDoesNotRetryOtherErrors(t *testing.T) {
	kv := &scriptedKV{MemoryStore: storage.NewMemoryStore(0), setErr: errors.New("read-only")}
	s := newStore(kv)
	s.Save(context.Background(), turns(60))
	require.Equal(t, []int{60}, kv.attempts)
}

func TestAppendAddsTurnsAfterExistingHistory(t *testing.T) {
	ctx := context.Background()
	s := newStore(storage.NewMemoryStore(0), WithKey("weaver"), WithMaxMessages(3))

	s.Append(ctx, turns(2)...)
	more := chat.NewMessage(chat.RoleUser, "next", epoch.Add(time.Hour))
	latest := chat.NewMessage(chat.RoleAssistant, "reply", epoch.Add(2*time.Hour))
	saved := s.Append(ctx, more, latest)

	require.Len(t, saved, 3)
	require.Equal(t, "turn 001", saved[0].Content)
	require.Equal(t, saved, s.Load(ctx))
	require.Equal(t, "weaver", s.Key())
}

func TestAppendReturnsWhatWasPersisted(t *testing.T) {
	ctx := context.Background()
	kv := &scriptedKV{MemoryStore: storage.NewMemoryStore(0), limit: 50}
	s := newStore(kv)

	all := turns(120)
	saved := s.Append(ctx, all...)
	require.Len(t, saved, ReducedMessages)
	require.Equal(t, s.Load(ctx), saved)

	kv.setErr = errors.New("read-only")
	saved = s.Append(ctx, chat.NewMessage(chat.RoleUser, "lost", epoch))
	require.Equal(t, all[70:], saved)
}

func TestReducedNeverExceedsMax(t *testing.T) {
	s := New(storage.NewMemoryStore(0), WithMaxMessages(10), WithReducedMessages(40))
	require.Equal(t, 10, s.reduced)
}
