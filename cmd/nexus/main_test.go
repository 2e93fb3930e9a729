package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ergochat/readline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anglenexus/nexus/internal/client"
	"github.com/anglenexus/nexus/internal/config"
	"github.com/anglenexus/nexus/internal/model/agent"
	"github.com/anglenexus/nexus/internal/model/chat"
	"github.com/anglenexus/nexus/internal/storage"
	"github.com/anglenexus/nexus/internal/transcript"
	"github.com/anglenexus/nexus/internal/widget"
)

type scriptedLines struct{ lines []string }

func (s *scriptedLines) ReadLine() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	if line == "^C" {
		return "", readline.ErrInterrupt
	}
	return line, nil
}

type countingSender struct{ messages []string }

func (c *countingSender) Send(_ context.Context, _ string, req client.ChatRequest) (client.ChatResponse, error) {
	c.messages = append(c.messages, req.Message)
	return client.ChatResponse{Message: "ack"}, nil
}

func TestRunREPL(t *testing.T) {
	ctx := context.Background()
	weaver, _ := agent.NewMemoryStore(agent.Seed()).FindByID(agent.Weaver)
	kv := storage.NewMemoryStore(0)
	sender := &countingSender{}
	var out bytes.Buffer
	w := widget.New(weaver, sender, widget.NewTerminalRenderer(&out, weaver.Name),
		widget.WithTranscript(transcript.New(kv)))

	lines := &scriptedLines{lines: []string{"Hello", "^C", "/close", "ignored", "/open", "again", "/clear", "/quit", "never"}}
	require.NoError(t, runREPL(ctx, w, lines, &out))

	assert.Equal(t, []string{"Hello", "again"}, sender.messages)
	assert.Empty(t, w.Transcript(ctx))
	assert.Contains(t, out.String(), "panel is closed")
	assert.Contains(t, out.String(), "transcript cleared")
	assert.Equal(t, []string{"never"}, lines.lines)
}

func TestRunREPLStopsOnEOF(t *testing.T) {
	weaver, _ := agent.NewMemoryStore(agent.Seed()).FindByID(agent.Weaver)
	w := widget.New(weaver, &countingSender{}, widget.NewTerminalRenderer(io.Discard, weaver.Name))

	require.NoError(t, runREPL(context.Background(), w, &scriptedLines{}, io.Discard))
	assert.True(t, w.IsOpen())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func backend(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"message": reply, "agent": "weaver"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Setenv("NEXUS_API_BASE_URL", baseURL)
	t.Setenv("NEXUS_STORAGE_DRIVER", "sqlite")
	t.Setenv("NEXUS_SQLITE_PATH", filepath.Join(t.TempDir(), "nexus.db"))
	t.Setenv("NEXUS_MARKDOWN", "false")
	t.Setenv("NEXUS_LOG_FORMAT", "json")
	t.Setenv("NEXUS_AGENTS_FILE", "")
}

func TestSendAndHistoryCommands(t *testing.T) {
	setEnv(t, backend(t, "Hi").URL)

	out, err := execute(t, "send", "weaver", "Hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "Hi")

	out, err = execute(t, "history", "show", "--json")
	require.NoError(t, err)
	var messages []chat.Message
	require.NoError(t, json.Unmarshal([]byte(out), &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "Hello", messages[0].Content)
	assert.Equal(t, chat.RoleAssistant, messages[1].Role)
	assert.Equal(t, "Hi", messages[1].Content)

	out, err = execute(t, "history", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "weaver_chat_history")

	out, err = execute(t, "history", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "no stored messages")
}

func TestSendCommandFailureReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()
	setEnv(t, srv.URL)

	out, err := execute(t, "send", "daimon", "AAPL")
	require.Error(t, err)
	assert.Contains(t, out, widget.ApologyText)
}

func TestHistoryRejectsNonPersistingAgent(t *testing.T) {
	setEnv(t, "http://127.0.0.1:1")

	_, err := execute(t, "history", "show", "daimon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keeps no transcript")

	_, err = execute(t, "send", "oracle", "hi")
	require.Error(t, err)
}

func TestAgentsCommand(t *testing.T) {
	setEnv(t, "http://127.0.0.1:1")

	out, err := execute(t, "agents")
	require.NoError(t, err)
	assert.Contains(t, out, "weaver")
	assert.Contains(t, out, "/api/chat/sophon")
	assert.Contains(t, out, "placeholder")
}

func TestStorageOptionsCarriesQuotaToRedis(t *testing.T) {
	opts := storageOptions(config.StorageConfig{
		Driver:        "redis",
		RedisAddr:     "cache:6379",
		RedisPassword: "secret",
		RedisDB:       2,
		KeyPrefix:     "nexus:",
		QuotaBytes:    1024,
	})

	assert.Equal(t, "redis", opts.Driver)
	assert.Equal(t, 1024, opts.QuotaBytes)
	assert.Equal(t, storage.RedisOptions{Addr: "cache:6379", Password: "secret", DB: 2, KeyPrefix: "nexus:"}, opts.Redis)
}
