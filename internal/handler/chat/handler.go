package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/anglenexus/nexus/internal/config"
	"github.com/anglenexus/nexus/internal/model/agent"
	"github.com/anglenexus/nexus/internal/model/chat"
	"github.com/anglenexus/nexus/internal/service/ai"
	"github.com/anglenexus/nexus/pkg/utils"
)

// SessionHeader carries the client's conversation id in both directions.
const SessionHeader = "X-Session-ID"

// DefaultAgent answers legacy /chat messages without a routing token.
const DefaultAgent = agent.Daimon

// Handler 聊天服务的HTTP处理器
type Handler struct {
	aiSvc  *ai.Service
	models config.ModelsConfig

	pongWait   time.Duration
	pingPeriod time.Duration
}

// New 创建聊天处理器
func New(aiSvc *ai.Service, models config.ModelsConfig) *Handler {
	return &Handler{
		aiSvc:      aiSvc,
		models:     models,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

// RegisterRoutes 注册 /api 下的聊天路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/{agentID}", h.handleAgentChat)
	r.Get("/chat/{agentID}/ws", h.handleWebSocket)
}

// RegisterLegacyRoutes 注册根路径下的 /chat 入口
func (h *Handler) RegisterLegacyRoutes(r chi.Router) {
	r.Post("/chat", h.handleLegacyChat)
}

type chatRequest struct {
	Message   string         `json:"message"`
	ModelName string         `json:"model_name"`
	History   []chat.Message `json:"history,omitempty"`
}

func (h *Handler) handleAgentChat(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "No message provided")
		return
	}
	h.respond(w, r, chi.URLParam(r, "agentID"), payload)
}

// handleLegacyChat routes on a "/<agent>" token anywhere in the message.
func (h *Handler) handleLegacyChat(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "No prompt provided")
		return
	}

	agentID, message := RouteMessage(h.aiSvc.Agents().List(), payload.Message)
	hlog.FromRequest(r).Info().Str("agent", agentID).Msg("routing legacy chat request")
	payload.Message = message
	if strings.TrimSpace(message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "No message provided")
		return
	}
	h.respond(w, r, agentID, payload)
}

// RouteMessage picks the agent whose "/<id>" token occurs in message as a
// whole word and strips the token. Without a token the message goes to
// DefaultAgent.
func RouteMessage(agents []agent.Agent, message string) (string, string) {
	for _, a := range agents {
		if idx := tokenIndex(message, "/"+a.ID); idx >= 0 {
			rest := message[:idx] + message[idx+len(a.ID)+1:]
			return a.ID, strings.TrimSpace(rest)
		}
	}
	return DefaultAgent, message
}

// tokenIndex finds token bounded by whitespace or the ends of s.
func tokenIndex(s, token string) int {
	for offset := 0; offset < len(s); {
		idx := strings.Index(s[offset:], token)
		if idx < 0 {
			return -1
		}
		start := offset + idx
		end := start + len(token)
		before := start == 0 || unicode.IsSpace(rune(s[start-1]))
		after := end == len(s) || unicode.IsSpace(rune(s[end]))
		if before && after {
			return start
		}
		offset = start + 1
	}
	return -1
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, agentID string, payload chatRequest) {
	modelName, err := h.models.Resolve(payload.ModelName)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, fmt.Sprintf("Model '%s' is not allowed.", payload.ModelName))
		return
	}

	reply, err := h.aiSvc.Respond(r.Context(), agentID, ai.Request{
		SessionID: r.Header.Get(SessionHeader),
		Message:   payload.Message,
		ModelName: modelName,
		History:   payload.History,
	})
	if err != nil {
		status, message := errorStatus(err)
		if status >= http.StatusInternalServerError {
			hlog.FromRequest(r).Error().Err(err).Str("agent", agentID).Msg("chat request failed")
		}
		utils.RespondError(w, status, message)
		return
	}

	w.Header().Set(SessionHeader, reply.SessionID)
	utils.RespondJSON(w, http.StatusOK, reply)
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid JSON request")
		return chatRequest{}, false
	}
	return payload, true
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ai.ErrUnknownAgent):
		return http.StatusNotFound, "agent not found"
	case errors.Is(err, ai.ErrEmptyMessage):
		return http.StatusBadRequest, "No message provided"
	case errors.Is(err, ai.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "model backend unavailable"
	default:
		return http.StatusInternalServerError, "An error occurred: " + err.Error()
	}
}
