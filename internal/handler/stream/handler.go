package stream

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/anglenexus/nexus/internal/config"
	"github.com/anglenexus/nexus/internal/service/ai"
	"github.com/anglenexus/nexus/pkg/utils"
)

// Handler streams agent replies as Server-Sent Events
type Handler struct {
	aiSvc  *ai.Service
	models config.ModelsConfig
}

// New creates a new stream handler
func New(aiSvc *ai.Service, models config.ModelsConfig) *Handler {
	return &Handler{aiSvc: aiSvc, models: models}
}

// RegisterRoutes 注册流式输出路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/{agentID}/stream", h.handleStream)
}

// Event is the payload of every SSE frame.
type Event struct {
	Agent     string `json:"agent,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Content   string `json:"content,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleStream answers GET ?message=&model_name= with start, delta,
// message and end events, or a single error event.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	message := r.URL.Query().Get("message")
	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		sessionID = r.URL.Query().Get("session")
	}

	if strings.TrimSpace(message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}
	modelName, err := h.models.Resolve(r.URL.Query().Get("model_name"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Model '"+r.URL.Query().Get("model_name")+"' is not allowed.")
		return
	}
	a, ok := h.aiSvc.Agents().FindByID(agentID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "agent not found")
		return
	}
	if !a.Placeholder && !h.aiSvc.ModelEnabled() {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai streaming unavailable")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	logger := hlog.FromRequest(r).With().Str("agent", agentID).Logger()

	if err := utils.SendSSEEvent(w, flusher, "start", Event{Agent: a.ID, SessionID: sessionID, Content: a.Name}); err != nil {
		return
	}

	reply, err := h.aiSvc.Stream(r.Context(), agentID, ai.Request{
		SessionID: sessionID,
		Message:   message,
		ModelName: modelName,
	}, func(delta string) error {
		return utils.SendSSEEvent(w, flusher, "delta", Event{Content: delta})
	})
	if err != nil {
		if !errors.Is(err, r.Context().Err()) {
			logger.Error().Err(err).Msg("stream failed")
		}
		_ = utils.SendSSEEvent(w, flusher, "error", Event{Agent: a.ID, Error: err.Error()})
		return
	}

	_ = utils.SendSSEEvent(w, flusher, "message", Event{
		Agent:     reply.Agent,
		SessionID: reply.SessionID,
		Content:   reply.Message,
		Status:    reply.Status,
	})
	_ = utils.SendSSEEvent(w, flusher, "end", Event{Agent: reply.Agent, SessionID: reply.SessionID})
	logger.Info().Str("session", reply.SessionID).Msg("completed stream")
}
