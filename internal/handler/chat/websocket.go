package chat

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/anglenexus/nexus/internal/service/ai"
	"github.com/anglenexus/nexus/pkg/utils"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// outgoingMessage is one server frame on the chat socket.
type outgoingMessage struct {
	Type      string `json:"type"`
	Agent     string `json:"agent,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// handleWebSocket keeps one conversation open: every text frame is a chat
// request and is answered by a reply or error frame.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	if _, ok := h.aiSvc.Agents().FindByID(agentID); !ok {
		utils.RespondError(w, http.StatusNotFound, "agent not found")
		return
	}

	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		sessionID = r.URL.Query().Get("session")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	logger := hlog.FromRequest(r).With().Str("agent", agentID).Str("session", sessionID).Logger()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.pongWait))
		return nil
	})

	// gorilla allows one concurrent writer; pings go through the same channel.
	writes := make(chan outgoingMessage, 4)
	go h.writeLoop(ctx, conn, writes, &logger)

	// Model calls run off the read loop so pongs keep the deadline fresh.
	requests := make(chan chatRequest, 8)
	go h.answerLoop(ctx, agentID, sessionID, requests, writes)

	writes <- outgoingMessage{Type: "connected", Agent: agentID, SessionID: sessionID}
	logger.Info().Msg("websocket connected")

	for {
		var payload chatRequest
		if err := conn.ReadJSON(&payload); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(h.pongWait))

		select {
		case requests <- payload:
		case <-ctx.Done():
			return
		}
	}
}

// answerLoop answers requests one at a time, in arrival order.
func (h *Handler) answerLoop(ctx context.Context, agentID, sessionID string, requests <-chan chatRequest, writes chan<- outgoingMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-requests:
			reply := h.answer(ctx, agentID, sessionID, payload)
			select {
			case writes <- reply:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Handler) answer(ctx context.Context, agentID, sessionID string, payload chatRequest) outgoingMessage {
	fail := func(message string) outgoingMessage {
		return outgoingMessage{Type: "error", Agent: agentID, SessionID: sessionID, Error: message}
	}

	if strings.TrimSpace(payload.Message) == "" {
		return fail("No message provided")
	}
	modelName, err := h.models.Resolve(payload.ModelName)
	if err != nil {
		return fail("Model '" + payload.ModelName + "' is not allowed.")
	}

	reply, err := h.aiSvc.Respond(ctx, agentID, ai.Request{
		SessionID: sessionID,
		Message:   payload.Message,
		ModelName: modelName,
		History:   payload.History,
	})
	if err != nil {
		_, message := errorStatus(err)
		return fail(message)
	}
	return outgoingMessage{
		Type:      "reply",
		Agent:     reply.Agent,
		SessionID: reply.SessionID,
		Message:   reply.Message,
		Status:    reply.Status,
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, writes <-chan outgoingMessage, logger *zerolog.Logger) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-writes:
			msg.Timestamp = time.Now().Unix()
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn().Err(err).Str("type", msg.Type).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
