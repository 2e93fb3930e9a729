package utils

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// RequestIDHeader carries the server-assigned request id on every response.
const RequestIDHeader = "X-Request-ID"

// ErrorBody is the JSON shape of every failed API call. The error text is
// what clients show the user, so it stays in the wording the widgets expect.
type ErrorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Int("status", status).Msg("failed to encode response")
	}
}

// RespondError 发送错误响应，附带已写入响应头的请求ID
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorBody{
		Error:     message,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}
