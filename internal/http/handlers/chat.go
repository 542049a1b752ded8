package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/autoventas/sales-ai-platform/internal/statestore"
	"github.com/autoventas/sales-ai-platform/internal/turn"
	"github.com/autoventas/sales-ai-platform/pkg/logging"
)

type turnHandler interface {
	HandleTurn(ctx context.Context, req turn.Request) (turn.Response, error)
}

// ChatHandler exposes the conversation engine over JSON for web clients.
type ChatHandler struct {
	turns  turnHandler
	logger *logging.Logger
}

// NewChatHandler creates the JSON chat handler.
func NewChatHandler(turns turnHandler, logger *logging.Logger) *ChatHandler {
	if turns == nil {
		panic("handlers: turn handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{turns: turns, logger: logger}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Channel   string `json:"channel,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

type chatResponse struct {
	SessionID          string   `json:"session_id"`
	Reply              string   `json:"reply"`
	SuggestedQuestions []string `json:"suggested_questions,omitempty"`
	Duplicate          bool     `json:"duplicate,omitempty"`
}

// Chat handles POST /api/v1/chat requests.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" && strings.TrimSpace(req.SessionID) != "" {
		// An empty message on an existing session is a no-op; new
		// sessions get the greeting.
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = uuid.NewString()
	}
	if req.Channel == "" {
		req.Channel = "api"
	}

	resp, err := h.turns.HandleTurn(r.Context(), turn.Request{
		SessionID: req.SessionID,
		Message:   req.Message,
		Channel:   req.Channel,
		MessageID: req.MessageID,
	})
	if err != nil {
		switch {
		case errors.Is(err, turn.ErrValidation):
			writeJSONError(w, http.StatusBadRequest, "invalid request")
		case errors.Is(err, statestore.ErrStorageUnavailable):
			h.logger.Error("chat turn failed, storage unavailable", "error", err, "session_id", req.SessionID)
			w.Header().Set("Retry-After", "2")
			writeJSONError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		default:
			h.logger.Error("chat turn failed", "error", err, "session_id", req.SessionID)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		SessionID:          req.SessionID,
		Reply:              resp.Reply,
		SuggestedQuestions: resp.SuggestedQuestions,
		Duplicate:          resp.Duplicate,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
