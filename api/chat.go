package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ragline/ragline/internal/chat"
	"github.com/ragline/ragline/internal/log"
)

// Answerer runs one answer pipeline cycle. Defined here so handler tests
// can substitute the orchestrator.
type Answerer interface {
	Answer(ctx context.Context, sessionID, query string) (*chat.Result, error)
}

// ChatHandler handles the chat endpoint.
type ChatHandler struct {
	orchestrator Answerer
	logger       log.Logger
}

// NewChatHandler creates a chat handler backed by the given orchestrator.
func NewChatHandler(orchestrator Answerer, logger log.Logger) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.handleChat)
}

// ChatRequest is the request payload for POST /chat. SessionID is optional;
// a fresh id is generated when absent.
type ChatRequest struct {
	SessionID string `json:"sessionID"`
	Query     string `json:"query"`
}

// ChatResponse is the success payload. Response is a string or a structured
// object depending on the configured response format.
type ChatResponse struct {
	Response any `json:"response"`
}

// handleChat validates the request, assigns a session id when missing, and
// runs the pipeline. Validation happens before any collaborator is called.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing 'query' in the request")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
		h.logger.Debug("generated session id", "session_id", req.SessionID)
	}

	res, err := h.orchestrator.Answer(r.Context(), req.SessionID, req.Query)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chat.ErrValidation) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Response: res.Answer})
}
