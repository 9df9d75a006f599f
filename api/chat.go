package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/poiesic/docinx/chat"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	MaxTokens int    `json:"max_tokens"`
}

// chat answers with 200 whenever the request is well formed, including
// when the answer is an apology.
func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body: "+err.Error()))
		return
	}
	req := chat.Request{
		UserID:    userFrom(r.Context()),
		SessionID: body.SessionID,
		Message:   body.Message,
		MaxTokens: body.MaxTokens,
	}
	if err := chat.Validate(req); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Chat.Send(r.Context(), req))
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Chat.Sessions(r.Context(), userFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []chat.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) sessionMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.Chat.History(r.Context(), chi.URLParam(r, "sessionID"), userFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]messageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, newMessageView(m))
	}
	writeJSON(w, http.StatusOK, views)
}
