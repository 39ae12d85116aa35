package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/cardbook/internal/model"
	"github.com/sakif/cardbook/internal/service"
	"github.com/sakif/cardbook/internal/validation"
)

type MessageHandler struct {
	messages *service.MessageService
	validate *validation.Validator
	res      *Responder
	logger   *slog.Logger
}

// NewMessageHandler serves the inbox and follower notifications.
func NewMessageHandler(messages *service.MessageService, v *validation.Validator, res *Responder, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, validate: v, res: res, logger: logger}
}

type notifyRequest struct {
	MessageBody string `json:"messageBody" validate:"required,max=500"`
	Category    string `json:"category"    validate:"required,oneof=DELETE CHANGE"`
}

// HandleInbox handles GET /api/messages?category.
func (h *MessageHandler) HandleInbox(w http.ResponseWriter, r *http.Request) {
	inbox, err := h.messages.ListInbox(r.Context(), callerID(r), r.URL.Query().Get("category"))
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, inbox)
}

// HandleNotify handles POST /api/messages/{cardId}. It sends a message to
// every follower of the caller's card.
func (h *MessageHandler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	cardID, ok := pathID(w, r, h.validate, h.res, "cardId")
	if !ok {
		return
	}
	var req notifyRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	sent, err := h.messages.NotifyFollowers(r.Context(), callerID(r), cardID,
		req.MessageBody, model.MessageCategory(req.Category))
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.created(w, map[string]int{"sent": sent})
}

// HandleMarkRead handles PATCH /api/messages/{messageId}/read.
func (h *MessageHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	messageID, ok := pathID(w, r, h.validate, h.res, "messageId")
	if !ok {
		return
	}
	if err := h.messages.MarkRead(r.Context(), callerID(r), messageID); err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.message(w, "message marked as read")
}
