package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"paperbrain/internal/app"
	"paperbrain/internal/transport/http/response"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type MessageHandler struct {
	orchestrator *app.QueryOrchestrator
	log          *app.ConversationLog
}

type PostMessageRequest struct {
	Text           string `json:"text"`
	IdempotencyKey string `json:"idempotencyKey"`
}

func NewMessageHandler(orchestrator *app.QueryOrchestrator, log *app.ConversationLog) *MessageHandler {
	return &MessageHandler{
		orchestrator: orchestrator,
		log:          log,
	}
}

// Post runs one turn. The idempotency key may come from the body or the
// Idempotency-Key header; the body wins.
func (h *MessageHandler) Post(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	}

	assistant, err := h.orchestrator.Handle(c.Request.Context(), app.HandleInput{
		OwnerID:        ownerID,
		SessionID:      c.Param("id"),
		Text:           req.Text,
		IdempotencyKey: key,
	})
	if err != nil {
		respondError(c, err, "send message failed")
		return
	}
	response.OK(c, assistant)
}

func (h *MessageHandler) List(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	messages, err := h.log.List(c.Request.Context(), ownerID, c.Param("id"))
	if err != nil {
		respondError(c, err, "list messages failed")
		return
	}
	response.OK(c, messages)
}
