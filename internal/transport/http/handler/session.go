package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"paperbrain/internal/app"
	"paperbrain/internal/transport/http/response"
)

type SessionHandler struct {
	sessions *app.SessionManager
}

type CreateSessionRequest struct {
	Title string `json:"title" binding:"max=256"`
}

func NewSessionHandler(sessions *app.SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Create(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	var req CreateSessionRequest
	// the body is optional
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), ownerID, c.Param("id"), req.Title)
	if err != nil {
		respondError(c, err, "create session failed")
		return
	}
	response.Created(c, session)
}

func (h *SessionHandler) List(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	sessions, err := h.sessions.List(c.Request.Context(), ownerID, c.Param("id"))
	if err != nil {
		respondError(c, err, "list sessions failed")
		return
	}
	response.OK(c, sessions)
}

func (h *SessionHandler) Get(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	session, err := h.sessions.Get(c.Request.Context(), ownerID, c.Param("id"))
	if err != nil {
		respondError(c, err, "get session failed")
		return
	}
	response.OK(c, session)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	if err := h.sessions.Delete(c.Request.Context(), ownerID, c.Param("id")); err != nil {
		respondError(c, err, "delete session failed")
		return
	}
	response.NoContent(c)
}
