package handler

import (
	"github.com/gin-gonic/gin"

	"paperbrain/internal/app"
	"paperbrain/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Me(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err, "query user failed")
		return
	}
	response.OK(c, user)
}
