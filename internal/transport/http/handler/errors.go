package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"paperbrain/internal/app"
	"paperbrain/internal/transport/http/middleware"
	"paperbrain/internal/transport/http/response"
)

// respondError maps service errors onto status codes. Anything unclassified
// is logged through c.Errors and reported as fallback.
func respondError(c *gin.Context, err error, fallback string) {
	var turnErr *app.TurnError
	switch {
	case errors.Is(err, app.ErrValidation):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrUnauthenticated):
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthenticated")
	case errors.Is(err, app.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, "document not found")
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, "session not found")
	case errors.Is(err, app.ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, app.ErrConflict):
		response.Error(c, http.StatusConflict, response.CodeConflict, err.Error())
	case errors.As(err, &turnErr) && errors.Is(err, app.ErrRetrievalTimeout):
		response.ErrorWithData(c, http.StatusGatewayTimeout, response.CodeRetrievalTimeout, "retrieval timed out",
			gin.H{"userMessage": turnErr.UserMessage})
	case errors.As(err, &turnErr):
		response.ErrorWithData(c, http.StatusBadGateway, response.CodeRetrievalFailure, "retrieval failed",
			gin.H{"userMessage": turnErr.UserMessage})
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func ownerFromContext(c *gin.Context) (string, bool) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
	}
	return ownerID, ok
}
