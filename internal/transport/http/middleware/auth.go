package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"paperbrain/internal/app"
	"paperbrain/internal/transport/http/response"
)

const ContextOwnerIDKey = "owner_id"

type OwnerResolver interface {
	ResolveOwner(r *http.Request) (string, error)
}

func AuthOwner(resolver OwnerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, err := resolver.ResolveOwner(c.Request)
		if err != nil {
			if errors.Is(err, app.ErrUnauthenticated) {
				response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or missing token")
			} else {
				_ = c.Error(err)
				response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "resolve owner failed")
			}
			c.Abort()
			return
		}

		c.Set(ContextOwnerIDKey, ownerID)
		c.Next()
	}
}

func OwnerID(c *gin.Context) (string, bool) {
	value, exists := c.Get(ContextOwnerIDKey)
	if !exists {
		return "", false
	}
	ownerID, ok := value.(string)
	return ownerID, ok && ownerID != ""
}
