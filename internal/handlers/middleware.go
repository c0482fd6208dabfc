package handlers

import (
	"net/http"
	"strings"

	"set_and_wait/internal/models"

	"github.com/gin-gonic/gin"
)

// ctxOperator is the gin context key holding the authenticated models.User.
const ctxOperator = "operator"

// operatorMiddleware rejects requests without a valid bearer token and
// stores the operator the token was issued to.
func (h *Handler) operatorMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
		return
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header format"})
		return
	}

	u, err := h.services.ParseToken(token)
	if err != nil {
		if h.log != nil {
			h.log.Debugw("auth_token_rejected", "path", c.FullPath(), "err", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	c.Set(ctxOperator, u)
	c.Next()
}

// actorOf names the operator behind the request for abort attribution.
func actorOf(c *gin.Context) models.Actor {
	if u, ok := c.Get(ctxOperator); ok {
		if user, ok := u.(models.User); ok {
			return models.UserActor(user)
		}
	}
	return models.ActorSystem
}
