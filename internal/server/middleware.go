package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/notes"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const accessTokenQueryParameter = "access_token"

// authorizeRequest verifies the session token and stores the canonical user id on the context.
// The query parameter is only honoured for EventSource clients, which cannot set headers.
func (h *httpHandler) authorizeRequest(allowQueryToken bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := h.extractToken(c, allowQueryToken)
		if token == "" {
			abortUnauthorized(c)
			return
		}

		principal, err := h.authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				h.logger.Info("session token expired", zap.String("path", c.FullPath()))
			} else {
				h.logger.Warn("session token rejected", zap.String("path", c.FullPath()), zap.Error(err))
			}
			abortUnauthorized(c)
			return
		}

		canonicalID, err := h.users.ResolveCanonicalUserID(c.Request.Context(), principal)
		if err != nil {
			h.logger.Error("failed to resolve canonical user",
				zap.String("provider", principal.Provider),
				zap.String("subject", principal.Subject),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Failed to resolve user", "auth.resolve_user.failed"))
			return
		}
		id, err := notes.NewUserID(canonicalID)
		if err != nil {
			h.logger.Warn("canonical user id rejected", zap.Error(err))
			abortUnauthorized(c)
			return
		}
		c.Set(userIDContextKey, id)
		c.Next()
	}
}

func (h *httpHandler) extractToken(c *gin.Context, allowQueryToken bool) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		if token := strings.TrimSpace(header[len("Bearer "):]); token != "" {
			return token
		}
	}
	if cookie, err := c.Cookie(h.cookieName); err == nil {
		if token := strings.TrimSpace(cookie); token != "" {
			return token
		}
	}
	if allowQueryToken {
		return strings.TrimSpace(c.Query(accessTokenQueryParameter))
	}
	return ""
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
}
