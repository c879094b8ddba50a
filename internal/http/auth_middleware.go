package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"care-relay/internal/domain"
	"care-relay/internal/service"
)

const authIdentityKey = "auth_identity"

// AuthMiddleware resuelve la identidad del token (header Bearer o query ?token=)
// y la guarda en el contexto. Si el Authenticator rechaza el token responde 401.
func AuthMiddleware(auth service.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "authenticator not configured"})
			c.Abort()
			return
		}

		identity, err := auth.Authenticate(c.Request.Context(), tokenFromRequest(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(authIdentityKey, identity)
		c.Next()
	}
}

// GetIdentity obtiene la identidad autenticada desde el contexto.
func GetIdentity(c *gin.Context) (domain.Identity, bool) {
	val, ok := c.Get(authIdentityKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := val.(domain.Identity)
	return identity, ok
}

// RequireRole corta la request si la identidad no tiene el rol indicado.
func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok || identity.Role != role {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > len("bearer ") && strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return strings.TrimSpace(c.Query("token"))
}
