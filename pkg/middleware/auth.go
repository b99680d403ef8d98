package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	pkgjwt "github.com/OmerEfron/friendlinesv2.0-sub002/pkg/jwt"
)

const (
	UserIDKey     = "user_id"
	UsernameKey   = "username"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// AuthMiddleware validates JWT bearer tokens.
type AuthMiddleware struct {
	manager *pkgjwt.Manager
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(manager *pkgjwt.Manager) *AuthMiddleware {
	return &AuthMiddleware{manager: manager}
}

// RequireAuth returns a Gin middleware that rejects requests without a
// valid bearer token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.parseBearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or missing authorization",
			})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)

		c.Next()
	}
}

// OptionalAuth returns a Gin middleware that sets actor info when a valid
// bearer token is present, and continues anonymously otherwise. Used by
// read endpoints whose results depend on who (if anyone) is asking.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := m.parseBearer(c); ok {
			c.Set(UserIDKey, claims.UserID)
			c.Set(UsernameKey, claims.Username)
		}
		c.Next()
	}
}

func (m *AuthMiddleware) parseBearer(c *gin.Context) (*pkgjwt.Claims, bool) {
	authHeader := c.GetHeader(AuthHeaderKey)
	if authHeader == "" || !strings.HasPrefix(authHeader, BearerPrefix) {
		return nil, false
	}

	token := strings.TrimPrefix(authHeader, BearerPrefix)
	claims, err := m.manager.ValidateToken(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// GetUserID extracts user ID from Gin context.
func GetUserID(c *gin.Context) string {
	if id, exists := c.Get(UserIDKey); exists {
		return id.(string)
	}
	return ""
}

// GetUsername extracts username from Gin context.
func GetUsername(c *gin.Context) string {
	if username, exists := c.Get(UsernameKey); exists {
		return username.(string)
	}
	return ""
}
