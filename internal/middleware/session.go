package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitskillbridge/skillbridge-backend/internal/response"
	"github.com/sitskillbridge/skillbridge-backend/internal/service"
)

// ContextKeySession is the Gin context key for the *service.UserSession.
const ContextKeySession = "session"

// CheckSingleDeviceSession validates the JWT's JTI against the active session
// in Redis and attaches the UserSession. A mismatch means the user signed in
// elsewhere or was signed out.
func CheckSingleDeviceSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if err := authService.ValidateSession(c.Request.Context(), claims); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Set(ContextKeySession, service.NewUserSession(authService, service.CurrentUser{
			ID:    claims.UserID,
			Email: claims.Email,
		}))
		c.Next()
	}
}

// GetSession retrieves the UserSession from the Gin context.
func GetSession(c *gin.Context) *service.UserSession {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return nil
	}
	s, ok := val.(*service.UserSession)
	if !ok {
		return nil
	}
	return s
}
