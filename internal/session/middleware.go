package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	sessionIDContextKey = "session_id"
	csrfTokenContextKey = "csrf_token"
)

// Middleware makes sure every request carries a page session and a CSRF
// token, minting and setting cookies for new visitors.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(s.cookieName)
		if err != nil || !validToken(id) {
			id, err = generateToken()
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
				return
			}
		}
		// Refresh on every request so active sessions do not expire.
		s.setSessionCookie(c, id)

		csrf, err := c.Cookie(s.csrfCookieName)
		if err != nil || !validToken(csrf) {
			csrf, err = generateToken()
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
				return
			}
			s.setCSRFCookie(c, csrf)
		}

		c.Set(sessionIDContextKey, id)
		c.Set(csrfTokenContextKey, csrf)
		c.Next()
	}
}

// IDFromContext returns the page session id set by the middleware.
func IDFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(sessionIDContextKey)
	if !ok {
		return "", false
	}
	id, ok := val.(string)
	return id, ok && id != ""
}

// CSRFTokenFromContext returns the token pages must echo back on submit.
func CSRFTokenFromContext(c *gin.Context) string {
	val, ok := c.Get(csrfTokenContextKey)
	if !ok {
		return ""
	}
	token, _ := val.(string)
	return token
}
