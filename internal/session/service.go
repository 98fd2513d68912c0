package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Service issues the anonymous page-session cookie and the CSRF token that
// travels with it. A page session owns exactly one conversation.
type Service struct {
	ttl            time.Duration
	cookieName     string
	csrfCookieName string
	csrfHeaderName string
	csrfFormField  string
}

// NewService constructs a session service whose cookies live for ttl.
func NewService(ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		ttl:            ttl,
		cookieName:     "statwizard_session",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
		csrfFormField:  "csrf_token",
	}
}

// CookieName returns the cookie holding the page session id.
func (s *Service) CookieName() string {
	return s.cookieName
}

// CSRFCookieName returns the cookie used for CSRF tokens.
func (s *Service) CSRFCookieName() string {
	return s.csrfCookieName
}

// CSRFHeaderName returns the CSRF header name.
func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}

// CSRFFormField returns the form field carrying the CSRF token.
func (s *Service) CSRFFormField() string {
	return s.csrfFormField
}

// TTL reports the cookie lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Reset starts a fresh page session for the client and returns its id. The
// previous conversation is left to expire.
func (s *Service) Reset(c *gin.Context) (string, error) {
	id, err := generateToken()
	if err != nil {
		return "", err
	}
	s.setSessionCookie(c, id)
	c.Set(sessionIDContextKey, id)
	return id, nil
}

func (s *Service) setSessionCookie(c *gin.Context, id string) {
	setCookie(c, &http.Cookie{
		Name:     s.cookieName,
		Value:    id,
		MaxAge:   s.maxAge(),
		Path:     "/",
		Secure:   gin.Mode() == gin.ReleaseMode,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Service) setCSRFCookie(c *gin.Context, token string) {
	setCookie(c, &http.Cookie{
		Name:     s.csrfCookieName,
		Value:    token,
		MaxAge:   s.maxAge(),
		Path:     "/",
		Secure:   gin.Mode() == gin.ReleaseMode,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Service) maxAge() int {
	ttl := int(s.ttl.Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	return ttl
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func validToken(v string) bool {
	if len(v) != 64 {
		return false
	}
	_, err := hex.DecodeString(v)
	return err == nil
}
