package session

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(svc.Middleware(), svc.CSRFMiddleware())
	r.GET("/", func(c *gin.Context) {
		id, _ := IDFromContext(c)
		c.String(http.StatusOK, id)
	})
	r.POST("/submit", func(c *gin.Context) {
		id, _ := IDFromContext(c)
		c.String(http.StatusOK, id)
	})
	r.POST("/reset", func(c *gin.Context) {
		id, err := svc.Reset(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id)
	})
	return r
}

func cookieValue(t *testing.T, rec *httptest.ResponseRecorder, name string) string {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func TestMiddlewareIssuesSessionAndCSRF(t *testing.T) {
	svc := NewService(time.Hour)
	r := newTestRouter(svc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	id := cookieValue(t, rec, svc.CookieName())
	if !validToken(id) {
		t.Fatalf("expected session cookie, got %q", id)
	}
	if rec.Body.String() != id {
		t.Fatalf("context id mismatch: %q vs %q", rec.Body.String(), id)
	}
	if csrf := cookieValue(t, rec, svc.CSRFCookieName()); !validToken(csrf) {
		t.Fatalf("expected csrf cookie, got %q", csrf)
	}
}

func TestMiddlewareKeepsExistingSession(t *testing.T) {
	svc := NewService(time.Hour)
	r := newTestRouter(svc)
	id, _ := generateToken()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: svc.CookieName(), Value: id})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Body.String() != id {
		t.Fatalf("session should be preserved: want %s got %s", id, rec.Body.String())
	}
}

func TestCSRFRejectsMissingOrMismatchedToken(t *testing.T) {
	svc := NewService(time.Hour)
	r := newTestRouter(svc)
	token, _ := generateToken()
	other, _ := generateToken()

	cases := map[string]string{
		"missing":    "",
		"mismatched": other,
	}
	for name, submitted := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/submit", nil)
			req.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: token})
			if submitted != "" {
				req.Header.Set(svc.CSRFHeaderName(), submitted)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rec.Code)
			}
		})
	}
}

func TestCSRFAcceptsHeaderOrFormField(t *testing.T) {
	svc := NewService(time.Hour)
	r := newTestRouter(svc)
	token, _ := generateToken()

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: token})
	req.Header.Set(svc.CSRFHeaderName(), token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("header token rejected: %d", rec.Code)
	}

	form := url.Values{svc.CSRFFormField(): {token}}
	req = httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: token})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("form token rejected: %d", rec.Code)
	}
}

func TestResetIssuesNewSession(t *testing.T) {
	svc := NewService(time.Hour)
	r := newTestRouter(svc)
	id, _ := generateToken()
	token, _ := generateToken()

	req := httptest.NewRequest(http.MethodPost, "/reset", nil)
	req.AddCookie(&http.Cookie{Name: svc.CookieName(), Value: id})
	req.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: token})
	req.Header.Set(svc.CSRFHeaderName(), token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if got := rec.Body.String(); got == id || !validToken(got) {
		t.Fatalf("expected a fresh session id, got %q", got)
	}
}
