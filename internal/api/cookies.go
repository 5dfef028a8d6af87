package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/tourney-core/internal/auth"
)

const tokenCookieName = "token"

// secureCookies reports whether cookies on this response get the Secure
// attribute.
func (s *Server) secureCookies(r *http.Request) bool {
	return s.secCfg.Cookies.SecureAlways || requestIsSecure(r)
}

// setTokenCookie stores the session token in an HttpOnly cookie that
// lives as long as the token.
func (s *Server) setTokenCookie(w http.ResponseWriter, r *http.Request, value string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
		MaxAge:   int(auth.SessionTTL / time.Second),
	})
}

func (s *Server) clearTokenCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// tokenFromRequest returns the raw session token or "".
func tokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(tokenCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
