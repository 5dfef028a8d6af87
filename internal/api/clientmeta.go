package api

import (
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/nerrad567/tourney-core/internal/auth"
)

// maxUserAgentLength caps what is stored per session.
const maxUserAgentLength = 512

// uaRule maps a User-Agent substring to a display name. Order matters:
// Edge and Opera also advertise Chrome, and Chrome advertises Safari.
type uaRule struct {
	token string
	name  string
}

var browserRules = []uaRule{
	{"Edg/", "Edge"},
	{"OPR/", "Opera"},
	{"Firefox/", "Firefox"},
	{"FxiOS/", "Firefox"},
	{"CriOS/", "Chrome"},
	{"Chrome/", "Chrome"},
	{"Safari/", "Safari"},
	{"curl/", "curl"},
}

var osRules = []uaRule{
	{"Windows", "Windows"},
	{"Android", "Android"},
	{"iPhone", "iOS"},
	{"iPad", "iOS"},
	{"Mac OS X", "macOS"},
	{"CrOS", "ChromeOS"},
	{"Linux", "Linux"},
}

// clientMetaFromRequest describes the client for the session list.
func clientMetaFromRequest(r *http.Request) auth.ClientMeta {
	ua := truncateUTF8(r.UserAgent(), maxUserAgentLength)
	return auth.ClientMeta{
		Browser:   matchRule(ua, browserRules),
		OS:        matchRule(ua, osRules),
		UserAgent: ua,
		IPAddress: clientIP(r),
	}
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func matchRule(ua string, rules []uaRule) string {
	for _, rule := range rules {
		if strings.Contains(ua, rule.token) {
			return rule.name
		}
	}
	return ""
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
