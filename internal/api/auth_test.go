package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/tourney-core/internal/audit"
	"github.com/nerrad567/tourney-core/internal/auth"
	"github.com/nerrad567/tourney-core/internal/infrastructure/config"
)

func TestRegisterThenLogin(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)

	resp := c.register("a@x.com", "pw12345678")
	require.Equal(t, http.StatusOK, resp.Status)
	var msg messageResponse
	resp.decode(t, &msg)
	assert.NotEmpty(t, msg.Message)
	assert.Empty(t, c.cookie(tokenCookieName), "register must not log in")

	resp = c.login("a@x.com", "pw12345678")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.NotEmpty(t, c.cookie(tokenCookieName))
	assert.NotEmpty(t, c.cookie(csrfCookieName))

	var body userResponse
	resp.decode(t, &body)
	assert.Equal(t, "a@x.com", body.User.Email)
	assert.Equal(t, auth.RoleParticipant, body.User.Role)
	assert.Equal(t, "PARTICIPANT", body.User.RoleName)

	var tokenCookie, csrfCookie *http.Cookie
	for _, ck := range resp.Cookies {
		switch ck.Name {
		case tokenCookieName:
			tokenCookie = ck
		case csrfCookieName:
			csrfCookie = ck
		}
	}
	require.NotNil(t, tokenCookie)
	require.NotNil(t, csrfCookie)
	assert.True(t, tokenCookie.HttpOnly)
	assert.Equal(t, int(auth.SessionTTL/time.Second), tokenCookie.MaxAge)
	assert.Equal(t, http.SameSiteLaxMode, tokenCookie.SameSite)
	assert.False(t, csrfCookie.HttpOnly)
	assert.Len(t, csrfCookie.Value, 2*csrfTokenBytes)
}

func TestLogin_WrongPassword(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)
	require.Equal(t, http.StatusOK, c.register("a@x.com", "pw12345678").Status)

	resp := c.login("a@x.com", "wrong")
	requireError(t, resp, http.StatusUnauthorized, ErrCodeAuthentication)
	assert.Empty(t, c.cookie(tokenCookieName))
}

func TestLogin_UnknownEmailLooksLikeWrongPassword(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)

	unknown := c.login("nobody@x.com", "pw12345678")
	wrong := c.login(adminEmail, "not-the-password")

	requireError(t, unknown, http.StatusUnauthorized, ErrCodeAuthentication)
	requireError(t, wrong, http.StatusUnauthorized, ErrCodeAuthentication)
	assert.Equal(t, unknown.Error.Message, wrong.Error.Message)
}

func TestLogin_Validation(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)

	resp := c.do(http.MethodPost, "/authentication/login", map[string]string{"email": "not-an-email"})
	requireError(t, resp, http.StatusUnprocessableEntity, ErrCodeValidation)

	fields := map[string]string{}
	for _, fe := range resp.Error.Errors {
		fields[fe.Field] = fe.Message
	}
	assert.Equal(t, "Email is badly formatted", fields["email"])
	assert.Equal(t, "Password cannot be empty", fields["password"])
}

func TestLogin_MalformedBody(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)

	resp := c.do(http.MethodPost, "/authentication/login", "just a string")
	requireError(t, resp, http.StatusUnprocessableEntity, ErrCodeValidation)
	require.Len(t, resp.Error.Errors, 1)
	assert.Equal(t, "body", resp.Error.Errors[0].Field)
}

func TestRegister_Validation(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)

	tests := []struct {
		name  string
		body  map[string]string
		field string
	}{
		{"missing name", map[string]string{"email": "b@x.com", "mobileNumber": "1234567890", "bloodGroup": "A+", "password": "pw12345678"}, "name"},
		{"short mobile", map[string]string{"name": "B", "email": "b@x.com", "mobileNumber": "12345", "bloodGroup": "A+", "password": "pw12345678"}, "mobileNumber"},
		{"letters in mobile", map[string]string{"name": "B", "email": "b@x.com", "mobileNumber": "12345abcde", "bloodGroup": "A+", "password": "pw12345678"}, "mobileNumber"},
		{"bad blood group", map[string]string{"name": "B", "email": "b@x.com", "mobileNumber": "1234567890", "bloodGroup": "C+", "password": "pw12345678"}, "bloodGroup"},
		{"short password", map[string]string{"name": "B", "email": "b@x.com", "mobileNumber": "1234567890", "bloodGroup": "A+", "password": "short"}, "password"},
		{"bad email", map[string]string{"name": "B", "email": "b-at-x", "mobileNumber": "1234567890", "bloodGroup": "A+", "password": "pw12345678"}, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := c.do(http.MethodPost, "/authentication/register", tt.body)
			requireError(t, resp, http.StatusUnprocessableEntity, ErrCodeValidation)
			require.NotEmpty(t, resp.Error.Errors)
			assert.Equal(t, tt.field, resp.Error.Errors[0].Field)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)

	require.Equal(t, http.StatusOK, c.register("a@x.com", "pw12345678").Status)
	resp := c.register("A@X.com", "pw12345678")
	requireError(t, resp, http.StatusUnprocessableEntity, ErrCodeValidation)
	assert.Equal(t, "email", resp.Error.Errors[0].Field)
}

func TestIdentity(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)

	requireError(t, c.identity(), http.StatusUnauthorized, ErrCodeAuthentication)

	c.mustLogin(adminEmail, adminPassword)
	before := c.cookie(csrfCookieName)

	resp := c.identity()
	require.Equal(t, http.StatusOK, resp.Status)
	var body userResponse
	resp.decode(t, &body)
	assert.Equal(t, adminEmail, body.User.Email)
	assert.Equal(t, "ADMINISTRATOR", body.User.RoleName)

	after := c.cookie(csrfCookieName)
	assert.NotEmpty(t, after)
	assert.NotEqual(t, before, after, "identity refreshes the CSRF cookie")
}

func TestIdentity_TamperedToken(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)
	c.mustLogin(adminEmail, adminPassword)

	raw := c.cookie(tokenCookieName)
	req, err := http.NewRequest(http.MethodGet, api.srv.URL+"/api/v1/authentication/user", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: raw[:len(raw)-2] + "xx"})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Del("Cookie")
	req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: "not.a.jwt"})
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCSRF(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)

	// Credential endpoints need no token.
	require.Equal(t, http.StatusOK, c.register("a@x.com", "pw12345678").Status)
	c.mustLogin("a@x.com", "pw12345678")
	require.Equal(t, http.StatusOK, c.identity().Status)

	t.Run("missing header", func(t *testing.T) {
		resp := c.do(http.MethodPost, "/authentication/logout/all", nil, true)
		requireError(t, resp, http.StatusForbidden, ErrCodeCSRF)
	})

	t.Run("wrong header", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, api.srv.URL+"/api/v1/authentication/logout/all", nil)
		require.NoError(t, err)
		req.Header.Set(csrfHeaderName, "deadbeef")
		resp, err := c.http.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("xsrf header accepted", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, api.srv.URL+"/api/v1/authentication/logout/all", nil)
		require.NoError(t, err)
		req.Header.Set(xsrfHeaderName, c.cookie(csrfCookieName))
		resp, err := c.http.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("checked before authentication", func(t *testing.T) {
		anon := api.client(t)
		resp := anon.do(http.MethodPost, "/authentication/logout", nil)
		requireError(t, resp, http.StatusForbidden, ErrCodeCSRF)
	})

	// The session survived the rejected requests.
	require.Equal(t, http.StatusOK, c.identity().Status)
}

func TestLogout_Current(t *testing.T) {
	api := newTestAPI(t)
	phone, laptop := api.client(t), api.client(t)
	phone.mustLogin(adminEmail, adminPassword)
	laptop.mustLogin(adminEmail, adminPassword)

	resp := phone.do(http.MethodPost, "/authentication/logout", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var out logoutResponse
	resp.decode(t, &out)
	assert.True(t, out.Redirect)
	assert.Empty(t, phone.cookie(tokenCookieName))
	assert.Empty(t, phone.cookie(csrfCookieName))

	requireError(t, phone.identity(), http.StatusUnauthorized, ErrCodeAuthentication)
	assert.Equal(t, http.StatusOK, laptop.identity().Status)
	assert.Len(t, laptop.sessions().Sessions, 1)
}

func TestLogout_All(t *testing.T) {
	api := newTestAPI(t)
	clients := []*apiClient{api.client(t), api.client(t), api.client(t)}
	for _, c := range clients {
		c.mustLogin(adminEmail, adminPassword)
	}

	resp := clients[0].do(http.MethodPost, "/authentication/logout/all", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var out logoutResponse
	resp.decode(t, &out)
	assert.False(t, out.Redirect)

	assert.Equal(t, http.StatusOK, clients[0].identity().Status)
	for _, c := range clients[1:] {
		assert.Equal(t, http.StatusUnauthorized, c.identity().Status)
	}
	assert.Len(t, clients[0].sessions().Sessions, 1)
}

func TestLogout_ByID(t *testing.T) {
	api := newTestAPI(t)
	phone, laptop := api.client(t), api.client(t)
	phone.mustLogin(adminEmail, adminPassword)
	laptop.mustLogin(adminEmail, adminPassword)

	list := phone.sessions()
	require.Len(t, list.Sessions, 2)
	var laptopID string
	for _, s := range list.Sessions {
		if !s.Current {
			laptopID = s.ID
		}
	}
	require.NotEmpty(t, laptopID)

	// Revoke the other device.
	resp := phone.do(http.MethodPost, "/authentication/logout/"+laptopID, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var out logoutResponse
	resp.decode(t, &out)
	assert.False(t, out.Redirect)
	assert.Equal(t, http.StatusUnauthorized, laptop.identity().Status)
	assert.Equal(t, http.StatusOK, phone.identity().Status)

	// Unknown and already revoked ids.
	requireError(t, phone.do(http.MethodPost, "/authentication/logout/"+laptopID, nil), http.StatusNotFound, ErrCodeNotFound)
	requireError(t, phone.do(http.MethodPost, "/authentication/logout/not-a-session", nil), http.StatusNotFound, ErrCodeNotFound)

	// Revoking the current session behaves like logout.
	resp = phone.do(http.MethodPost, "/authentication/logout/"+list.CurrentSessionID, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	resp.decode(t, &out)
	assert.True(t, out.Redirect)
	assert.Empty(t, phone.cookie(tokenCookieName))
}

func TestLogout_ByID_OtherUsersSession(t *testing.T) {
	api := newTestAPI(t)
	admin, player := api.client(t), api.client(t)
	admin.mustLogin(adminEmail, adminPassword)
	require.Equal(t, http.StatusOK, player.register("p@x.com", "pw12345678").Status)
	player.mustLogin("p@x.com", "pw12345678")

	victim := player.sessions().CurrentSessionID
	resp := admin.do(http.MethodPost, "/authentication/logout/"+victim, nil)
	requireError(t, resp, http.StatusNotFound, ErrCodeNotFound)
	assert.Equal(t, http.StatusOK, player.identity().Status)
}

func TestFetchSessions(t *testing.T) {
	api := newTestAPI(t)
	first, second := api.client(t), api.client(t)
	first.mustLogin(adminEmail, adminPassword)
	second.mustLogin(adminEmail, adminPassword)

	for _, c := range []*apiClient{first, second} {
		list := c.sessions()
		require.Len(t, list.Sessions, 2)

		current := 0
		for _, s := range list.Sessions {
			if s.Current {
				current++
				assert.Equal(t, list.CurrentSessionID, s.ID)
			}
			assert.Equal(t, "Chrome", s.Browser)
			assert.Equal(t, "Linux", s.OS)
			assert.Equal(t, "127.0.0.1", s.IPAddress)
			assert.WithinDuration(t, s.CreatedAt.Add(auth.SessionTTL), s.ExpiresAt, time.Second)
		}
		assert.Equal(t, 1, current)
	}
	assert.NotEqual(t, first.sessions().CurrentSessionID, second.sessions().CurrentSessionID)
}

func TestResetPassword(t *testing.T) {
	api := newTestAPI(t)
	c, other := api.client(t), api.client(t)
	require.Equal(t, http.StatusOK, c.register("a@x.com", "pw12345678").Status)
	c.mustLogin("a@x.com", "pw12345678")
	other.mustLogin("a@x.com", "pw12345678")
	oldToken := c.cookie(tokenCookieName)

	resp := c.do(http.MethodPost, "/authentication/reset-password", map[string]string{"password": "brand-new-pw"})
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Empty(t, c.cookie(tokenCookieName))
	assert.Empty(t, c.cookie(csrfCookieName))

	// Every session is gone, including the caller's.
	assert.Equal(t, http.StatusUnauthorized, other.identity().Status)

	// Replaying the old token fails too.
	req, err := http.NewRequest(http.MethodGet, api.srv.URL+"/api/v1/authentication/user", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: oldToken})
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, raw.StatusCode)

	requireError(t, c.login("a@x.com", "pw12345678"), http.StatusUnauthorized, ErrCodeAuthentication)
	c.mustLogin("a@x.com", "brand-new-pw")
}

func TestResetPassword_Validation(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)
	c.mustLogin(adminEmail, adminPassword)

	resp := c.do(http.MethodPost, "/authentication/reset-password", map[string]string{"password": "short"})
	requireError(t, resp, http.StatusUnprocessableEntity, ErrCodeValidation)
	assert.Equal(t, http.StatusOK, c.identity().Status)
}

func TestRoleEnforcement(t *testing.T) {
	api := newTestAPI(t)
	admin, player := api.client(t), api.client(t)
	admin.mustLogin(adminEmail, adminPassword)
	require.Equal(t, http.StatusOK, player.register("p@x.com", "pw12345678").Status)
	player.mustLogin("p@x.com", "pw12345678")

	profile := map[string]string{"name": "New Name", "mobileNumber": "0987654321", "bloodGroup": "AB-"}
	invite := map[string]any{"emails": []string{"new@x.com"}}

	requireError(t, player.do(http.MethodPost, "/administrator/add", invite), http.StatusForbidden, ErrCodeAccessDenied)
	requireError(t, player.do(http.MethodGet, "/administrator/audit", nil), http.StatusForbidden, ErrCodeAccessDenied)
	requireError(t, admin.do(http.MethodPost, "/participant/profile", profile), http.StatusForbidden, ErrCodeAccessDenied)

	resp := player.do(http.MethodPost, "/participant/profile", profile)
	require.Equal(t, http.StatusOK, resp.Status)
	var body userResponse
	resp.decode(t, &body)
	assert.Equal(t, "New Name", body.User.Name)
	assert.Equal(t, "AB-", body.User.BloodGroup)

	require.Equal(t, http.StatusOK, admin.do(http.MethodPost, "/administrator/add", invite).Status)
}

func TestInviteThenRegister(t *testing.T) {
	api := newTestAPI(t)
	admin := api.client(t)
	admin.mustLogin(adminEmail, adminPassword)

	resp := admin.do(http.MethodPost, "/administrator/add", map[string]any{
		"emails": []string{"ref@x.com", adminEmail, "ref@x.com"},
	})
	require.Equal(t, http.StatusOK, resp.Status)
	var result auth.InviteResult
	resp.decode(t, &result)
	assert.Equal(t, []string{"ref@x.com"}, result.Invited)
	assert.Equal(t, []string{adminEmail}, result.Skipped)

	invitee := api.client(t)
	requireError(t, invitee.login("ref@x.com", "pw12345678"), http.StatusUnauthorized, ErrCodeAuthentication)

	require.Equal(t, http.StatusOK, invitee.register("ref@x.com", "pw12345678").Status)
	resp = invitee.login("ref@x.com", "pw12345678")
	require.Equal(t, http.StatusOK, resp.Status)
	var body userResponse
	resp.decode(t, &body)
	assert.Equal(t, "ADMINISTRATOR", body.User.RoleName)
}

func TestInvite_Validation(t *testing.T) {
	api := newTestAPI(t)
	admin := api.client(t)
	admin.mustLogin(adminEmail, adminPassword)

	requireError(t, admin.do(http.MethodPost, "/administrator/add", map[string]any{"emails": []string{}}),
		http.StatusUnprocessableEntity, ErrCodeValidation)
	requireError(t, admin.do(http.MethodPost, "/administrator/add", map[string]any{"emails": []string{"nope"}}),
		http.StatusUnprocessableEntity, ErrCodeValidation)
	requireError(t, admin.do(http.MethodPost, "/administrator/add", map[string]any{"emails": []string{"x@x.com"}, "role": "OWNER"}),
		http.StatusUnprocessableEntity, ErrCodeValidation)
}

func TestAuditLog(t *testing.T) {
	api := newTestAPI(t)
	admin, stranger := api.client(t), api.client(t)
	admin.mustLogin(adminEmail, adminPassword)
	requireError(t, stranger.login(adminEmail, "bad-password"), http.StatusUnauthorized, ErrCodeAuthentication)

	var result audit.ListResult
	require.Eventually(t, func() bool {
		resp := admin.do(http.MethodGet, "/administrator/audit?action=login_failed", nil)
		if resp.Status != http.StatusOK {
			return false
		}
		resp.decode(t, &result)
		return result.Total == 1
	}, 2*time.Second, 20*time.Millisecond)

	entry := result.Logs[0]
	assert.Equal(t, auth.ActionLoginFailed, entry.Action)
	assert.Equal(t, auth.OutcomeFailure, entry.Outcome)
	assert.Equal(t, "api", entry.Source)

	resp := admin.do(http.MethodGet, "/administrator/audit?limit=abc", nil)
	requireError(t, resp, http.StatusUnprocessableEntity, ErrCodeValidation)
}

func TestRateLimit(t *testing.T) {
	api := newTestAPI(t, func(d *Deps) {
		d.Security.RateLimit = config.RateLimitConfig{Enabled: true, Login: "2-M"}
	})
	c := api.client(t)

	requireError(t, c.login(adminEmail, "bad-password"), http.StatusUnauthorized, ErrCodeAuthentication)
	requireError(t, c.login(adminEmail, "bad-password"), http.StatusUnauthorized, ErrCodeAuthentication)

	resp := c.login(adminEmail, adminPassword)
	requireError(t, resp, http.StatusTooManyRequests, ErrCodeRateLimited)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	// Register shares the budget.
	requireError(t, c.register("a@x.com", "pw12345678"), http.StatusTooManyRequests, ErrCodeRateLimited)
}

func TestSecureCookies(t *testing.T) {
	api := newTestAPI(t, func(d *Deps) {
		d.Security.Cookies.SecureAlways = true
	})
	c := api.client(t)

	resp := c.login(adminEmail, adminPassword)
	require.Equal(t, http.StatusOK, resp.Status)
	require.NotEmpty(t, resp.Cookies)
	for _, ck := range resp.Cookies {
		assert.True(t, ck.Secure, ck.Name)
	}
}
