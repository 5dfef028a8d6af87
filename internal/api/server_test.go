package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nerrad567/tourney-core/internal/audit"
	"github.com/nerrad567/tourney-core/internal/auth"
	"github.com/nerrad567/tourney-core/internal/events"
	"github.com/nerrad567/tourney-core/internal/infrastructure/config"
	"github.com/nerrad567/tourney-core/internal/infrastructure/database"
	"github.com/nerrad567/tourney-core/internal/infrastructure/keyring"
	"github.com/nerrad567/tourney-core/internal/infrastructure/logging"
	"github.com/nerrad567/tourney-core/migrations"
)

const (
	testServerSecret = "api-test-server-secret-0123456789-abcdefghij"
	adminEmail       = "admin@tourney.test"
	adminPassword    = "admin-password-1"
)

// testAPI is a fully wired server on an httptest listener.
type testAPI struct {
	srv     *httptest.Server
	server  *Server
	service *auth.Service
	audit   *audit.SQLiteRepository
	db      *database.DB
}

func newTestAPI(t *testing.T, configure ...func(*Deps)) *testAPI {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	require.NoError(t, db.Migrate(ctx, migrations.FS))

	secret, err := keyring.NewSecretFromString(testServerSecret)
	require.NoError(t, err)
	t.Cleanup(secret.Destroy)

	logger, err := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
	require.NoError(t, err)

	users := auth.NewUserRepository(db.DB)
	sessions := auth.NewSessionRepository(db.DB)
	hasher := auth.NewHasherWithCost(bcrypt.MinCost)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	auditSink := events.NewAuditSink(auditRepo, logger.Logger)
	sinkCtx, stopSink := context.WithCancel(ctx)
	sinkDone := make(chan struct{})
	go func() {
		auditSink.Run(sinkCtx)
		close(sinkDone)
	}()
	t.Cleanup(func() {
		stopSink()
		<-sinkDone
	})

	service := auth.NewService(auth.ServiceDeps{
		Users:    users,
		Sessions: sessions,
		Hasher:   hasher,
		Issuer:   auth.NewIssuer(secret, hasher),
		Events:   events.NewFanout(auditSink),
		Logger:   logger.Logger,
	})
	_, err = service.SeedAdministrator(ctx, adminEmail, adminPassword)
	require.NoError(t, err)

	deps := Deps{
		Config:   config.APIConfig{Host: "127.0.0.1"},
		Logger:   logger,
		Service:  service,
		Verifier: auth.NewVerifier(users, sessions, secret, hasher, logger.Logger),
		Audit:    auditRepo,
		Checks:   map[string]HealthChecker{"database": db},
		Version:  "test",
	}
	for _, fn := range configure {
		fn(&deps)
	}

	server, err := New(deps)
	require.NoError(t, err)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	return &testAPI{srv: srv, server: server, service: service, audit: auditRepo, db: db}
}

// apiClient is one browser: its own cookie jar and CSRF handling.
type apiClient struct {
	t    *testing.T
	http *http.Client
	base *url.URL
}

func (a *testAPI) client(t *testing.T) *apiClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	base, err := url.Parse(a.srv.URL)
	require.NoError(t, err)
	return &apiClient{t: t, http: &http.Client{Jar: jar}, base: base}
}

// apiResponse is a decoded envelope.
type apiResponse struct {
	Status  int
	Data    json.RawMessage
	Error   *Error
	Cookies []*http.Cookie
	Header  http.Header
}

func (r apiResponse) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v))
}

func (c *apiClient) cookie(name string) string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// do sends a request. Mutating requests carry the CSRF header unless
// noCSRF is set.
func (c *apiClient) do(method, path string, body any, noCSRF ...bool) apiResponse {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base.String()+"/api/v1"+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36")
	if method != http.MethodGet && (len(noCSRF) == 0 || !noCSRF[0]) {
		if token := c.cookie(csrfCookieName); token != "" {
			req.Header.Set(csrfHeaderName, token)
		}
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var env struct {
		Data  json.RawMessage `json:"data"`
		Error *Error          `json:"error"`
	}
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return apiResponse{
		Status:  resp.StatusCode,
		Data:    env.Data,
		Error:   env.Error,
		Cookies: resp.Cookies(),
		Header:  resp.Header,
	}
}

func (c *apiClient) login(email, password string) apiResponse {
	c.t.Helper()
	return c.do(http.MethodPost, "/authentication/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (c *apiClient) mustLogin(email, password string) {
	c.t.Helper()
	resp := c.login(email, password)
	require.Equal(c.t, http.StatusOK, resp.Status, "login %s: %+v", email, resp.Error)
}

func (c *apiClient) register(email, password string) apiResponse {
	c.t.Helper()
	return c.do(http.MethodPost, "/authentication/register", map[string]string{
		"name":         "Player",
		"email":        email,
		"mobileNumber": "1234567890",
		"bloodGroup":   "O+",
		"password":     password,
	})
}

func (c *apiClient) identity() apiResponse {
	c.t.Helper()
	return c.do(http.MethodGet, "/authentication/user", nil)
}

func (c *apiClient) sessions() sessionsResponse {
	c.t.Helper()
	resp := c.do(http.MethodGet, "/authentication/sessions", nil)
	require.Equal(c.t, http.StatusOK, resp.Status)
	var out sessionsResponse
	resp.decode(c.t, &out)
	return out
}

// requireError asserts the envelope status and code.
func requireError(t *testing.T, resp apiResponse, status int, code string) {
	t.Helper()
	require.Equal(t, status, resp.Status)
	require.NotNil(t, resp.Error, "expected error envelope")
	require.Equal(t, code, resp.Error.Code)
	require.NotEmpty(t, resp.Error.ID)
	require.NotNil(t, resp.Error.Errors)
}

type failingCheck struct{}

func (failingCheck) HealthCheck(context.Context) error { return errors.New("broker unreachable") }

func TestNew_RequiresDependencies(t *testing.T) {
	logger, err := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
	require.NoError(t, err)

	_, err = New(Deps{})
	require.Error(t, err)

	_, err = New(Deps{Logger: logger})
	require.Error(t, err)

	_, err = New(Deps{Logger: logger, Service: &auth.Service{}})
	require.Error(t, err)
}

func TestNew_InvalidRateLimit(t *testing.T) {
	logger, err := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
	require.NoError(t, err)

	_, err = New(Deps{
		Logger:   logger,
		Service:  &auth.Service{},
		Verifier: &auth.Verifier{},
		Security: config.SecurityConfig{RateLimit: config.RateLimitConfig{Enabled: true, Login: "lots"}},
	})
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)

	resp := c.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.Status)

	var body struct {
		Status  string            `json:"status"`
		Version string            `json:"version"`
		Checks  map[string]string `json:"checks"`
	}
	resp.decode(t, &body)
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "test", body.Version)
	require.Equal(t, "ok", body.Checks["database"])
}

func TestHealth_Degraded(t *testing.T) {
	api := newTestAPI(t, func(d *Deps) {
		d.Checks = map[string]HealthChecker{"mqtt": failingCheck{}}
	})
	c := api.client(t)

	resp := c.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.Status)
}

func TestNotFoundEnvelope(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)

	resp := c.do(http.MethodGet, "/nope", nil)
	requireError(t, resp, http.StatusNotFound, ErrCodeNotFound)
}

func TestSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	c := api.client(t)

	resp := c.do(http.MethodGet, "/health", nil)
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestDocs(t *testing.T) {
	api := newTestAPI(t)

	resp, err := http.Get(api.srv.URL + "/api/v1/openapi.yaml")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))

	for _, path := range []string{"/api/v1/docs", "/api/v1/redoc"} {
		resp, err := http.Get(api.srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		require.Contains(t, resp.Header.Get("Content-Type"), "text/html", path)
	}
}

func TestCORS_Preflight(t *testing.T) {
	api := newTestAPI(t, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"https://app.tourney.test"}
	})

	req, err := http.NewRequest(http.MethodOptions, api.srv.URL+"/api/v1/authentication/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.tourney.test")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "https://app.tourney.test", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), csrfHeaderName)
}

func TestRecovery(t *testing.T) {
	api := newTestAPI(t)

	h := api.server.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, ErrCodeInternal, env.Error.Code)
	require.Equal(t, msgInternal, env.Error.Message)
}
