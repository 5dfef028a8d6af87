package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/tourney-core/internal/infrastructure/config"
	"github.com/nerrad567/tourney-core/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records the line protocol bodies posted
// to /api/v2/write.
type fakeInflux struct {
	mu     sync.Mutex
	writes []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/ping"):
		w.WriteHeader(http.StatusNoContent)
	case strings.HasSuffix(r.URL.Path, "/write"):
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.writes = append(f.writes, string(body))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeInflux) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, body := range f.writes {
		for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
			if line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

func fakeConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "tourney",
		Bucket:        "auth",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func connectFake(t *testing.T) (*influxdb.Client, *fakeInflux) {
	t.Helper()
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := influxdb.Connect(context.Background(), fakeConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, fake
}

func TestConnect_Disabled(t *testing.T) {
	cfg := fakeConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(context.Background(), fakeConfig(url))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cfg := fakeConfig(srv.URL)
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestHealthCheck(t *testing.T) {
	client, _ := connectFake(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_AfterClose(t *testing.T) {
	client, _ := connectFake(t)
	client.Close()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestWriteAuthEvent(t *testing.T) {
	client, fake := connectFake(t)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client.WriteAuthEvent("login", "success", at)
	client.WriteAuthEvent("login_failed", "failure", at)
	client.Flush()

	lines := fake.lines()
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %v", len(lines), lines)
	}
	want := "auth_events,action=login,outcome=success count=1i"
	if !strings.HasPrefix(lines[0], want) {
		t.Errorf("line[0] = %q, want prefix %q", lines[0], want)
	}
	if !strings.Contains(lines[1], "action=login_failed") {
		t.Errorf("line[1] = %q, want action=login_failed", lines[1])
	}
}

func TestWritePoint(t *testing.T) {
	client, fake := connectFake(t)

	client.WritePoint("custom",
		map[string]string{"source": "test"},
		map[string]interface{}{"value": 2.5})
	client.Flush()

	lines := fake.lines()
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "custom,source=test value=2.5") {
		t.Errorf("lines = %v", lines)
	}
}

func TestWrite_NotConnected(t *testing.T) {
	client, fake := connectFake(t)
	client.Close()

	client.WriteAuthEvent("login", "success", time.Now())
	client.Flush()

	if got := fake.lines(); len(got) != 0 {
		t.Errorf("writes after Close = %v, want none", got)
	}
}

func TestNilClient(t *testing.T) {
	var client *influxdb.Client

	if client.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
	// Must not panic.
	client.WriteAuthEvent("logout", "success", time.Now())
	client.Flush()
}

func TestNewAuthEventPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := influxdb.NewAuthEventPoint("register", "success", at)

	if p.Name() != influxdb.MeasurementAuthEvents {
		t.Errorf("Name() = %q", p.Name())
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["action"] != "register" || tags["outcome"] != "success" {
		t.Errorf("tags = %v", tags)
	}

	fields := p.FieldList()
	if len(fields) != 1 || fields[0].Key != influxdb.FieldCount {
		t.Fatalf("fields = %v", fields)
	}
	if fields[0].Value != int64(1) {
		t.Errorf("count = %v (%T), want int64(1)", fields[0].Value, fields[0].Value)
	}
}

func TestNewAuthEventPoint_ZeroTime(t *testing.T) {
	before := time.Now()
	p := influxdb.NewAuthEventPoint("logout", "success", time.Time{})
	if p.Time().Before(before) {
		t.Errorf("Time() = %v, want >= %v", p.Time(), before)
	}
}
