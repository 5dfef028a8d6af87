package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nerrad567/tourney-core/internal/infrastructure/database"
	"github.com/nerrad567/tourney-core/internal/infrastructure/keyring"
	"github.com/nerrad567/tourney-core/migrations"
)

const testServerSecret = "test-server-secret-that-is-long-enough-0123456789"

// testDB creates a temporary SQLite database with the full schema applied.
func testDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

// testHasher uses the minimum bcrypt cost to keep tests fast.
func testHasher() *Hasher {
	return NewHasherWithCost(bcrypt.MinCost)
}

func testSecret(t testing.TB) *keyring.Secret {
	t.Helper()
	s, err := keyring.NewSecretFromString(testServerSecret)
	if err != nil {
		t.Fatalf("creating secret: %v", err)
	}
	return s
}

// fakeClock is a settable time source shared by issuer, verifier and service.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSink captures events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Record(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Action
	}
	return out
}

func (r *recordingSink) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}
	}
	return r.events[len(r.events)-1]
}

// testEnv wires the whole package against one database and one clock.
type testEnv struct {
	db       *sql.DB
	users    *SQLiteUserRepository
	sessions *SQLiteSessionRepository
	hasher   *Hasher
	issuer   *Issuer
	verifier *Verifier
	service  *Service
	sink     *recordingSink
	clock    *fakeClock
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()

	db := testDB(t)
	clock := newFakeClock()
	hasher := testHasher()
	secret := testSecret(t)
	users := NewUserRepository(db)
	sessions := NewSessionRepository(db)
	sink := &recordingSink{}

	issuer := NewIssuer(secret, hasher)
	issuer.now = clock.Now

	verifier := NewVerifier(users, sessions, secret, hasher, nil)
	verifier.now = clock.Now

	svc := NewService(ServiceDeps{
		Users:    users,
		Sessions: sessions,
		Hasher:   hasher,
		Issuer:   issuer,
		Events:   sink,
	})
	svc.now = clock.Now

	return &testEnv{
		db:       db,
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		issuer:   issuer,
		verifier: verifier,
		service:  svc,
		sink:     sink,
		clock:    clock,
	}
}

// seedTestUser creates an active user with the given password.
func (e *testEnv) seedTestUser(t testing.TB, email, password string, role Role) *User {
	t.Helper()

	hash, err := e.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	u := &User{
		Name:         "Test User",
		Email:        email,
		MobileNumber: "1234567890",
		BloodGroup:   "O+",
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return u
}

// login performs a successful login and returns the token value.
func (e *testEnv) login(t testing.TB, email, password string) (*User, *IssuedToken) {
	t.Helper()

	u, tok, err := e.service.Login(context.Background(), LoginInput{Email: email, Password: password})
	if err != nil {
		t.Fatalf("Login(%s) error = %v", email, err)
	}
	return u, tok
}

func (e *testEnv) authenticate(t testing.TB, raw string, roles ...Role) AuthContext {
	t.Helper()

	ac, err := e.verifier.Authenticate(context.Background(), raw, roles...)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	return ac
}
