package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/tourney-core/internal/auth"
	"github.com/nerrad567/tourney-core/internal/infrastructure/config"
	"github.com/nerrad567/tourney-core/internal/infrastructure/database"
	"github.com/nerrad567/tourney-core/internal/infrastructure/keyring"
	"github.com/nerrad567/tourney-core/internal/infrastructure/logging"
)

// authStack is the account and session layer shared by every command.
type authStack struct {
	users    *auth.SQLiteUserRepository
	sessions auth.SessionRepository
	hasher   *auth.Hasher
	secret   *keyring.Secret

	closers []io.Closer
}

// openAuthStack builds the repositories and the hasher. The server secret is
// sealed into an enclave and the config field is blanked so the config no
// longer hands it out. The original string is immutable and is left to the
// garbage collector; only the enclave copy is protected.
func openAuthStack(cfg *config.Config, db *database.DB, log *logging.Logger) (*authStack, error) {
	secret, err := keyring.NewSecretFromString(cfg.Security.ServerSecret)
	if err != nil {
		return nil, fmt.Errorf("protecting server secret: %w", err)
	}
	cfg.Security.ServerSecret = ""

	st := &authStack{
		users:  auth.NewUserRepository(db.DB),
		hasher: auth.NewHasher(),
		secret: secret,
	}

	switch cfg.Sessions.Backend {
	case config.SessionBackendBbolt:
		repo, err := auth.OpenBoltSessionRepository(cfg.Sessions.BboltPath)
		if err != nil {
			secret.Destroy()
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		st.sessions = repo
		st.closers = append(st.closers, repo)
	default:
		st.sessions = auth.NewSessionRepository(db.DB)
	}
	log.Info("session store ready", "backend", cfg.Sessions.Backend)

	return st, nil
}

// service builds an auth.Service emitting events to sink, tagged source.
func (st *authStack) service(sink auth.EventSink, source string, log *logging.Logger) *auth.Service {
	return auth.NewService(auth.ServiceDeps{
		Users:    st.users,
		Sessions: st.sessions,
		Hasher:   st.hasher,
		Issuer:   auth.NewIssuer(st.secret, st.hasher),
		Events:   sink,
		Logger:   log.Logger,
		Source:   source,
	})
}

func (st *authStack) verifier(log *logging.Logger) *auth.Verifier {
	return auth.NewVerifier(st.users, st.sessions, st.secret, st.hasher, log.Logger)
}

// Close releases the session store and destroys the secret.
func (st *authStack) Close() error {
	var firstErr error
	for _, c := range st.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	st.secret.Destroy()
	return firstErr
}

// purgeExpired removes every session that expired before now.
func (st *authStack) purgeExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := st.sessions.PurgeAllExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("purging expired sessions: %w", err)
	}
	return n, nil
}
