package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

// Bucket layout: sessions maps id to a JSON record; user_sessions holds
// "<userID>/<sessionID>" keys with empty values as a per-user index.
var (
	bucketSessions     = []byte("sessions")
	bucketUserSessions = []byte("user_sessions")
)

// boltSession is the stored form. TokenHash is excluded from Session's JSON
// so it needs its own record type.
type boltSession struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	TokenHash string     `json:"token_hash"`
	Client    ClientMeta `json:"client"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func (b *boltSession) session() Session {
	return Session{
		ID:        b.ID,
		UserID:    b.UserID,
		TokenHash: b.TokenHash,
		Client:    b.Client,
		CreatedAt: b.CreatedAt,
		ExpiresAt: b.ExpiresAt,
	}
}

// BoltSessionRepository implements SessionRepository on a bbolt file,
// keeping session churn off the main SQLite database.
type BoltSessionRepository struct {
	db *bbolt.DB
}

// OpenBoltSessionRepository opens (or creates) the bbolt file at path.
func OpenBoltSessionRepository(path string) (*BoltSessionRepository, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt session store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSessions); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketUserSessions)
		return err
	})
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("creating session buckets: %w", err)
	}

	return &BoltSessionRepository{db: db}, nil
}

// Close closes the underlying bbolt database.
func (r *BoltSessionRepository) Close() error {
	return r.db.Close()
}

func userIndexKey(userID, sessionID string) []byte {
	return []byte(userID + "/" + sessionID)
}

func userIndexPrefix(userID string) []byte {
	return []byte(userID + "/")
}

// Create stores a session. ExpiresAt defaults to CreatedAt + SessionTTL.
func (r *BoltSessionRepository) Create(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.ID == "" || s.UserID == "" {
		return fmt.Errorf("creating session: id and user id are required")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = s.CreatedAt.Add(SessionTTL)
	}

	data, err := json.Marshal(boltSession{
		ID:        s.ID,
		UserID:    s.UserID,
		TokenHash: s.TokenHash,
		Client:    s.Client,
		CreatedAt: s.CreatedAt.UTC(),
		ExpiresAt: s.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		sessions := tx.Bucket(bucketSessions)
		if sessions.Get([]byte(s.ID)) != nil {
			return fmt.Errorf("creating session: id %s already exists", s.ID)
		}
		if err := sessions.Put([]byte(s.ID), data); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		return tx.Bucket(bucketUserSessions).Put(userIndexKey(s.UserID, s.ID), nil)
	})
}

// GetByID returns ErrSessionNotFound when no session has that id.
func (r *BoltSessionRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out *Session
	err := r.db.View(func(tx *bbolt.Tx) error {
		rec, err := getBoltSession(tx, id)
		if err != nil {
			return err
		}
		s := rec.session()
		out = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns the user's sessions, newest first.
func (r *BoltSessionRepository) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sessions := []Session{}
	err := r.db.View(func(tx *bbolt.Tx) error {
		recs, err := userSessions(tx, userID)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			sessions = append(sessions, rec.session())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// DeleteByID removes a session. Deleting a missing id is not an error.
func (r *BoltSessionRepository) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		rec, err := getBoltSession(tx, id)
		if err == ErrSessionNotFound { //nolint:errorlint // sentinel returned unwrapped by getBoltSession
			return nil
		}
		if err != nil {
			return err
		}
		return deleteBoltSession(tx, rec)
	})
}

// DeleteAllForUser removes the user's sessions except exceptID.
func (r *BoltSessionRepository) DeleteAllForUser(ctx context.Context, userID, exceptID string) (int, error) {
	return r.deleteMatching(ctx, userID, func(rec *boltSession) bool {
		return rec.ID != exceptID
	})
}

// PurgeExpired removes the user's sessions older than SessionTTL.
func (r *BoltSessionRepository) PurgeExpired(ctx context.Context, userID string, now time.Time) (int, error) {
	return r.deleteMatching(ctx, userID, func(rec *boltSession) bool {
		return !rec.CreatedAt.Add(SessionTTL).After(now)
	})
}

// PurgeAllExpired removes every session older than SessionTTL.
func (r *BoltSessionRepository) PurgeAllExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	err := r.db.Update(func(tx *bbolt.Tx) error {
		var expired []*boltSession
		err := tx.Bucket(bucketSessions).ForEach(func(_, v []byte) error {
			var rec boltSession
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding session: %w", err)
			}
			if !rec.CreatedAt.Add(SessionTTL).After(now) {
				expired = append(expired, &rec)
			}
			return nil
		})
		if err != nil {
			return err
		}
		// Mutating a bucket during ForEach is not allowed.
		for _, rec := range expired {
			if err := deleteBoltSession(tx, rec); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (r *BoltSessionRepository) deleteMatching(ctx context.Context, userID string, match func(*boltSession) bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	err := r.db.Update(func(tx *bbolt.Tx) error {
		recs, err := userSessions(tx, userID)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if !match(rec) {
				continue
			}
			if err := deleteBoltSession(tx, rec); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func getBoltSession(tx *bbolt.Tx, id string) (*boltSession, error) {
	data := tx.Bucket(bucketSessions).Get([]byte(id))
	if data == nil {
		return nil, ErrSessionNotFound
	}
	var rec boltSession
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &rec, nil
}

// userSessions loads every session indexed under userID.
func userSessions(tx *bbolt.Tx, userID string) ([]*boltSession, error) {
	prefix := userIndexPrefix(userID)
	var recs []*boltSession

	c := tx.Bucket(bucketUserSessions).Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		rec, err := getBoltSession(tx, string(k[len(prefix):]))
		if err == ErrSessionNotFound { //nolint:errorlint // sentinel returned unwrapped by getBoltSession
			continue
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func deleteBoltSession(tx *bbolt.Tx, rec *boltSession) error {
	if err := tx.Bucket(bucketSessions).Delete([]byte(rec.ID)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if err := tx.Bucket(bucketUserSessions).Delete(userIndexKey(rec.UserID, rec.ID)); err != nil {
		return fmt.Errorf("deleting session index: %w", err)
	}
	return nil
}
