package storage

import (
	"context"
	"errors"
	"fmt"

	"postly/internal/domain"
)

// DefaultSessionKey is the key the session record is stored under.
const DefaultSessionKey = "auth"

// ErrNotFound is returned by Backend.Get when the key holds no value.
var ErrNotFound = errors.New("storage key not found")

// Backend is the platform storage capability. Delete must succeed when the
// key is already absent.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// SessionStore persists the serialized session under a fixed key. It is a
// durability mirror; the session manager owns the live state.
type SessionStore struct {
	backend Backend
	key     string
}

func NewSessionStore(backend Backend, key string) *SessionStore {
	if key == "" {
		key = DefaultSessionKey
	}
	return &SessionStore{backend: backend, key: key}
}

// Key returns the storage key of the session record.
func (s *SessionStore) Key() string {
	return s.key
}

// Get returns the raw persisted text or ErrNotFound.
func (s *SessionStore) Get(ctx context.Context) (string, error) {
	raw, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("read session: %w", err)
	}
	return raw, nil
}

// Load decodes the persisted session. Absent records yield ErrNotFound and
// undecodable ones domain.ErrMalformedSession.
func (s *SessionStore) Load(ctx context.Context) (domain.Session, error) {
	raw, err := s.Get(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.DecodeSession(raw)
}

// Set serializes and writes the session.
func (s *SessionStore) Set(ctx context.Context, sess domain.Session) error {
	raw, err := domain.EncodeSession(sess)
	if err != nil {
		return err
	}
	if err := s.backend.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear removes the session record.
func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Token returns the persisted bearer token, or "" when there is no usable
// session.
func (s *SessionStore) Token(ctx context.Context) string {
	sess, err := s.Load(ctx)
	if err != nil {
		return ""
	}
	return sess.Token
}
