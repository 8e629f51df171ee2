// Package session owns the authenticated state of the running client.
//
// The Manager is the single source of truth for whether a user is logged in
// during the process lifetime. The persisted copy in storage.SessionStore is
// only read once, at Initialize, and cleared on Logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"postly/internal/domain"
	"postly/internal/storage"
)

// ErrInvalidSession is returned by Login when the credentials are incomplete.
var ErrInvalidSession = errors.New("invalid session credentials")

// Store is the persistence the manager needs.
type Store interface {
	Load(ctx context.Context) (domain.Session, error)
	Clear(ctx context.Context) error
}

// State is a snapshot of the manager.
type State struct {
	User    *domain.User
	Token   string
	Loading bool
}

// IsAuthenticated is the only predicate callers may use to branch on session
// validity.
func (s State) IsAuthenticated() bool {
	return s.Token != ""
}

// Role returns the role of the current user, or "" when logged out.
func (s State) Role() domain.Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// Manager holds the in-memory session.
type Manager struct {
	store  Store
	logger *logrus.Logger

	mu      sync.RWMutex
	user    *domain.User
	token   string
	loading bool

	initOnce  sync.Once
	subMu     sync.Mutex
	nextSub   int
	listeners []listener
}

type listener struct {
	id int
	fn func(State)
}

func NewManager(store Store, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		store:   store,
		logger:  logger,
		loading: true,
	}
}

// Initialize restores the persisted session. It runs once; later calls
// return immediately. Missing, unreadable or malformed records all leave the
// manager logged out.
func (m *Manager) Initialize(ctx context.Context) {
	m.initOnce.Do(func() {
		sess, err := m.store.Load(ctx)
		switch {
		case err == nil:
		case errors.Is(err, storage.ErrNotFound):
			sess = domain.Session{}
		default:
			m.logger.WithError(err).Warn("discarding persisted session")
			sess = domain.Session{}
		}

		m.mu.Lock()
		if sess.Authenticated() {
			u := *sess.User
			m.user = &u
			m.token = sess.Token
		}
		m.loading = false
		m.mu.Unlock()

		if sess.Authenticated() {
			m.logger.WithField("user_id", sess.User.ID).Debug("session restored")
		}
		m.publish()
	})
}

// Login installs credentials produced by a successful sign-in. It does not
// write to storage; the API call that issued the token already did.
func (m *Manager) Login(user domain.User, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidSession)
	}
	if strings.TrimSpace(user.ID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidSession)
	}
	if !user.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidSession, user.Role)
	}

	m.mu.Lock()
	m.user = &user
	m.token = token
	m.mu.Unlock()

	m.logger.WithField("user_id", user.ID).Info("logged in")
	m.publish()
	return nil
}

// Logout clears storage first and then the in-memory state, so an observer
// that runs after Logout returns sees a fully logged out client. Logging out
// twice is not an error. When the storage clear fails the session stays in
// place and the error is returned.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	m.mu.Lock()
	changed := m.token != "" || m.user != nil
	m.user = nil
	m.token = ""
	m.mu.Unlock()

	if changed {
		m.logger.Info("logged out")
		m.publish()
	}
	return nil
}

// UpdateUser merges patch into the current user. It does nothing when no user
// is set and never touches the token.
func (m *Manager) UpdateUser(patch domain.UserPatch) {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return
	}
	updated := patch.Apply(*m.user)
	m.user = &updated
	m.mu.Unlock()

	m.publish()
}

// IsAuthenticated reports whether a token is held.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token != ""
}

// User returns a copy of the current user, or nil.
func (m *Manager) User() *domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := State{Token: m.token, Loading: m.loading}
	if m.user != nil {
		u := *m.user
		st.User = &u
	}
	return st
}

// Subscribe registers fn to be called after every state change. Callbacks run
// synchronously on the goroutine that changed the state, outside any lock.
func (m *Manager) Subscribe(fn func(State)) (cancel func()) {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.listeners = append(m.listeners, listener{id: id, fn: fn})
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) publish() {
	st := m.State()

	m.subMu.Lock()
	fns := make([]func(State), 0, len(m.listeners))
	for _, l := range m.listeners {
		fns = append(fns, l.fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
