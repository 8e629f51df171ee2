package screen

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"postly/internal/api"
	"postly/internal/domain"
	"postly/internal/notify"
	"postly/internal/router"
)

type UsersState struct {
	Users   []domain.User
	Filter  api.UserFilter
	Loading bool
}

// Users is the professor's user management list.
type Users struct {
	users UserAPI
	deps  Deps
	delay *debouncer

	mu      sync.Mutex
	filter  api.UserFilter
	items   []domain.User
	loading bool
	gen     uint64
}

func NewUsers(users UserAPI, deps Deps, debounce time.Duration) *Users {
	return &Users{users: users, deps: deps, delay: &debouncer{delay: debounce}}
}

func (s *Users) State() UsersState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return UsersState{
		Users:   append([]domain.User(nil), s.items...),
		Filter:  s.filter,
		Loading: s.loading,
	}
}

// Load lists users with the current filter, dropping stale responses.
func (s *Users) Load(ctx context.Context) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.loading = true
	filter := s.filter
	s.mu.Unlock()

	users := s.users.ListUsers(ctx, filter)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.loading = false
	s.items = users
}

// FilterEmail narrows by email once typing pauses.
func (s *Users) FilterEmail(ctx context.Context, email string) {
	s.mu.Lock()
	s.filter.Email = strings.TrimSpace(email)
	s.mu.Unlock()
	s.delay.trigger(func() {
		s.Load(ctx)
	})
}

// FilterRole narrows by role right away. The empty role lists everyone.
func (s *Users) FilterRole(ctx context.Context, role string) error {
	r, ok := domain.ParseRole(role)
	if !ok {
		return fmt.Errorf("unknown role %q", role)
	}
	s.mu.Lock()
	s.filter.Role = r
	s.mu.Unlock()
	s.delay.stop()
	s.Load(ctx)
	return nil
}

// Filter replaces both filters and loads right away.
func (s *Users) Filter(ctx context.Context, email, role string) error {
	r, ok := domain.ParseRole(role)
	if !ok {
		return fmt.Errorf("unknown role %q", role)
	}
	s.mu.Lock()
	s.filter = api.UserFilter{Email: strings.TrimSpace(email), Role: r}
	s.mu.Unlock()
	s.delay.stop()
	s.Load(ctx)
	return nil
}

func (s *Users) Close() {
	s.delay.stop()
}

func (s *Users) Create() {
	s.deps.Nav.Push(router.RouteCreateUser)
}

func (s *Users) Edit(domain.User) {
	s.deps.Nav.Push(router.RouteEditUser)
}

// Remove soft deletes user and reloads the list.
func (s *Users) Remove(ctx context.Context, user domain.User) bool {
	if !s.users.RemoveUser(ctx, user.ID) {
		s.deps.notify(notify.Error, "Failed to remove user", "")
		return false
	}
	s.deps.notify(notify.Success, "User removed", "")
	s.Load(ctx)
	return true
}
