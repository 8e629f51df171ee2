package apitest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"postly/internal/domain"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("Invalid credentials")
	// ErrUserAlreadyExists is returned when registering an email twice.
	ErrUserAlreadyExists = errors.New("User already exists")
	// ErrUserNotFound is returned for unknown or deleted ids.
	ErrUserNotFound = errors.New("User not found")
)

type userRecord struct {
	user         domain.User
	passwordHash string
	deleted      bool
}

// userService keeps the accounts of the fake backend in memory.
type userService struct {
	mu    sync.RWMutex
	byID  map[string]*userRecord
	order []string
}

func newUserService() *userService {
	return &userService{byID: make(map[string]*userRecord)}
}

func (s *userService) Register(name, email, password string, role domain.Role) (domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if role == "" {
		role = domain.RoleStudent
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.byID {
		if rec.user.Email == email && !rec.deleted {
			return domain.User{}, ErrUserAlreadyExists
		}
	}

	rec := &userRecord{
		user: domain.User{
			ID:    uuid.NewString(),
			Name:  name,
			Email: email,
			Role:  role,
		},
		passwordHash: string(hash),
	}
	s.byID[rec.user.ID] = rec
	s.order = append(s.order, rec.user.ID)
	return rec.user, nil
}

func (s *userService) Authenticate(email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.byID {
		if rec.user.Email != email || rec.deleted {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(rec.passwordHash), []byte(password)); err != nil {
			return domain.User{}, ErrInvalidCredentials
		}
		return rec.user, nil
	}
	return domain.User{}, ErrInvalidCredentials
}

func (s *userService) GetByID(id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok || rec.deleted {
		return domain.User{}, ErrUserNotFound
	}
	return rec.user, nil
}

// List returns live users in creation order. email matches as a
// case-insensitive substring, role exactly.
func (s *userService) List(email string, role domain.Role) []domain.User {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]domain.User, 0, len(s.order))
	for _, id := range s.order {
		rec := s.byID[id]
		if rec.deleted {
			continue
		}
		if email != "" && !strings.Contains(rec.user.Email, email) {
			continue
		}
		if role != "" && rec.user.Role != role {
			continue
		}
		users = append(users, rec.user)
	}
	return users
}

func (s *userService) Update(id string, patch domain.UserPatch) (domain.User, error) {
	var hash string
	if patch.Password != nil {
		h, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.MinCost)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
		hash = string(h)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok || rec.deleted {
		return domain.User{}, ErrUserNotFound
	}
	rec.user = patch.Apply(rec.user)
	if hash != "" {
		rec.passwordHash = hash
	}
	return rec.user, nil
}

func (s *userService) Remove(id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok || rec.deleted {
		return domain.User{}, ErrUserNotFound
	}
	rec.deleted = true
	return rec.user, nil
}
