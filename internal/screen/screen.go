// Package screen holds the controllers behind each Postly screen. A screen
// validates its form, calls the gateway, reports the outcome through a
// notifier and navigates. None of them render anything.
package screen

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"postly/internal/api"
	"postly/internal/domain"
	"postly/internal/notify"
)

// DefaultDebounce delays search requests while the user is still typing.
const DefaultDebounce = 500 * time.Millisecond

// ErrPageOutOfRange is returned when a page outside the known range is
// requested. No request is made.
var ErrPageOutOfRange = errors.New("page out of range")

// ErrNoSession is returned by actions that need a logged in user.
var ErrNoSession = errors.New("no active session")

type AuthAPI interface {
	SignIn(ctx context.Context, email, password string) (*api.Credentials, error)
	SignUp(ctx context.Context, name, email, password string) (*api.Credentials, error)
}

type PostAPI interface {
	ListPosts(ctx context.Context, q api.PostQuery) api.PostPage
	CreatePost(ctx context.Context, title, content string) (*domain.Post, error)
	UpdatePost(ctx context.Context, id, title, content string) (*domain.Post, error)
	DeletePost(ctx context.Context, id string) bool
}

type UserAPI interface {
	CreateUser(ctx context.Context, u api.NewUser) error
	ListUsers(ctx context.Context, filter api.UserFilter) []domain.User
	EditUser(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error)
	RemoveUser(ctx context.Context, id string) bool
}

// Session is the slice of the session manager screens act on.
type Session interface {
	Login(user domain.User, token string) error
	Logout(ctx context.Context) error
	UpdateUser(patch domain.UserPatch)
	User() *domain.User
}

type Navigator interface {
	Push(route string)
	Replace(route string)
	Back() bool
}

// Deps are shared by every screen.
type Deps struct {
	Session  Session
	Nav      Navigator
	Notifier notify.Notifier
	Logger   *logrus.Logger
}

func (d Deps) notify(kind notify.Kind, title, message string) {
	d.Notifier.Notify(kind, title, message)
}

func (d Deps) isProfessor() bool {
	u := d.Session.User()
	return u != nil && u.IsProfessor()
}

// debouncer runs only the last of a burst of calls, delay after it arrived.
type debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.delay <= 0 {
		d.mu.Unlock()
		fn()
		return
	}
	d.timer = time.AfterFunc(d.delay, fn)
	d.mu.Unlock()
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
