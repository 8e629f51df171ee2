package router

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"postly/internal/domain"
	"postly/internal/session"
	"postly/internal/storage"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		in     Input
		target string
		ok     bool
	}{
		{"loading private", Input{Loading: true, Location: RouteFeed}, "", false},
		{"loading authenticated public", Input{Loading: true, Authenticated: true, Location: RouteLogin}, "", false},
		{"anonymous before first route", Input{Location: ""}, "", false},
		{"anonymous on landing", Input{Location: RouteLanding}, "", false},
		{"anonymous on login", Input{Location: RouteLogin}, "", false},
		{"anonymous on signup", Input{Location: RouteSignup}, "", false},
		{"anonymous on feed", Input{Location: RouteFeed}, RouteLogin, true},
		{"anonymous on change password", Input{Location: RouteChangePassword}, RouteLogin, true},
		{"authenticated on login", Input{Authenticated: true, Location: RouteLogin, Role: domain.RoleStudent}, RouteFeed, true},
		{"authenticated on landing", Input{Authenticated: true, Location: RouteLanding, Role: domain.RoleProfessor}, RouteFeed, true},
		{"authenticated on feed", Input{Authenticated: true, Location: RouteFeed, Role: domain.RoleStudent}, "", false},
		{"student on change password", Input{Authenticated: true, Location: RouteChangePassword, Role: domain.RoleStudent}, RouteProfile, true},
		{"professor on change password", Input{Authenticated: true, Location: RouteChangePassword, Role: domain.RoleProfessor}, "", false},
		{"student on users", Input{Authenticated: true, Location: RouteUsers, Role: domain.RoleStudent}, RouteFeed, true},
		{"student on create post", Input{Authenticated: true, Location: RouteCreatePost, Role: domain.RoleStudent}, RouteFeed, true},
		{"professor on edit user", Input{Authenticated: true, Location: RouteEditUser, Role: domain.RoleProfessor}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, ok := Decide(tt.in)
			if ok != tt.ok || target != tt.target {
				t.Fatalf("Decide(%+v) = %q %v, want %q %v", tt.in, target, ok, tt.target, tt.ok)
			}
		})
	}
}

type recordingNav struct {
	location string
	replaced []string
}

func (r *recordingNav) Location() string { return r.location }

func (r *recordingNav) Replace(route string) {
	r.location = route
	r.replaced = append(r.replaced, route)
}

func TestGuardRedirectsOncePerTransition(t *testing.T) {
	nav := &recordingNav{location: RouteLogin}
	g := NewGuard(nav, quietLogger())
	in := Input{Authenticated: true, Location: RouteLogin, Role: domain.RoleStudent}

	for i := 0; i < 3; i++ {
		g.Evaluate(in)
	}
	if len(nav.replaced) != 1 || nav.replaced[0] != RouteFeed {
		t.Fatalf("expected a single redirect to feed, got %v", nav.replaced)
	}
}

func TestGuardNeverRedirectsWhileLoading(t *testing.T) {
	nav := &recordingNav{}
	g := NewGuard(nav, quietLogger())
	for _, loc := range []string{RouteFeed, RouteLogin, RouteChangePassword, RouteUsers} {
		for _, auth := range []bool{true, false} {
			g.Evaluate(Input{Loading: true, Authenticated: auth, Location: loc, Role: domain.RoleStudent})
		}
	}
	if len(nav.replaced) != 0 {
		t.Fatalf("expected no redirects while loading, got %v", nav.replaced)
	}
}

func newBoundGuard(t *testing.T) (*session.Manager, *storage.SessionStore, *History) {
	t.Helper()
	store := storage.NewSessionStore(storage.NewMemoryBackend(), "")
	mgr := session.NewManager(store, quietLogger())
	hist := NewHistory()
	cancel := NewGuard(hist, quietLogger()).Bind(mgr, hist)
	t.Cleanup(cancel)
	return mgr, store, hist
}

func TestBoundGuardWaitsForInitialize(t *testing.T) {
	mgr, _, hist := newBoundGuard(t)

	hist.Push(RouteFeed)
	if got := hist.Location(); got != RouteFeed {
		t.Fatalf("guard redirected before initialize: %s", got)
	}

	mgr.Initialize(context.Background())
	if got := hist.Location(); got != RouteLogin {
		t.Fatalf("expected redirect to login after initialize, got %s", got)
	}
}

func TestBoundGuardFollowsSession(t *testing.T) {
	mgr, store, hist := newBoundGuard(t)
	ctx := context.Background()
	user := domain.User{ID: "1", Role: domain.RoleStudent}
	_ = store.Set(ctx, domain.Session{User: &user, Token: "tok"})

	mgr.Initialize(ctx)
	hist.Push(RouteLogin)
	if got := hist.Location(); got != RouteFeed {
		t.Fatalf("restored session on login screen should land on feed, got %s", got)
	}

	hist.Push(RouteProfile)
	hist.Push(RouteChangePassword)
	if got := hist.Location(); got != RouteProfile {
		t.Fatalf("student must be bounced from change password, got %s", got)
	}

	if err := mgr.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if got := hist.Location(); got != RouteLogin {
		t.Fatalf("logout should send user to login, got %s", got)
	}
}

func TestBoundGuardLoginLeavesAuthGroup(t *testing.T) {
	mgr, _, hist := newBoundGuard(t)
	mgr.Initialize(context.Background())
	hist.Push(RouteLogin)

	if err := mgr.Login(domain.User{ID: "2", Role: domain.RoleProfessor}, "tok"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := hist.Location(); got != RouteFeed {
		t.Fatalf("expected feed after login, got %s", got)
	}

	hist.Push(RouteChangePassword)
	if got := hist.Location(); got != RouteChangePassword {
		t.Fatalf("professor should reach change password, got %s", got)
	}
}

func TestHistoryBack(t *testing.T) {
	h := NewHistory()
	if h.Back() {
		t.Fatal("empty history cannot go back")
	}
	h.Push(RouteFeed)
	h.Push(RouteCreatePost)
	if !h.Back() || h.Location() != RouteFeed {
		t.Fatalf("expected to return to feed, at %s", h.Location())
	}
	h.Replace(RouteProfile)
	if h.Back() {
		t.Fatal("replace must not grow the stack")
	}
}
