package router

import (
	"sync"

	"github.com/sirupsen/logrus"

	"postly/internal/domain"
	"postly/internal/session"
)

// Input is everything a routing decision depends on.
type Input struct {
	Authenticated bool
	Loading       bool
	Location      string
	Role          domain.Role
}

// Decide applies the redirect rules in priority order and returns the route
// to redirect to, if any:
//
//  1. while the session is loading nothing happens;
//  2. logged out users on a private route go to the login screen, once a
//     location has been established;
//  3. logged in users on a public route go to the landing screen;
//  4. logged in users on a route their role may not open go to its fallback.
func Decide(in Input) (string, bool) {
	switch {
	case in.Loading:
		return "", false
	case !in.Authenticated:
		if in.Location != "" && !IsPublic(in.Location) {
			return RouteLogin, true
		}
		return "", false
	case IsPublic(in.Location):
		return Landing, true
	}

	if r, ok := restricted[in.Location]; ok && r.allowed != in.Role {
		return r.fallback, true
	}
	return "", false
}

// Navigator is the navigation capability the guard drives.
type Navigator interface {
	Location() string
	Replace(route string)
}

// Guard re-evaluates Decide whenever the session or the location changes and
// performs the resulting redirect.
type Guard struct {
	nav    Navigator
	logger *logrus.Logger

	mu        sync.Mutex
	last      Input
	evaluated bool
}

func NewGuard(nav Navigator, logger *logrus.Logger) *Guard {
	if logger == nil {
		logger = logrus.New()
	}
	return &Guard{nav: nav, logger: logger}
}

// Evaluate runs the rules for in. An input identical to the previous one is
// ignored, so each state transition redirects at most once.
func (g *Guard) Evaluate(in Input) (string, bool) {
	g.mu.Lock()
	if g.evaluated && g.last == in {
		g.mu.Unlock()
		return "", false
	}
	g.last = in
	g.evaluated = true
	g.mu.Unlock()

	target, ok := Decide(in)
	if !ok || target == in.Location {
		return "", false
	}

	g.logger.WithFields(logrus.Fields{
		"from": in.Location,
		"to":   target,
	}).Debug("route guard redirect")
	// the lock is released: Replace may re-enter Evaluate through Bind
	g.nav.Replace(target)
	return target, true
}

// LocationSource is a navigator that reports location changes.
type LocationSource interface {
	Navigator
	Subscribe(fn func(route string)) (cancel func())
}

// SessionSource is the session state the guard observes.
type SessionSource interface {
	State() session.State
	Subscribe(fn func(session.State)) (cancel func())
}

// Bind evaluates the guard on every session or location change until the
// returned cancel func is called.
func (g *Guard) Bind(sess SessionSource, nav LocationSource) (cancel func()) {
	evaluate := func() {
		st := sess.State()
		g.Evaluate(Input{
			Authenticated: st.IsAuthenticated(),
			Loading:       st.Loading,
			Location:      nav.Location(),
			Role:          st.Role(),
		})
	}

	stopSession := sess.Subscribe(func(session.State) { evaluate() })
	stopNav := nav.Subscribe(func(string) { evaluate() })
	evaluate()

	return func() {
		stopSession()
		stopNav()
	}
}
