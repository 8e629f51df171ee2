package screen

import (
	"context"

	"postly/internal/api"
	"postly/internal/form"
	"postly/internal/notify"
	"postly/internal/router"
)

type Login struct {
	auth AuthAPI
	deps Deps
}

func NewLogin(auth AuthAPI, deps Deps) *Login {
	return &Login{auth: auth, deps: deps}
}

// Submit signs in, starts the session and lands on the feed.
func (s *Login) Submit(ctx context.Context, f form.Login) error {
	if err := form.Validate(f); err != nil {
		s.deps.notify(notify.Error, "Missing fields", "Please fill in all fields")
		return err
	}

	creds, err := s.auth.SignIn(ctx, f.Email, f.Password)
	if err != nil {
		s.deps.notify(notify.Error, "Login Failed", api.Message(err))
		return err
	}
	if err := s.deps.Session.Login(creds.User, creds.AccessToken); err != nil {
		s.deps.notify(notify.Error, "Login Failed", err.Error())
		return err
	}

	s.deps.notify(notify.Success, "Welcome back!", "Login successful.")
	s.deps.Nav.Replace(router.RouteFeed)
	return nil
}

type Signup struct {
	auth AuthAPI
	deps Deps
}

func NewSignup(auth AuthAPI, deps Deps) *Signup {
	return &Signup{auth: auth, deps: deps}
}

// Submit registers the account. When the backend logs the new account in the
// user lands on the feed, otherwise on the login screen.
func (s *Signup) Submit(ctx context.Context, f form.Signup) error {
	if err := form.Validate(f); err != nil {
		s.deps.notify(notify.Error, "Missing fields", "Please fill in all fields")
		return err
	}

	creds, err := s.auth.SignUp(ctx, f.Name, f.Email, f.Password)
	if err != nil {
		s.deps.notify(notify.Error, "Sign Up Failed", api.Message(err))
		return err
	}

	if creds == nil || creds.AccessToken == "" {
		s.deps.notify(notify.Success, "Account created", "Please log in.")
		s.deps.Nav.Replace(router.RouteLogin)
		return nil
	}
	if err := s.deps.Session.Login(creds.User, creds.AccessToken); err != nil {
		s.deps.notify(notify.Error, "Sign Up Failed", err.Error())
		return err
	}
	s.deps.notify(notify.Success, "Welcome!", "Account created successfully.")
	s.deps.Nav.Replace(router.RouteFeed)
	return nil
}
