package screen

import (
	"context"

	"postly/internal/domain"
	"postly/internal/form"
	"postly/internal/notify"
	"postly/internal/router"
)

type Profile struct {
	deps Deps
}

func NewProfile(deps Deps) *Profile {
	return &Profile{deps: deps}
}

func (p *Profile) User() *domain.User {
	return p.deps.Session.User()
}

// ChangePassword opens the change password screen. Students only get a
// notice.
func (p *Profile) ChangePassword() bool {
	if !p.deps.isProfessor() {
		p.deps.notify(notify.Info, "Restricted", "Changing the password is not available to students.")
		return false
	}
	p.deps.Nav.Push(router.RouteChangePassword)
	return true
}

// Logout ends the session. The guard takes the user to the login screen.
func (p *Profile) Logout(ctx context.Context) error {
	if err := p.deps.Session.Logout(ctx); err != nil {
		p.deps.Logger.WithError(err).Warn("logout: stored session not cleared")
		p.deps.notify(notify.Error, "Logout failed", "The saved session could not be removed.")
		return err
	}
	return nil
}

type ChangePassword struct {
	users UserAPI
	deps  Deps
}

func NewChangePassword(users UserAPI, deps Deps) *ChangePassword {
	return &ChangePassword{users: users, deps: deps}
}

func (s *ChangePassword) Submit(ctx context.Context, f form.Password) error {
	if err := form.Validate(f); err != nil {
		s.deps.notify(notify.Error, "Validation error", err.Error())
		return err
	}

	user := s.deps.Session.User()
	if user == nil || user.ID == "" {
		s.deps.notify(notify.Error, "Error", "User session not found.")
		return ErrNoSession
	}

	if _, err := s.users.EditUser(ctx, user.ID, domain.UserPatch{Password: &f.Password}); err != nil {
		s.deps.notify(notify.Error, "Error", "Failed to update the password.")
		return err
	}
	s.deps.notify(notify.Success, "Success", "Password updated successfully.")
	s.deps.Nav.Back()
	return nil
}
