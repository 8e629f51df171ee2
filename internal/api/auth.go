package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"postly/internal/domain"
)

// Credentials is what a successful sign-in or sign-up returns. AccessToken is
// empty when a sign-up did not log the new account in.
type Credentials struct {
	User        domain.User `json:"user"`
	AccessToken string      `json:"accessToken"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role,omitempty"`
}

// NewUser is the payload of a professor creating an account.
type NewUser struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// UserFilter narrows the user listing. Empty fields are not sent.
type UserFilter struct {
	Email string      `url:"email,omitempty"`
	Role  domain.Role `url:"role,omitempty"`
}

// SignIn exchanges email and password for credentials and persists them as
// the current session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/sign-in",
		body:   signInRequest{Email: email, Password: password},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return nil, responseError(resp, "Invalid credentials")
	}

	var creds Credentials
	if err := decodeJSON(resp, &creds); err != nil {
		return nil, err
	}
	if creds.AccessToken == "" {
		return nil, &Error{Status: resp.StatusCode, Message: "Unexpected response from server"}
	}
	if err := c.persist(ctx, creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// SignUp registers a new account. When the backend logs the account in
// right away the credentials are persisted like SignIn.
func (c *Client) SignUp(ctx context.Context, name, email, password string) (*Credentials, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/sign-up",
		body:   signUpRequest{Name: name, Email: email, Password: password},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return nil, responseError(resp, "Sign up failed")
	}

	var creds Credentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil || creds.AccessToken == "" {
		return &Credentials{}, nil
	}
	if err := c.persist(ctx, creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func (c *Client) persist(ctx context.Context, creds Credentials) error {
	user := creds.User
	if err := c.store.Set(ctx, domain.Session{User: &user, Token: creds.AccessToken}); err != nil {
		if errors.Is(err, domain.ErrMalformedSession) {
			return &Error{Message: "Unexpected response from server", Err: err}
		}
		return &Error{Message: "Could not save session", Err: err}
	}
	return nil
}

// CreateUser registers an account on behalf of the logged in professor. The
// new account's credentials, if any, are discarded.
func (c *Client) CreateUser(ctx context.Context, u NewUser) error {
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/sign-up",
		body:   signUpRequest{Name: u.Name, Email: u.Email, Password: u.Password, Role: u.Role},
		auth:   true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return responseError(resp, "Failed to create user")
	}
	return nil
}

// ListUsers returns the users matching filter. The backend may answer with a
// bare array or a {docs: [...]} page; failures yield an empty list.
func (c *Client) ListUsers(ctx context.Context, filter UserFilter) []domain.User {
	resp, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth",
		query:  filter,
		auth:   true,
	})
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if !ok(resp) {
		c.logger.WithField("status", resp.StatusCode).Warn("list users rejected")
		return nil
	}

	var raw json.RawMessage
	if err := decodeJSON(resp, &raw); err != nil {
		c.logger.WithError(err).Warn("list users: bad body")
		return nil
	}
	var users []domain.User
	if err := json.Unmarshal(raw, &users); err == nil {
		return users
	}
	var page struct {
		Docs []domain.User `json:"docs"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		c.logger.WithError(err).Warn("list users: bad body")
		return nil
	}
	return page.Docs
}

// EditUser applies patch to the user with id and returns the stored record.
func (c *Client) EditUser(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/auth/" + escapeID(id),
		body:   patch,
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return nil, responseError(resp, "Failed to update user")
	}
	var user domain.User
	if err := decodeJSON(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RemoveUser soft deletes the user with id.
func (c *Client) RemoveUser(ctx context.Context, id string) bool {
	return c.remove(ctx, "/auth/"+escapeID(id)+"/remove")
}

type removeRequest struct {
	Deleted bool `json:"deleted"`
}

func (c *Client) remove(ctx context.Context, path string) bool {
	resp, err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   path,
		body:   removeRequest{Deleted: true},
		auth:   true,
	})
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if !ok(resp) {
		c.logger.WithFields(logrus.Fields{"path": path, "status": resp.StatusCode}).Warn("remove rejected")
		return false
	}
	return true
}
