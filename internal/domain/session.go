package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedSession is returned when a persisted session blob cannot be
// decoded or violates the user/token pairing.
var ErrMalformedSession = errors.New("malformed session")

// Session is the authenticated identity and bearer token of the process.
// User and Token are either both set or both empty.
type Session struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// Authenticated reports whether the session carries a credential.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Validate checks the both-or-neither invariant and that the user is
// identifiable and holds a known role.
func (s Session) Validate() error {
	switch {
	case s.User == nil && s.Token == "":
		return nil
	case s.User == nil || s.Token == "":
		return fmt.Errorf("%w: user and token must be set together", ErrMalformedSession)
	case strings.TrimSpace(s.User.ID) == "":
		return fmt.Errorf("%w: user id missing", ErrMalformedSession)
	case !s.User.Role.Valid():
		return fmt.Errorf("%w: unknown role %q", ErrMalformedSession, s.User.Role)
	}
	return nil
}

// EncodeSession serializes s to the persisted text form.
func EncodeSession(s Session) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	return string(data), nil
}

// DecodeSession parses the persisted text form.
func DecodeSession(raw string) (Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrMalformedSession, err)
	}
	if err := s.Validate(); err != nil {
		return Session{}, err
	}
	return s, nil
}
