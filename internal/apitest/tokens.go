package apitest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"postly/internal/domain"
)

// TokenTTL is the lifetime of access tokens issued by the fake backend.
const TokenTTL = time.Hour

var errInvalidToken = errors.New("invalid or expired token")

type claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	secret []byte

	mu     sync.RWMutex
	static map[string]string
}

func newTokenIssuer(secret string) *tokenIssuer {
	return &tokenIssuer{secret: []byte(secret), static: make(map[string]string)}
}

func (t *tokenIssuer) Issue(user domain.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Subject returns the user id a token was issued for. Static tokens
// registered with Pin are accepted as is.
func (t *tokenIssuer) Subject(raw string) (string, error) {
	t.mu.RLock()
	id, ok := t.static[raw]
	t.mu.RUnlock()
	if ok {
		return id, nil
	}

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || c.Subject == "" {
		return "", errInvalidToken
	}
	return c.Subject, nil
}

func (t *tokenIssuer) Pin(token, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.static[token] = userID
}
