// Package api is the gateway to the Postly REST backend.
//
// Every authenticated call reads the bearer token from the session store
// immediately before the request, so the persisted session is the only
// credential source. Read operations never fail: they log and fall back to an
// empty result. Mutations return an error (or a success flag for removals).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"postly/internal/domain"
)

// ConnectionMessage is shown when the backend cannot be reached.
const ConnectionMessage = "Connection error"

// ErrConnection is wrapped by every transport failure.
var ErrConnection = errors.New("connection error")

// Error is a failed call with a message fit for the user.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message extracts the user facing text of err.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// SessionStore is the persisted session the client reads tokens from and
// writes fresh credentials to.
type SessionStore interface {
	Token(ctx context.Context) string
	Set(ctx context.Context, sess domain.Session) error
}

// Client issues requests against the backend.
type Client struct {
	baseURL string
	http    *http.Client
	store   SessionStore
	logger  *logrus.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds every request. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.http
		hc.Timeout = d
		c.http = &hc
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(baseURL string, store SessionStore, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		store:   store,
		logger:  logrus.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	method string
	path   string
	query  any
	body   any
	auth   bool
}

func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	target := c.baseURL + r.path
	if r.query != nil {
		values, err := query.Values(r.query)
		if err != nil {
			return nil, fmt.Errorf("encode query: %w", err)
		}
		if encoded := values.Encode(); encoded != "" {
			target += "?" + encoded
		}
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if r.auth {
		if token := c.store.Token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	entry := c.logger.WithFields(logrus.Fields{
		"method":     r.method,
		"path":       r.path,
		"request_id": requestID,
	})
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		entry.WithError(err).Warn("request failed")
		return nil, &Error{Message: ConnectionMessage, Err: fmt.Errorf("%w: %v", ErrConnection, err)}
	}
	entry.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"elapsed": time.Since(start).String(),
	}).Debug("request done")
	return resp, nil
}

// errorBody matches both plain and validation-style error payloads, where
// message may be a string or a list of strings.
type errorBody struct {
	Message json.RawMessage `json:"message"`
}

func responseError(resp *http.Response, fallback string) error {
	msg := fallback
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && len(eb.Message) > 0 {
		var s string
		var list []string
		switch {
		case json.Unmarshal(eb.Message, &s) == nil && s != "":
			msg = s
		case json.Unmarshal(eb.Message, &list) == nil && len(list) > 0:
			msg = strings.Join(list, "; ")
		}
	}
	return &Error{Status: resp.StatusCode, Message: msg}
}

func decodeJSON(resp *http.Response, v any) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &Error{Status: resp.StatusCode, Message: "Unexpected response from server", Err: err}
	}
	return nil
}

func ok(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func escapeID(id string) string {
	return url.PathEscape(id)
}
