package notify

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Kind classifies a notification.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
)

// Notifier shows short messages to the user.
type Notifier interface {
	Notify(kind Kind, title, message string)
}

// Logger writes notifications through logrus, errors at warn level.
type Logger struct {
	logger *logrus.Logger
}

func NewLogger(logger *logrus.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) Notify(kind Kind, title, message string) {
	entry := l.logger.WithField("kind", string(kind))
	if message != "" {
		entry = entry.WithField("detail", message)
	}
	switch kind {
	case Error:
		entry.Warn(title)
	default:
		entry.Info(title)
	}
}

// Notice is one recorded notification.
type Notice struct {
	Kind    Kind
	Title   string
	Message string
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(kind Kind, title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Kind: kind, Title: title, Message: message})
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the most recent notice, if any.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

var (
	_ Notifier = (*Logger)(nil)
	_ Notifier = (*Recorder)(nil)
)
