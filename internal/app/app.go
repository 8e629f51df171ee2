// Package app wires configuration, storage, the session manager, the route
// guard, the API gateway and the screens into one client.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"postly/internal/api"
	"postly/internal/config"
	"postly/internal/notify"
	"postly/internal/router"
	"postly/internal/screen"
	"postly/internal/session"
	"postly/internal/storage"
	"postly/internal/storage/sqlite"
)

// App is a composed Postly client.
type App struct {
	Store    *storage.SessionStore
	Session  *session.Manager
	History  *router.History
	Guard    *router.Guard
	API      *api.Client
	Notifier notify.Notifier

	Login          *screen.Login
	Signup         *screen.Signup
	Feed           *screen.Feed
	Users          *screen.Users
	PostEditor     *screen.PostEditor
	UserEditor     *screen.UserEditor
	Profile        *screen.Profile
	ChangePassword *screen.ChangePassword

	logger  *logrus.Logger
	closers []func() error
	unbind  func()
}

type options struct {
	backend  storage.Backend
	notifier notify.Notifier
	http     *http.Client
}

type Option func(*options)

// WithBackend skips storage.driver and persists the session in backend.
func WithBackend(backend storage.Backend) Option {
	return func(o *options) {
		o.backend = backend
	}
}

// WithNotifier replaces the logging notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.http = hc
	}
}

func New(ctx context.Context, cfg config.Config, logger *logrus.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logrus.New()
	}

	a := &App{logger: logger}

	backend := o.backend
	if backend == nil {
		b, closer, err := OpenBackend(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		backend = b
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}

	a.Notifier = o.notifier
	if a.Notifier == nil {
		a.Notifier = notify.NewLogger(logger)
	}

	a.Store = storage.NewSessionStore(backend, cfg.Storage.Key)
	a.Session = session.NewManager(a.Store, logger)
	a.History = router.NewHistory()
	a.Guard = router.NewGuard(a.History, logger)

	clientOpts := []api.Option{api.WithLogger(logger)}
	if o.http != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(o.http))
	}
	clientOpts = append(clientOpts, api.WithTimeout(cfg.API.Timeout))
	a.API = api.NewClient(cfg.API.BaseURL, a.Store, clientOpts...)

	debounce := cfg.Search.Debounce
	deps := screen.Deps{Session: a.Session, Nav: a.History, Notifier: a.Notifier, Logger: logger}
	a.Login = screen.NewLogin(a.API, deps)
	a.Signup = screen.NewSignup(a.API, deps)
	a.Feed = screen.NewFeed(a.API, deps, cfg.API.PageSize, debounce)
	a.Users = screen.NewUsers(a.API, deps, debounce)
	a.PostEditor = screen.NewPostEditor(a.API, deps)
	a.UserEditor = screen.NewUserEditor(a.API, deps)
	a.Profile = screen.NewProfile(deps)
	a.ChangePassword = screen.NewChangePassword(a.API, deps)

	return a, nil
}

// Start lands on the root route, binds the guard and restores the persisted
// session. The guard then moves the user to the feed or leaves them on a
// public screen.
func (a *App) Start(ctx context.Context) {
	if a.History.Location() == "" {
		a.History.Push(router.RouteLanding)
	}
	if a.unbind == nil {
		a.unbind = a.Guard.Bind(a.Session, a.History)
	}
	a.Session.Initialize(ctx)
}

// Open navigates to route and returns where the guard left the user.
func (a *App) Open(route string) string {
	a.History.Push(route)
	return a.History.Location()
}

func (a *App) Close() error {
	a.Feed.Close()
	a.Users.Close()
	if a.unbind != nil {
		a.unbind()
		a.unbind = nil
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenBackend builds the session backend named by storage.driver. The
// returned close func may be nil.
func OpenBackend(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Backend, func() error, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return storage.NewMemoryBackend(), nil, nil
	case "", "file":
		logger.Debugf("using session directory %s", cfg.Storage.Dir)
		return storage.NewFileBackend(cfg.Storage.Dir), nil, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		store := sqlite.NewStore(db)
		if err := store.Init(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("init session table: %w", err)
		}
		logger.Debugf("using sqlite session store %s", cfg.SQLite.Path)
		return store, db.Close, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		logger.Debugf("using redis session store %s", cfg.Redis.Addr)
		return storage.NewRedisBackend(client, cfg.Redis.Prefix, 0), client.Close, nil
	case "s3":
		backend, err := buildS3(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return backend, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func buildS3(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*storage.S3Backend, error) {
	if cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.S3.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.S3.Bucket, cfg.S3.Region)
	return storage.NewS3Backend(client, cfg.S3.Bucket, cfg.S3.Prefix)
}
