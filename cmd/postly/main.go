package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postly/internal/app"
	"postly/internal/config"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(logger).ExecuteContext(ctx); err != nil {
		logger.Error(err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand(logger *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "postly",
		Short:         "Command line client for the Postly school feed",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newLoginCommand(logger),
		newSignupCommand(logger),
		newLogoutCommand(logger),
		newWhoamiCommand(logger),
		newFeedCommand(logger),
		newPostCommand(logger),
		newUsersCommand(logger),
		newPasswordCommand(logger),
	)
	return cmd
}

// bootstrap loads the configuration, composes the client and restores the
// saved session.
func bootstrap(ctx context.Context, logger *logrus.Logger) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, keeping %s", cfg.Log.Level, logger.GetLevel())
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup client: %w", err)
	}
	a.Start(ctx)
	return a, nil
}

// enter opens route and fails when the guard sends the user elsewhere.
func enter(a *app.App, route string) error {
	if got := a.Open(route); got != route {
		return fmt.Errorf("cannot open %s: redirected to %s", route, got)
	}
	return nil
}

// run bootstraps the client, opens route and calls fn.
func run(cmd *cobra.Command, logger *logrus.Logger, route string, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := bootstrap(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warnf("close: %v", err)
		}
	}()

	if route != "" {
		if err := enter(a, route); err != nil {
			return err
		}
	}
	return fn(ctx, a)
}
