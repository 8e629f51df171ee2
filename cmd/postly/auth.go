package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postly/internal/app"
	"postly/internal/form"
	"postly/internal/router"
)

func newLoginCommand(logger *logrus.Logger) *cobra.Command {
	var f form.Login

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, logger, "", func(ctx context.Context, a *app.App) error {
				if a.Session.IsAuthenticated() {
					return fmt.Errorf("already logged in as %s, run logout first", a.Session.User().Email)
				}
				if err := enter(a, router.RouteLogin); err != nil {
					return err
				}
				if err := a.Login.Submit(ctx, f); err != nil {
					return err
				}
				u := a.Session.User()
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", u.Name, u.Role)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&f.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&f.Password, "password", "p", "", "account password")
	return cmd
}

func newSignupCommand(logger *logrus.Logger) *cobra.Command {
	var f form.Signup

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a student account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, logger, router.RouteSignup, func(ctx context.Context, a *app.App) error {
				if err := a.Signup.Submit(ctx, f); err != nil {
					return err
				}
				if a.Session.IsAuthenticated() {
					fmt.Fprintf(cmd.OutOrStdout(), "Account created, logged in as %s\n", a.Session.User().Name)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Account created, run login to sign in")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&f.Name, "name", "n", "", "display name")
	cmd.Flags().StringVarP(&f.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&f.Password, "password", "p", "", "account password")
	return cmd
}

func newLogoutCommand(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, logger, "", func(ctx context.Context, a *app.App) error {
				if !a.Session.IsAuthenticated() {
					fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
					return nil
				}
				if err := a.Profile.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func newWhoamiCommand(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, logger, router.RouteProfile, func(ctx context.Context, a *app.App) error {
				st := a.Session.State()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Name:  %s\n", st.User.Name)
				fmt.Fprintf(out, "Email: %s\n", st.User.Email)
				fmt.Fprintf(out, "Role:  %s\n", st.User.Role)

				exp, err := tokenExpiry(st.Token)
				switch {
				case err != nil:
					logger.WithError(err).Debug("token expiry unavailable")
				case exp.IsZero():
					fmt.Fprintln(out, "Token: no expiry")
				case time.Now().After(exp):
					fmt.Fprintf(out, "Token: expired at %s\n", exp.Format(time.RFC1123))
				default:
					fmt.Fprintf(out, "Token: valid until %s\n", exp.Format(time.RFC1123))
				}
				return nil
			})
		},
	}
}

var errOpaqueToken = errors.New("token is not a JWT")

// tokenExpiry reads the exp claim without verifying the signature. The
// backend remains the authority on whether the token is accepted.
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", errOpaqueToken, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}
