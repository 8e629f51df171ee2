package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postly/internal/app"
	"postly/internal/domain"
	"postly/internal/form"
	"postly/internal/router"
)

func newUsersCommand(logger *logrus.Logger) *cobra.Command {
	var email, role string

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List and manage users (professors only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, logger, router.RouteUsers, func(ctx context.Context, a *app.App) error {
				if err := a.Users.Filter(ctx, email, role); err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE")
				for _, u := range a.Users.State().Users {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "filter by email")
	cmd.Flags().StringVar(&role, "role", "", "filter by role (STUDENT or PROFESSOR)")

	cmd.AddCommand(
		newUserCreateCommand(logger),
		newUserEditCommand(logger),
		newUserRemoveCommand(logger),
	)
	return cmd
}

func newUserCreateCommand(logger *logrus.Logger) *cobra.Command {
	var f form.NewUser

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, logger, router.RouteUsers, func(ctx context.Context, a *app.App) error {
				if err := enter(a, router.RouteCreateUser); err != nil {
					return err
				}
				if err := a.UserEditor.Create(ctx, f); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", f.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&f.Name, "name", "n", "", "display name")
	cmd.Flags().StringVarP(&f.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&f.Password, "password", "p", "", "initial password")
	cmd.Flags().StringVarP(&f.Role, "role", "r", string(domain.RoleStudent), "STUDENT or PROFESSOR")
	return cmd
}

func newUserEditCommand(logger *logrus.Logger) *cobra.Command {
	var f form.EditUser

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the name or role of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, logger, router.RouteUsers, func(ctx context.Context, a *app.App) error {
				target, err := findUser(ctx, a, args[0])
				if err != nil {
					return err
				}
				if f.Name == "" {
					f.Name = target.Name
				}
				if f.Email == "" {
					f.Email = target.Email
				}
				if f.Role == "" {
					f.Role = string(target.Role)
				}

				a.Users.Edit(target)
				user, err := a.UserEditor.Update(ctx, target.ID, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s (%s)\n", user.ID, user.Name, user.Role)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&f.Name, "name", "n", "", "new display name")
	cmd.Flags().StringVarP(&f.Role, "role", "r", "", "new role")
	return cmd
}

func newUserRemoveCommand(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Deactivate an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, logger, router.RouteUsers, func(ctx context.Context, a *app.App) error {
				target, err := findUser(ctx, a, args[0])
				if err != nil {
					return err
				}
				if !a.Users.Remove(ctx, target) {
					return fmt.Errorf("user %s was not removed", target.ID)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", target.Email)
				return nil
			})
		},
	}
}

func findUser(ctx context.Context, a *app.App, id string) (domain.User, error) {
	a.Users.Load(ctx)
	for _, u := range a.Users.State().Users {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("user %s not found", id)
}

func newPasswordCommand(logger *logrus.Logger) *cobra.Command {
	var f form.Password

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change your password (professors only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, logger, router.RouteProfile, func(ctx context.Context, a *app.App) error {
				if !a.Profile.ChangePassword() {
					return fmt.Errorf("password changes are not available to students")
				}
				if loc := a.History.Location(); loc != router.RouteChangePassword {
					return fmt.Errorf("cannot open %s: redirected to %s", router.RouteChangePassword, loc)
				}
				if err := a.ChangePassword.Submit(ctx, f); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Password updated")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&f.Password, "password", "p", "", "new password")
	cmd.Flags().StringVar(&f.Confirm, "confirm", "", "repeat the new password")
	return cmd
}
