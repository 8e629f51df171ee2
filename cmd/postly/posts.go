package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postly/internal/api"
	"postly/internal/app"
	"postly/internal/domain"
	"postly/internal/form"
	"postly/internal/router"
)

func newFeedCommand(logger *logrus.Logger) *cobra.Command {
	var (
		page int
		term string
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "List posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, logger, router.RouteFeed, func(ctx context.Context, a *app.App) error {
				a.Feed.SetTerm(term)
				a.Feed.Load(ctx, 1)
				if page != 1 {
					if err := a.Feed.ChangePage(ctx, page); err != nil {
						return err
					}
				}

				st := a.Feed.State()
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tCREATED")
				for _, p := range st.Posts {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Title, p.User.Name, p.CreatedAt.Format("2006-01-02 15:04"))
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d (%d posts)\n", st.Cursor.Page, st.Cursor.LastPage(), st.Cursor.Total)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page to show")
	cmd.Flags().StringVar(&term, "term", "", "search term")
	return cmd
}

func newPostCommand(logger *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Create, edit and delete posts",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(
		newPostCreateCommand(logger),
		newPostEditCommand(logger),
		newPostDeleteCommand(logger),
	)
	return cmd
}

func newPostCreateCommand(logger *logrus.Logger) *cobra.Command {
	var f form.Post

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, logger, router.RouteFeed, func(ctx context.Context, a *app.App) error {
				if err := enter(a, router.RouteCreatePost); err != nil {
					return err
				}
				post, err := a.PostEditor.Create(ctx, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created post %s\n", post.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&f.Title, "title", "t", "", "post title")
	cmd.Flags().StringVarP(&f.Content, "content", "c", "", "post content")
	return cmd
}

func newPostEditCommand(logger *logrus.Logger) *cobra.Command {
	var f form.Post

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, logger, router.RouteFeed, func(ctx context.Context, a *app.App) error {
				post, err := findPost(ctx, a, args[0])
				if err != nil {
					return err
				}
				if f.Title == "" {
					f.Title = post.Title
				}
				if f.Content == "" {
					f.Content = post.Content
				}
				if !a.Feed.Edit(post) {
					return fmt.Errorf("post %s is not yours to edit", post.ID)
				}
				if _, err := a.PostEditor.Update(ctx, post.ID, f); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated post %s\n", post.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&f.Title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&f.Content, "content", "c", "", "new content")
	return cmd
}

func newPostDeleteCommand(logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, logger, router.RouteFeed, func(ctx context.Context, a *app.App) error {
				post, err := findPost(ctx, a, args[0])
				if err != nil {
					return err
				}
				if !a.Feed.Delete(ctx, post) {
					return fmt.Errorf("post %s was not deleted", post.ID)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted post %s\n", post.ID)
				return nil
			})
		},
	}
}

// findPost walks the feed until it meets id.
func findPost(ctx context.Context, a *app.App, id string) (domain.Post, error) {
	cursor := domain.NewCursor(domain.DefaultPageSize)
	for page := 1; page <= cursor.LastPage(); page++ {
		result := a.API.ListPosts(ctx, api.PostQuery{Page: page, Limit: cursor.PageSize})
		cursor.Total = result.Total
		for _, p := range result.Posts {
			if p.ID == id {
				return p, nil
			}
		}
		if len(result.Posts) == 0 {
			break
		}
	}
	return domain.Post{}, fmt.Errorf("post %s not found", id)
}
