package screen

import (
	"context"
	"errors"

	"postly/internal/api"
	"postly/internal/domain"
	"postly/internal/form"
	"postly/internal/notify"
)

// PostEditor backs the create and edit post screens.
type PostEditor struct {
	posts PostAPI
	deps  Deps
}

func NewPostEditor(posts PostAPI, deps Deps) *PostEditor {
	return &PostEditor{posts: posts, deps: deps}
}

func (e *PostEditor) Create(ctx context.Context, f form.Post) (*domain.Post, error) {
	if err := e.check(f); err != nil {
		return nil, err
	}
	post, err := e.posts.CreatePost(ctx, f.Title, f.Content)
	if err != nil {
		e.deps.notify(notify.Error, "Error", api.Message(err))
		return nil, err
	}
	e.deps.notify(notify.Success, "Post created", "Your post has been shared.")
	e.deps.Nav.Back()
	return post, nil
}

func (e *PostEditor) Update(ctx context.Context, id string, f form.Post) (*domain.Post, error) {
	if err := e.check(f); err != nil {
		return nil, err
	}
	post, err := e.posts.UpdatePost(ctx, id, f.Title, f.Content)
	if err != nil {
		e.deps.notify(notify.Error, "Error", api.Message(err))
		return nil, err
	}
	e.deps.notify(notify.Success, "Post updated", "Your post has been updated.")
	e.deps.Nav.Back()
	return post, nil
}

func (e *PostEditor) check(f form.Post) error {
	err := form.Validate(f)
	if err == nil {
		return nil
	}
	var fe *form.Error
	if errors.As(err, &fe) && fe.Missing() {
		e.deps.notify(notify.Error, "Missing fields", "Please fill in the title and content")
	} else {
		e.deps.notify(notify.Error, "Validation error", err.Error())
	}
	return err
}

// UserEditor backs the create and edit user screens.
type UserEditor struct {
	users UserAPI
	deps  Deps
}

func NewUserEditor(users UserAPI, deps Deps) *UserEditor {
	return &UserEditor{users: users, deps: deps}
}

func (e *UserEditor) Create(ctx context.Context, f form.NewUser) error {
	if err := form.Validate(f); err != nil {
		e.deps.notify(notify.Error, "Missing fields", err.Error())
		return err
	}
	err := e.users.CreateUser(ctx, api.NewUser{
		Name:     f.Name,
		Email:    f.Email,
		Password: f.Password,
		Role:     domain.Role(f.Role),
	})
	if err != nil {
		e.deps.notify(notify.Error, "Error", api.Message(err))
		return err
	}
	e.deps.notify(notify.Success, "User created", "User has been created successfully.")
	e.deps.Nav.Back()
	return nil
}

// Update sends the new name and role of user id. Editing oneself also
// refreshes the session user.
func (e *UserEditor) Update(ctx context.Context, id string, f form.EditUser) (*domain.User, error) {
	if err := form.Validate(f); err != nil {
		e.deps.notify(notify.Error, "Missing fields", err.Error())
		return nil, err
	}

	role := domain.Role(f.Role)
	patch := domain.UserPatch{Name: &f.Name, Role: &role}
	user, err := e.users.EditUser(ctx, id, patch)
	if err != nil {
		e.deps.notify(notify.Error, "Error", "Failed to update user")
		return nil, err
	}

	if me := e.deps.Session.User(); me != nil && me.ID == id {
		e.deps.Session.UpdateUser(patch)
	}
	e.deps.notify(notify.Success, "User updated", "User details have been updated successfully.")
	e.deps.Nav.Back()
	return user, nil
}
