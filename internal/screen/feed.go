package screen

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"postly/internal/api"
	"postly/internal/domain"
	"postly/internal/notify"
	"postly/internal/router"
)

// FeedState is a snapshot of the feed screen.
type FeedState struct {
	Posts   []domain.Post
	Cursor  domain.Cursor
	Loading bool
}

// Feed pages through posts and searches them.
type Feed struct {
	posts PostAPI
	deps  Deps
	delay *debouncer

	mu      sync.Mutex
	cursor  domain.Cursor
	items   []domain.Post
	loading bool
	gen     uint64
}

func NewFeed(posts PostAPI, deps Deps, pageSize int, debounce time.Duration) *Feed {
	return &Feed{
		posts:  posts,
		deps:   deps,
		delay:  &debouncer{delay: debounce},
		cursor: domain.NewCursor(pageSize),
	}
}

func (f *Feed) State() FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FeedState{
		Posts:   append([]domain.Post(nil), f.items...),
		Cursor:  f.cursor,
		Loading: f.loading,
	}
}

// Load fetches page with the current search term. A response that arrives
// after a newer request was issued is discarded.
func (f *Feed) Load(ctx context.Context, page int) {
	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.loading = true
	q := api.PostQuery{Page: max(page, 1), Limit: f.cursor.PageSize, Term: f.cursor.Term}
	f.mu.Unlock()

	result := f.posts.ListPosts(ctx, q)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		f.deps.Logger.WithFields(logrus.Fields{"page": q.Page, "term": q.Term}).Debug("feed: stale page dropped")
		return
	}
	f.loading = false
	f.items = result.Posts
	f.cursor.Page = q.Page
	f.cursor.Total = result.Total
}

// ChangePage moves to page when it exists.
func (f *Feed) ChangePage(ctx context.Context, page int) error {
	f.mu.Lock()
	cursor := f.cursor
	f.mu.Unlock()

	if !cursor.Contains(page) {
		return fmt.Errorf("%w: %d not in 1..%d", ErrPageOutOfRange, page, cursor.LastPage())
	}
	f.Load(ctx, page)
	return nil
}

// SetTerm replaces the search term without loading.
func (f *Feed) SetTerm(term string) {
	f.mu.Lock()
	f.cursor.Term = strings.TrimSpace(term)
	f.mu.Unlock()
}

// Search sets the term and reloads from page 1 once typing pauses.
func (f *Feed) Search(ctx context.Context, term string) {
	f.SetTerm(term)
	f.delay.trigger(func() {
		f.Load(ctx, 1)
	})
}

func (f *Feed) Refresh(ctx context.Context) {
	f.delay.stop()
	f.Load(ctx, 1)
}

// Close cancels a pending search.
func (f *Feed) Close() {
	f.delay.stop()
}

// CanCreate reports whether the current user may author posts.
func (f *Feed) CanCreate() bool {
	return f.deps.isProfessor()
}

// CanEdit reports whether the current user may edit or delete post.
func (f *Feed) CanEdit(post domain.Post) bool {
	u := f.deps.Session.User()
	return u != nil && u.IsProfessor() && post.OwnedBy(u)
}

// Create opens the post editor.
func (f *Feed) Create() bool {
	if !f.CanCreate() {
		return false
	}
	f.deps.Nav.Push(router.RouteCreatePost)
	return true
}

// Edit opens the editor for post.
func (f *Feed) Edit(post domain.Post) bool {
	if !f.CanEdit(post) {
		return false
	}
	f.deps.Nav.Push(router.RouteEditPost)
	return true
}

// Delete removes post and reloads the current page.
func (f *Feed) Delete(ctx context.Context, post domain.Post) bool {
	if !f.CanEdit(post) {
		f.deps.notify(notify.Error, "Not allowed", "You can only delete your own posts")
		return false
	}
	if !f.posts.DeletePost(ctx, post.ID) {
		f.deps.notify(notify.Error, "Failed to delete post", "")
		return false
	}
	f.deps.notify(notify.Success, "Post deleted", "")

	f.mu.Lock()
	page := f.cursor.Page
	if len(f.items) == 1 && page > 1 {
		page--
	}
	f.mu.Unlock()
	f.Load(ctx, page)
	return true
}
