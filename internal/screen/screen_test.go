package screen

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"postly/internal/api"
	"postly/internal/domain"
	"postly/internal/form"
	"postly/internal/notify"
	"postly/internal/router"
)

var (
	professor = domain.User{ID: "p1", Name: "Ana", Email: "a@b.com", Role: domain.RoleProfessor}
	student   = domain.User{ID: "s1", Name: "Bo", Email: "bo@b.com", Role: domain.RoleStudent}
)

type fakeSession struct {
	mu     sync.Mutex
	user   *domain.User
	token  string
	logout error
}

func (s *fakeSession) Login(user domain.User, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user, s.token = &user, token
	return nil
}

func (s *fakeSession) Logout(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logout != nil {
		return s.logout
	}
	s.user, s.token = nil, ""
	return nil
}

func (s *fakeSession) UpdateUser(patch domain.UserPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil {
		u := patch.Apply(*s.user)
		s.user = &u
	}
}

func (s *fakeSession) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

type fakeAuth struct {
	calls int
	creds *api.Credentials
	err   error
}

func (a *fakeAuth) SignIn(context.Context, string, string) (*api.Credentials, error) {
	a.calls++
	return a.creds, a.err
}

func (a *fakeAuth) SignUp(context.Context, string, string, string) (*api.Credentials, error) {
	a.calls++
	return a.creds, a.err
}

type fakePosts struct {
	mu      sync.Mutex
	queries []api.PostQuery
	total   int
	hold    map[int]chan struct{}
	started chan int
	deleted []string
	writes  int
}

func (p *fakePosts) ListPosts(_ context.Context, q api.PostQuery) api.PostPage {
	p.mu.Lock()
	p.queries = append(p.queries, q)
	hold := p.hold[q.Page]
	total := p.total
	p.mu.Unlock()

	if p.started != nil {
		p.started <- q.Page
	}
	if hold != nil {
		<-hold
	}
	return api.PostPage{
		Posts: []domain.Post{{ID: "post-" + q.Term, Title: q.Term, User: domain.PostAuthor{ID: professor.ID}}},
		Total: total,
	}
}

func (p *fakePosts) CreatePost(_ context.Context, title, content string) (*domain.Post, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes++
	return &domain.Post{ID: "new", Title: title, Content: content}, nil
}

func (p *fakePosts) UpdatePost(_ context.Context, id, title, content string) (*domain.Post, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes++
	return &domain.Post{ID: id, Title: title, Content: content}, nil
}

func (p *fakePosts) DeletePost(_ context.Context, id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, id)
	return true
}

func (p *fakePosts) Queries() []api.PostQuery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]api.PostQuery(nil), p.queries...)
}

type fakeUsers struct {
	mu      sync.Mutex
	filters []api.UserFilter
	created []api.NewUser
	edits   map[string]domain.UserPatch
	err     error
}

func (u *fakeUsers) CreateUser(_ context.Context, nu api.NewUser) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.created = append(u.created, nu)
	return u.err
}

func (u *fakeUsers) ListUsers(_ context.Context, f api.UserFilter) []domain.User {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.filters = append(u.filters, f)
	return []domain.User{student}
}

func (u *fakeUsers) EditUser(_ context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return nil, u.err
	}
	if u.edits == nil {
		u.edits = make(map[string]domain.UserPatch)
	}
	u.edits[id] = patch
	updated := patch.Apply(domain.User{ID: id})
	return &updated, nil
}

func (u *fakeUsers) RemoveUser(context.Context, string) bool {
	return u.err == nil
}

func (u *fakeUsers) Filters() []api.UserFilter {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]api.UserFilter(nil), u.filters...)
}

type fixture struct {
	deps    Deps
	session *fakeSession
	history *router.History
	notes   *notify.Recorder
}

func newFixture(user *domain.User, start string) fixture {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	sess := &fakeSession{}
	if user != nil {
		_ = sess.Login(*user, "tok")
	}
	history := router.NewHistory()
	history.Push(start)
	notes := &notify.Recorder{}
	return fixture{
		deps:    Deps{Session: sess, Nav: history, Notifier: notes, Logger: logger},
		session: sess,
		history: history,
		notes:   notes,
	}
}

func (f fixture) lastNotice(t *testing.T) notify.Notice {
	t.Helper()
	n, ok := f.notes.Last()
	if !ok {
		t.Fatal("no notice recorded")
	}
	return n
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLoginMissingFieldsSkipsNetwork(t *testing.T) {
	fx := newFixture(nil, router.RouteLogin)
	auth := &fakeAuth{}

	err := NewLogin(auth, fx.deps).Submit(context.Background(), form.Login{Email: "a@b.com"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if auth.calls != 0 {
		t.Fatalf("sign in called %d times", auth.calls)
	}
	if n := fx.lastNotice(t); n.Kind != notify.Error || n.Title != "Missing fields" {
		t.Fatalf("unexpected notice %+v", n)
	}
}

func TestLoginSuccess(t *testing.T) {
	fx := newFixture(nil, router.RouteLogin)
	auth := &fakeAuth{creds: &api.Credentials{User: professor, AccessToken: "tok"}}

	if err := NewLogin(auth, fx.deps).Submit(context.Background(), form.Login{Email: "a@b.com", Password: "Secret1!"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if u := fx.session.User(); u == nil || u.ID != professor.ID {
		t.Fatalf("session not started: %+v", u)
	}
	if loc := fx.history.Location(); loc != router.RouteFeed {
		t.Fatalf("expected %s, got %s", router.RouteFeed, loc)
	}
	if n := fx.lastNotice(t); n.Title != "Welcome back!" {
		t.Fatalf("unexpected notice %+v", n)
	}
}

func TestLoginFailureShowsBackendMessage(t *testing.T) {
	fx := newFixture(nil, router.RouteLogin)
	auth := &fakeAuth{err: &api.Error{Status: 401, Message: "Invalid credentials"}}

	if err := NewLogin(auth, fx.deps).Submit(context.Background(), form.Login{Email: "a@b.com", Password: "x"}); err == nil {
		t.Fatal("expected error")
	}
	if n := fx.lastNotice(t); n.Title != "Login Failed" || n.Message != "Invalid credentials" {
		t.Fatalf("unexpected notice %+v", n)
	}
	if fx.session.User() != nil || fx.history.Location() != router.RouteLogin {
		t.Fatal("failed login must not change session or location")
	}
}

func TestSignupWithoutTokenGoesToLogin(t *testing.T) {
	fx := newFixture(nil, router.RouteSignup)
	auth := &fakeAuth{creds: &api.Credentials{}}

	err := NewSignup(auth, fx.deps).Submit(context.Background(), form.Signup{Name: "Ana", Email: "a@b.com", Password: "Secret1!"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if fx.history.Location() != router.RouteLogin {
		t.Fatalf("expected login, got %s", fx.history.Location())
	}
	if fx.session.User() != nil {
		t.Fatal("session must not start without a token")
	}
}

func TestSignupWithTokenLogsIn(t *testing.T) {
	fx := newFixture(nil, router.RouteSignup)
	auth := &fakeAuth{creds: &api.Credentials{User: student, AccessToken: "tok"}}

	err := NewSignup(auth, fx.deps).Submit(context.Background(), form.Signup{Name: "Bo", Email: "bo@b.com", Password: "Secret1!"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if fx.history.Location() != router.RouteFeed || fx.session.User() == nil {
		t.Fatalf("expected logged in on feed, at %s", fx.history.Location())
	}
}

func TestPostEditorRejectsShortTitle(t *testing.T) {
	fx := newFixture(&professor, router.RouteFeed)
	fx.history.Push(router.RouteCreatePost)
	posts := &fakePosts{}

	_, err := NewPostEditor(posts, fx.deps).Create(context.Background(), form.Post{Title: "ab", Content: "long enough content"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if posts.writes != 0 {
		t.Fatalf("network called %d times", posts.writes)
	}
	if n := fx.lastNotice(t); n.Title != "Validation error" {
		t.Fatalf("unexpected notice %+v", n)
	}
	if fx.history.Location() != router.RouteCreatePost {
		t.Fatal("editor must stay open on validation errors")
	}
}

func TestPostEditorSuccessGoesBack(t *testing.T) {
	fx := newFixture(&professor, router.RouteFeed)
	fx.history.Push(router.RouteEditPost)
	posts := &fakePosts{}

	post, err := NewPostEditor(posts, fx.deps).Update(context.Background(), "p9", form.Post{Title: "Exam", Content: "Chapters 1 to 4"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if post.ID != "p9" || posts.writes != 1 {
		t.Fatalf("unexpected post %+v", post)
	}
	if fx.history.Location() != router.RouteFeed {
		t.Fatalf("expected back to feed, got %s", fx.history.Location())
	}
}

func TestFeedRejectsPageOutOfRange(t *testing.T) {
	fx := newFixture(&professor, router.RouteFeed)
	posts := &fakePosts{total: 25}
	feed := NewFeed(posts, fx.deps, 10, 0)

	feed.Load(context.Background(), 1)
	if got := feed.State().Cursor.TotalPages(); got != 3 {
		t.Fatalf("expected 3 pages, got %d", got)
	}

	if err := feed.ChangePage(context.Background(), 4); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
	if n := len(posts.Queries()); n != 1 {
		t.Fatalf("out of range page hit the network: %d requests", n)
	}

	if err := feed.ChangePage(context.Background(), 3); err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if feed.State().Cursor.Page != 3 {
		t.Fatalf("expected page 3, got %d", feed.State().Cursor.Page)
	}
}

func TestFeedDropsStaleResponse(t *testing.T) {
	fx := newFixture(&professor, router.RouteFeed)
	release := make(chan struct{})
	posts := &fakePosts{total: 30, hold: map[int]chan struct{}{1: release}, started: make(chan int, 4)}
	feed := NewFeed(posts, fx.deps, 10, 0)

	done := make(chan struct{})
	go func() {
		feed.Load(context.Background(), 1)
		close(done)
	}()
	<-posts.started

	feed.SetTerm("newer")
	feed.Load(context.Background(), 2)
	<-posts.started
	close(release)
	<-done

	st := feed.State()
	if st.Cursor.Page != 2 || st.Posts[0].Title != "newer" {
		t.Fatalf("stale response applied: %+v", st)
	}
	if st.Loading {
		t.Fatal("feed still loading")
	}
}

func TestFeedSearchDebounces(t *testing.T) {
	fx := newFixture(&professor, router.RouteFeed)
	posts := &fakePosts{total: 25}
	feed := NewFeed(posts, fx.deps, 10, 20*time.Millisecond)
	defer feed.Close()

	feed.Load(context.Background(), 1)
	if err := feed.ChangePage(context.Background(), 2); err != nil {
		t.Fatalf("page 2: %v", err)
	}

	for _, term := range []string{"e", "ex", "exam"} {
		feed.Search(context.Background(), term)
	}
	eventually(t, func() bool { return len(posts.Queries()) == 3 })
	time.Sleep(50 * time.Millisecond)

	queries := posts.Queries()
	if len(queries) != 3 {
		t.Fatalf("expected a single search request, got %v", queries)
	}
	if last := queries[2]; last.Term != "exam" || last.Page != 1 {
		t.Fatalf("unexpected search %+v", last)
	}
}

func TestFeedPermissions(t *testing.T) {
	mine := domain.Post{ID: "m", User: domain.PostAuthor{ID: professor.ID}}
	theirs := domain.Post{ID: "t", User: domain.PostAuthor{ID: "other"}}

	fx := newFixture(&professor, router.RouteFeed)
	posts := &fakePosts{}
	feed := NewFeed(posts, fx.deps, 10, 0)
	if !feed.CanCreate() || !feed.CanEdit(mine) || feed.CanEdit(theirs) {
		t.Fatal("unexpected professor permissions")
	}
	if feed.Delete(context.Background(), theirs) {
		t.Fatal("deleted someone else's post")
	}
	if !feed.Delete(context.Background(), mine) || len(posts.deleted) != 1 {
		t.Fatal("own post not deleted")
	}

	fx = newFixture(&student, router.RouteFeed)
	feed = NewFeed(&fakePosts{}, fx.deps, 10, 0)
	if feed.CanCreate() || feed.Create() {
		t.Fatal("student may not create posts")
	}
	if fx.history.Location() != router.RouteFeed {
		t.Fatal("student navigated to the editor")
	}
}

func TestUsersFilters(t *testing.T) {
	fx := newFixture(&professor, router.RouteUsers)
	users := &fakeUsers{}
	screen := NewUsers(users, fx.deps, 10*time.Millisecond)
	defer screen.Close()

	if err := screen.FilterRole(context.Background(), "student"); err != nil {
		t.Fatalf("filter role: %v", err)
	}
	if err := screen.FilterRole(context.Background(), "admin"); err == nil {
		t.Fatal("unknown role accepted")
	}

	screen.FilterEmail(context.Background(), "b")
	screen.FilterEmail(context.Background(), "bo@")
	eventually(t, func() bool { return len(users.Filters()) == 2 && !screen.State().Loading })

	got := users.Filters()[1]
	if got.Email != "bo@" || got.Role != domain.RoleStudent {
		t.Fatalf("unexpected filter %+v", got)
	}
	if st := screen.State(); len(st.Users) != 1 || st.Loading {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestUserEditorSelfEditUpdatesSession(t *testing.T) {
	fx := newFixture(&professor, router.RouteUsers)
	fx.history.Push(router.RouteEditUser)
	users := &fakeUsers{}

	_, err := NewUserEditor(users, fx.deps).Update(context.Background(), professor.ID,
		form.EditUser{Name: "Ana Maria", Email: professor.Email, Role: "PROFESSOR"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u := fx.session.User(); u.Name != "Ana Maria" {
		t.Fatalf("session user not refreshed: %+v", u)
	}
	patch := users.edits[professor.ID]
	if patch.Email != nil || patch.Password != nil {
		t.Fatalf("only name and role may be sent: %+v", patch)
	}
	if fx.history.Location() != router.RouteUsers {
		t.Fatalf("expected back to users, got %s", fx.history.Location())
	}
}

func TestUserEditorCreate(t *testing.T) {
	fx := newFixture(&professor, router.RouteUsers)
	fx.history.Push(router.RouteCreateUser)
	users := &fakeUsers{}
	editor := NewUserEditor(users, fx.deps)

	if err := editor.Create(context.Background(), form.NewUser{Name: "Cy", Email: "cy@b.com", Password: "Secret1!"}); err == nil {
		t.Fatal("missing role accepted")
	}
	err := editor.Create(context.Background(), form.NewUser{Name: "Cy", Email: "cy@b.com", Password: "Secret1!", Role: "STUDENT"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(users.created) != 1 || users.created[0].Role != domain.RoleStudent {
		t.Fatalf("unexpected create %+v", users.created)
	}
}

func TestProfileChangePassword(t *testing.T) {
	fx := newFixture(&student, router.RouteProfile)
	if NewProfile(fx.deps).ChangePassword() {
		t.Fatal("student opened change password")
	}
	if n := fx.lastNotice(t); n.Kind != notify.Info {
		t.Fatalf("unexpected notice %+v", n)
	}

	fx = newFixture(&professor, router.RouteProfile)
	if !NewProfile(fx.deps).ChangePassword() || fx.history.Location() != router.RouteChangePassword {
		t.Fatal("professor could not open change password")
	}
}

func TestProfileLogoutFailureNotifies(t *testing.T) {
	fx := newFixture(&professor, router.RouteProfile)
	fx.session.logout = errors.New("disk full")

	if err := NewProfile(fx.deps).Logout(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if fx.session.User() == nil {
		t.Fatal("session dropped although logout failed")
	}
	if n := fx.lastNotice(t); n.Kind != notify.Error || n.Title != "Logout failed" {
		t.Fatalf("unexpected notice %+v", n)
	}
}

func TestChangePasswordSubmit(t *testing.T) {
	weak := form.Password{Password: "secret", Confirm: "secret"}
	strong := form.Password{Password: "Secret1!", Confirm: "Secret1!"}

	fx := newFixture(&professor, router.RouteProfile)
	fx.history.Push(router.RouteChangePassword)
	users := &fakeUsers{}
	screen := NewChangePassword(users, fx.deps)

	if err := screen.Submit(context.Background(), weak); err == nil || len(users.edits) != 0 {
		t.Fatal("weak password sent")
	}
	if err := screen.Submit(context.Background(), strong); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if p := users.edits[professor.ID]; p.Password == nil || *p.Password != "Secret1!" || p.Name != nil {
		t.Fatalf("unexpected patch %+v", p)
	}
	if fx.history.Location() != router.RouteProfile {
		t.Fatalf("expected back to profile, got %s", fx.history.Location())
	}

	fx = newFixture(nil, router.RouteChangePassword)
	if err := NewChangePassword(users, fx.deps).Submit(context.Background(), strong); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
