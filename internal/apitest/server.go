// Package apitest runs an in-process fake of the Postly REST backend for
// tests. It speaks the same routes and payloads as the real service, keeps
// everything in memory and records every request it receives.
package apitest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"postly/internal/domain"
)

const userKey = "apitest.user"

// Request is what the fake backend saw of one call.
type Request struct {
	Method        string
	Path          string
	Query         string
	Authorization string
}

// Server is a running fake backend.
type Server struct {
	URL string

	srv    *httptest.Server
	users  *userService
	posts  *postService
	tokens *tokenIssuer

	staticToken  string
	signUpLogsIn bool
	pagedUsers   bool

	mu       sync.Mutex
	requests []Request
}

type Option func(*Server)

// WithStaticToken makes sign-in answer with token instead of a signed JWT.
func WithStaticToken(token string) Option {
	return func(s *Server) {
		s.staticToken = token
	}
}

// WithoutSignUpToken makes self registration answer without credentials, so
// the client has to sign in separately.
func WithoutSignUpToken() Option {
	return func(s *Server) {
		s.signUpLogsIn = false
	}
}

// WithPagedUsers wraps the user listing in a {docs: [...]} page.
func WithPagedUsers() Option {
	return func(s *Server) {
		s.pagedUsers = true
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		users:        newUserService(),
		posts:        newPostService(),
		tokens:       newTokenIssuer("apitest-secret"),
		signUpLogsIn: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s.RegisterRoutes(router)

	s.srv = httptest.NewServer(router)
	s.URL = s.srv.URL
	return s
}

func (s *Server) Close() {
	s.srv.Close()
}

// AddUser seeds an account. It panics when the email is taken.
func (s *Server) AddUser(name, email, password string, role domain.Role) domain.User {
	user, err := s.users.Register(name, email, password, role)
	if err != nil {
		panic("apitest: add user: " + err.Error())
	}
	return user
}

// AddPost seeds a post authored by author.
func (s *Server) AddPost(author domain.User, title, content string) domain.Post {
	return s.posts.Create(author, title, content)
}

// Token issues an access token for user, as sign-in would.
func (s *Server) Token(user domain.User) string {
	if s.staticToken != "" {
		s.tokens.Pin(s.staticToken, user.ID)
		return s.staticToken
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		panic("apitest: issue token: " + err.Error())
	}
	return token
}

// Users returns the live accounts.
func (s *Server) Users() []domain.User {
	return s.users.List("", "")
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request matching method and path.
func (s *Server) LastRequest(method, path string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		r := s.requests[i]
		if r.Method == method && r.Path == path {
			return r, true
		}
	}
	return Request{}, false
}

func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.Use(s.recordMiddleware())

	auth := router.Group("/auth")
	{
		auth.POST("/sign-in", s.signIn)
		auth.POST("/sign-up", s.optionalAuth(), s.signUp)
		auth.GET("", s.requireAuth(), s.requireProfessor(), s.listUsers)
		auth.PATCH("/:id", s.requireAuth(), s.editUser)
		auth.PATCH("/:id/remove", s.requireAuth(), s.requireProfessor(), s.removeUser)
	}

	posts := router.Group("/posts", s.requireAuth())
	{
		posts.GET("", s.listPosts)
		posts.POST("", s.requireProfessor(), s.createPost)
		posts.PATCH("/:id", s.updatePost)
		posts.PATCH("/:id/remove", s.removePost)
	}
}

func (s *Server) recordMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        c.Request.Method,
			Path:          c.Request.URL.Path,
			Query:         c.Request.URL.RawQuery,
			Authorization: c.GetHeader("Authorization"),
		})
		s.mu.Unlock()
		c.Next()
	}
}

func fail(c *gin.Context, status int, message any) {
	c.AbortWithStatusJSON(status, gin.H{
		"statusCode": status,
		"message":    message,
		"error":      http.StatusText(status),
	})
}

func bearer(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func (s *Server) authenticate(c *gin.Context) (domain.User, error) {
	token, ok := bearer(c)
	if !ok {
		return domain.User{}, errors.New("missing authorization header")
	}
	id, err := s.tokens.Subject(token)
	if err != nil {
		return domain.User{}, err
	}
	return s.users.GetByID(id)
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.authenticate(c)
		if err != nil {
			fail(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func (s *Server) optionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, err := s.authenticate(c); err == nil {
			c.Set(userKey, user)
		}
		c.Next()
	}
}

func (s *Server) requireProfessor() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := caller(c)
		if !ok || !user.IsProfessor() {
			fail(c, http.StatusForbidden, "Forbidden resource")
			return
		}
		c.Next()
	}
}

func caller(c *gin.Context) (domain.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := v.(domain.User)
	return user, ok
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

func (r signUpRequest) problems() []string {
	var out []string
	if strings.TrimSpace(r.Name) == "" {
		out = append(out, "name should not be empty")
	}
	if !strings.Contains(r.Email, "@") {
		out = append(out, "email must be an email")
	}
	if len(r.Password) < 6 {
		out = append(out, "password must be longer than or equal to 6 characters")
	}
	if r.Role != "" && !r.Role.Valid() {
		out = append(out, "role must be one of the following values: STUDENT, PROFESSOR")
	}
	return out
}

func (s *Server) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.users.Authenticate(req.Email, req.Password)
	if err != nil {
		fail(c, http.StatusUnauthorized, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "accessToken": s.Token(user)})
}

func (s *Server) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if problems := req.problems(); len(problems) > 0 {
		fail(c, http.StatusBadRequest, problems)
		return
	}

	role := domain.RoleStudent
	by, byProfessor := caller(c)
	byProfessor = byProfessor && by.IsProfessor()
	if byProfessor && req.Role != "" {
		role = req.Role
	}

	user, err := s.users.Register(req.Name, req.Email, req.Password, role)
	if err != nil {
		if errors.Is(err, ErrUserAlreadyExists) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	if byProfessor || !s.signUpLogsIn {
		c.JSON(http.StatusCreated, gin.H{"user": user})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "accessToken": s.Token(user)})
}

func (s *Server) listUsers(c *gin.Context) {
	role, ok := domain.ParseRole(c.Query("role"))
	if !ok {
		fail(c, http.StatusBadRequest, []string{"role must be one of the following values: STUDENT, PROFESSOR"})
		return
	}
	users := s.users.List(c.Query("email"), role)
	if s.pagedUsers {
		c.JSON(http.StatusOK, gin.H{"docs": users, "totalDocs": len(users)})
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) editUser(c *gin.Context) {
	user, _ := caller(c)
	id := c.Param("id")
	if id != user.ID && !user.IsProfessor() {
		fail(c, http.StatusForbidden, "Forbidden resource")
		return
	}

	var patch domain.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if patch.Role != nil && (!user.IsProfessor() || !patch.Role.Valid()) {
		fail(c, http.StatusBadRequest, []string{"role must be one of the following values: STUDENT, PROFESSOR"})
		return
	}

	updated, err := s.users.Update(id, patch)
	if err != nil {
		fail(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, updated)
}

type removeRequest struct {
	Deleted bool `json:"deleted"`
}

func (s *Server) removeUser(c *gin.Context) {
	var req removeRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Deleted {
		fail(c, http.StatusBadRequest, "deleted must be true")
		return
	}
	user, err := s.users.Remove(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, user)
}

type authorResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type postResponse struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	CreatedAt string          `json:"createdAt"`
	User      *authorResponse `json:"user"`
}

// postToResponse embeds the current author record, or null once the author
// has been removed.
func (s *Server) postToResponse(p domain.Post) postResponse {
	resp := postResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		CreatedAt: p.CreatedAt.Format(time.RFC3339Nano),
	}
	if author, err := s.users.GetByID(p.User.ID); err == nil {
		resp.User = &authorResponse{ID: author.ID, Name: author.Name}
	}
	return resp
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func (s *Server) listPosts(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", domain.DefaultPageSize)

	posts, total := s.posts.Page(page, limit, c.Query("term"))
	docs := make([]postResponse, len(posts))
	for i := range posts {
		docs[i] = s.postToResponse(posts[i])
	}
	c.JSON(http.StatusOK, gin.H{
		"docs":       docs,
		"totalDocs":  total,
		"page":       page,
		"limit":      limit,
		"totalPages": (total + limit - 1) / limit,
	})
}

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (r postRequest) problems() []string {
	var out []string
	if strings.TrimSpace(r.Title) == "" {
		out = append(out, "title should not be empty")
	}
	if strings.TrimSpace(r.Content) == "" {
		out = append(out, "content should not be empty")
	}
	return out
}

func (s *Server) bindPost(c *gin.Context) (postRequest, bool) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return req, false
	}
	if problems := req.problems(); len(problems) > 0 {
		fail(c, http.StatusBadRequest, problems)
		return req, false
	}
	return req, true
}

func (s *Server) createPost(c *gin.Context) {
	req, ok := s.bindPost(c)
	if !ok {
		return
	}
	user, _ := caller(c)
	post := s.posts.Create(user, req.Title, req.Content)
	c.JSON(http.StatusCreated, s.postToResponse(post))
}

func (s *Server) updatePost(c *gin.Context) {
	req, ok := s.bindPost(c)
	if !ok {
		return
	}
	user, _ := caller(c)
	post, err := s.posts.Update(user, c.Param("id"), req.Title, req.Content)
	if err != nil {
		s.postError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.postToResponse(post))
}

func (s *Server) removePost(c *gin.Context) {
	var req removeRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Deleted {
		fail(c, http.StatusBadRequest, "deleted must be true")
		return
	}
	user, _ := caller(c)
	if err := s.posts.Remove(user, c.Param("id")); err != nil {
		s.postError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) postError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotOwner):
		fail(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrPostNotFound):
		fail(c, http.StatusNotFound, err.Error())
	default:
		fail(c, http.StatusInternalServerError, err.Error())
	}
}
