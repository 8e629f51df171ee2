package api

import (
	"context"
	"net/http"
	"time"

	"postly/internal/domain"
)

// PostQuery selects one page of the feed.
type PostQuery struct {
	Page  int    `url:"page"`
	Limit int    `url:"limit"`
	Term  string `url:"term,omitempty"`
}

// PostPage is one page of posts and the total number of matches.
type PostPage struct {
	Posts []domain.Post
	Total int
}

type postDoc struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	User      *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
}

func (d postDoc) toPost() domain.Post {
	p := domain.Post{
		ID:      d.ID,
		Title:   d.Title,
		Content: d.Content,
		User:    domain.PostAuthor{Name: domain.UnknownAuthor},
	}
	if t, err := time.Parse(time.RFC3339Nano, d.CreatedAt); err == nil {
		p.CreatedAt = t
	}
	if d.User != nil {
		p.User.ID = d.User.ID
		if d.User.Name != "" {
			p.User.Name = d.User.Name
		}
	}
	return p
}

type postPageDoc struct {
	Docs      []postDoc `json:"docs"`
	TotalDocs int       `json:"totalDocs"`
}

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ListPosts fetches one page of posts. Any failure yields an empty page.
func (c *Client) ListPosts(ctx context.Context, q PostQuery) PostPage {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = domain.DefaultPageSize
	}

	resp, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/posts",
		query:  q,
		auth:   true,
	})
	if err != nil {
		return PostPage{}
	}
	defer resp.Body.Close()

	if !ok(resp) {
		c.logger.WithField("status", resp.StatusCode).Warn("list posts rejected")
		return PostPage{}
	}

	var doc postPageDoc
	if err := decodeJSON(resp, &doc); err != nil {
		c.logger.WithError(err).Warn("list posts: bad body")
		return PostPage{}
	}

	page := PostPage{Posts: make([]domain.Post, 0, len(doc.Docs)), Total: doc.TotalDocs}
	for _, d := range doc.Docs {
		page.Posts = append(page.Posts, d.toPost())
	}
	if page.Total == 0 {
		page.Total = len(page.Posts)
	}
	return page
}

// CreatePost publishes a new post as the logged in user.
func (c *Client) CreatePost(ctx context.Context, title, content string) (*domain.Post, error) {
	return c.writePost(ctx, http.MethodPost, "/posts", title, content, "Failed to create post")
}

// UpdatePost replaces the title and content of the post with id.
func (c *Client) UpdatePost(ctx context.Context, id, title, content string) (*domain.Post, error) {
	return c.writePost(ctx, http.MethodPatch, "/posts/"+escapeID(id), title, content, "Failed to update post")
}

func (c *Client) writePost(ctx context.Context, method, path, title, content, fallback string) (*domain.Post, error) {
	resp, err := c.do(ctx, request{
		method: method,
		path:   path,
		body:   postRequest{Title: title, Content: content},
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !ok(resp) {
		return nil, responseError(resp, fallback)
	}
	var doc postDoc
	if err := decodeJSON(resp, &doc); err != nil {
		return nil, err
	}
	p := doc.toPost()
	return &p, nil
}

// DeletePost soft deletes the post with id.
func (c *Client) DeletePost(ctx context.Context, id string) bool {
	return c.remove(ctx, "/posts/"+escapeID(id)+"/remove")
}
