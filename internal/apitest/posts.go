package apitest

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"postly/internal/domain"
)

var (
	// ErrPostNotFound is returned for unknown or deleted posts.
	ErrPostNotFound = errors.New("Post not found")
	// ErrNotOwner is returned when a user touches someone else's post.
	ErrNotOwner = errors.New("You can only modify your own posts")
)

type postRecord struct {
	post    domain.Post
	deleted bool
}

// postService coordinates the posts of the fake backend.
type postService struct {
	mu   sync.RWMutex
	byID map[string]*postRecord
	now  func() time.Time
}

func newPostService() *postService {
	return &postService{
		byID: make(map[string]*postRecord),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *postService) Create(author domain.User, title, content string) domain.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &postRecord{post: domain.Post{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		CreatedAt: s.now(),
		User:      domain.PostAuthor{ID: author.ID, Name: author.Name},
	}}
	// Keep creation order strict even when the clock does not advance.
	for _, other := range s.byID {
		if !rec.post.CreatedAt.After(other.post.CreatedAt) {
			rec.post.CreatedAt = other.post.CreatedAt.Add(time.Millisecond)
		}
	}
	s.byID[rec.post.ID] = rec
	return rec.post
}

// Page returns live posts newest first, filtered by term over title and
// content, and the total number of matches.
func (s *postService) Page(page, limit int, term string) ([]domain.Post, int) {
	term = strings.ToLower(strings.TrimSpace(term))

	s.mu.RLock()
	matches := make([]domain.Post, 0, len(s.byID))
	for _, rec := range s.byID {
		if rec.deleted {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(rec.post.Title), term) &&
			!strings.Contains(strings.ToLower(rec.post.Content), term) {
			continue
		}
		matches = append(matches, rec.post)
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := len(matches)
	start := (page - 1) * limit
	if start >= total {
		return []domain.Post{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matches[start:end], total
}

func (s *postService) Update(owner domain.User, id, title, content string) (domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.owned(owner, id)
	if err != nil {
		return domain.Post{}, err
	}
	rec.post.Title = title
	rec.post.Content = content
	return rec.post, nil
}

func (s *postService) Remove(owner domain.User, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.owned(owner, id)
	if err != nil {
		return err
	}
	rec.deleted = true
	return nil
}

func (s *postService) owned(owner domain.User, id string) (*postRecord, error) {
	rec, ok := s.byID[id]
	if !ok || rec.deleted {
		return nil, ErrPostNotFound
	}
	if !rec.post.OwnedBy(&owner) {
		return nil, ErrNotOwner
	}
	return rec, nil
}
