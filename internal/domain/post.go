package domain

import "time"

// UnknownAuthor is shown for posts whose author record is missing.
const UnknownAuthor = "Unknown"

// PostAuthor is the slice of the author embedded in a post.
type PostAuthor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Post represents a feed entry authored by a professor.
type Post struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	User      PostAuthor `json:"user"`
}

// OwnedBy reports whether the post was authored by user.
func (p Post) OwnedBy(user *User) bool {
	return user != nil && user.ID != "" && user.ID == p.User.ID
}
