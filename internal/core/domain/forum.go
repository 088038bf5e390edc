package domain

import "time"

type Post struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Channel      string    `json:"channel"`
	AuthorID     string    `json:"author_id"`
	AuthorName   string    `json:"author_name"`
	Upvotes      int       `json:"upvotes"`
	CommentCount int       `json:"comment_count"`
	Version      int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// PostDelta is a relative change to a post's counters.
type PostDelta struct {
	Upvotes  int
	Comments int
}

type Comment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"post_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreatePostRequest struct {
	Title      string `json:"title" validate:"min=5,max=200"`
	Content    string `json:"content" validate:"min=10"`
	Channel    string `json:"channel" validate:"required"`
	AuthorID   string `json:"author_id" validate:"required,max=128"`
	AuthorName string `json:"author_name"`
}

type AddCommentRequest struct {
	PostID     string `json:"post_id" validate:"required"`
	Content    string `json:"content" validate:"required"`
	AuthorID   string `json:"author_id" validate:"required,max=128"`
	AuthorName string `json:"author_name"`
}
