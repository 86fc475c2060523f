package models

import "time"

// Forum groups the comments about one movie.
type Forum struct {
	ID        int64     `json:"id" db:"id"`
	MovieID   int64     `json:"filme_id" db:"filme_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Comment is a forum post, optionally replying to another comment.
type Comment struct {
	ID          int64     `json:"id" db:"id"`
	Message     string    `json:"mensagem" db:"mensagem"`
	Likes       int       `json:"likes" db:"likes"`
	UserID      int64     `json:"usuario_id" db:"usuario_id"`
	ForumID     int64     `json:"forum_id" db:"forum_id"`
	ProfileID   int64     `json:"perfil_id" db:"perfil_id"`
	ReplyToID   *int64    `json:"respondendo_id,omitempty" db:"respondendo_id"`
	ProfileName string    `json:"perfil_nome,omitempty" db:"perfil_nome"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// CommentOwner is the chain used to authorize edits: comment, then profile, then user.
type CommentOwner struct {
	CommentID int64 `db:"comment_id"`
	ProfileID int64 `db:"perfil_id"`
	UserID    int64 `db:"usuario_id"`
}
