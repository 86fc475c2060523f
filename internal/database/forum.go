package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/cinematch/internal/models"
)

const commentColumns = `c.id, c.mensagem, c.likes, c.usuario_id, c.forum_id, c.perfil_id, c.respondendo_id, c.created_at, c.updated_at`

// ForumRepository handles "Forum" and "Comentario" rows.
type ForumRepository struct {
	db *DB
}

// NewForumRepository creates a new forum repository
func NewForumRepository(db *DB) *ForumRepository {
	return &ForumRepository{db: db}
}

// GetOrCreateForum returns the movie's forum, creating it on first use.
func (r *ForumRepository) GetOrCreateForum(ctx context.Context, movieID int64) (*models.Forum, error) {
	f := &models.Forum{}
	err := r.db.GetContext(ctx, f, `
		INSERT INTO "Forum" (filme_id) VALUES ($1)
		ON CONFLICT (filme_id) DO UPDATE SET filme_id = EXCLUDED.filme_id
		RETURNING id, filme_id, created_at
	`, movieID)
	if err != nil {
		return nil, mapForeignKey(err)
	}
	return f, nil
}

// CreateComment inserts a comment. A reply must target a comment in the same forum.
func (r *ForumRepository) CreateComment(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	if c.ReplyToID != nil {
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM "Comentario" WHERE id = $1 AND forum_id = $2)`,
			*c.ReplyToID, c.ForumID); err != nil {
			return nil, fmt.Errorf("failed to check reply target: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("reply target %d: %w", *c.ReplyToID, ErrNotFound)
		}
	}

	out := &models.Comment{}
	now := time.Now()
	err := r.db.GetContext(ctx, out, `
		INSERT INTO "Comentario" AS c (mensagem, likes, usuario_id, forum_id, perfil_id, respondendo_id, created_at, updated_at)
		VALUES ($1, 0, $2, $3, $4, $5, $6, $6)
		RETURNING `+commentColumns,
		c.Message, c.UserID, c.ForumID, c.ProfileID, c.ReplyToID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return out, nil
}

// ListByMovie returns a movie's comments, oldest first, with the total count.
func (r *ForumRepository) ListByMovie(ctx context.Context, movieID int64, page, pageSize int) ([]*models.Comment, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM "Comentario" c JOIN "Forum" f ON f.id = c.forum_id WHERE f.filme_id = $1
	`, movieID); err != nil {
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}

	comments := []*models.Comment{}
	err := r.db.SelectContext(ctx, &comments, `
		SELECT `+commentColumns+`, p.nome AS perfil_nome
		FROM "Comentario" c
		JOIN "Forum" f ON f.id = c.forum_id
		JOIN "Perfil" p ON p.id = c.perfil_id
		WHERE f.filme_id = $1
		ORDER BY c.created_at, c.id
		LIMIT $2 OFFSET $3
	`, movieID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, total, nil
}

// GetOwner resolves the comment to the user that owns its profile.
func (r *ForumRepository) GetOwner(ctx context.Context, commentID int64) (*models.CommentOwner, error) {
	owner := &models.CommentOwner{}
	err := r.db.GetContext(ctx, owner, `
		SELECT c.id AS comment_id, c.perfil_id, p.usuario_id
		FROM "Comentario" c
		JOIN "Perfil" p ON p.id = c.perfil_id
		WHERE c.id = $1
	`, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get comment owner: %w", notFound("comment", err))
	}
	return owner, nil
}

// Like increments the like counter and returns the new value.
func (r *ForumRepository) Like(ctx context.Context, commentID int64) (int, error) {
	var likes int
	err := r.db.GetContext(ctx, &likes,
		`UPDATE "Comentario" SET likes = likes + 1 WHERE id = $1 RETURNING likes`, commentID)
	if err != nil {
		return 0, fmt.Errorf("failed to like comment: %w", notFound("comment", err))
	}
	return likes, nil
}

// UpdateMessage rewrites a comment's text.
func (r *ForumRepository) UpdateMessage(ctx context.Context, commentID int64, message string) (*models.Comment, error) {
	out := &models.Comment{}
	err := r.db.GetContext(ctx, out, `
		UPDATE "Comentario" AS c SET mensagem = $2, updated_at = $3
		WHERE c.id = $1
		RETURNING `+commentColumns,
		commentID, message, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", notFound("comment", err))
	}
	return out, nil
}

// Delete removes a comment.
func (r *ForumRepository) Delete(ctx context.Context, commentID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM "Comentario" WHERE id = $1`, commentID)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("comment %d: %w", commentID, ErrNotFound)
	}
	return nil
}
