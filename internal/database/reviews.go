package database

import (
	"context"
	"fmt"

	"github.com/benvon/cinematch/internal/models"
)

// ReviewRepository reads "Avaliacao" rows.
type ReviewRepository struct {
	db *DB
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// ListByMovie returns a movie's reviews, most liked first.
func (r *ReviewRepository) ListByMovie(ctx context.Context, movieID int64, limit int) ([]*models.Review, error) {
	reviews := []*models.Review{}
	err := r.db.SelectContext(ctx, &reviews, `
		SELECT id, filme_id, perfil_id, nota, comentario, curtidas, created_at
		FROM "Avaliacao"
		WHERE filme_id = $1
		ORDER BY curtidas DESC, created_at DESC
		LIMIT $2
	`, movieID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}
