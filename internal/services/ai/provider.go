package ai

import (
	"context"

	"github.com/benvon/cinematch/internal/models"
)

// Provider generates text about the catalog.
type Provider interface {
	// SummarizeReviews writes a storefront-style summary of a movie's reviews.
	SummarizeReviews(ctx context.Context, movie *models.Movie, reviews []*models.Review) (string, error)

	// Recommend answers a free-form question using the given movies as the
	// only source of truth.
	Recommend(ctx context.Context, question string, movies []*models.Movie) (string, error)
}
