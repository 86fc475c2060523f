package database

import (
	"context"
	"fmt"

	"github.com/benvon/cinematch/internal/models"
)

const profileColumns = `id, usuario_id, tipo, nome, descricao, created_at`

// ProfileRepository handles "Perfil" rows.
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// ListByUser returns a user's profiles, oldest first.
func (r *ProfileRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Profile, error) {
	profiles := []*models.Profile{}
	err := r.db.SelectContext(ctx, &profiles,
		`SELECT `+profileColumns+` FROM "Perfil" WHERE usuario_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

// GetDefault returns the user's first profile.
func (r *ProfileRepository) GetDefault(ctx context.Context, userID int64) (*models.Profile, error) {
	p := &models.Profile{}
	err := r.db.GetContext(ctx, p,
		`SELECT `+profileColumns+` FROM "Perfil" WHERE usuario_id = $1 ORDER BY id LIMIT 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get default profile: %w", notFound("profile", err))
	}
	return p, nil
}

// GetOwned returns the profile only if it belongs to userID.
func (r *ProfileRepository) GetOwned(ctx context.Context, profileID, userID int64) (*models.Profile, error) {
	p := &models.Profile{}
	err := r.db.GetContext(ctx, p,
		`SELECT `+profileColumns+` FROM "Perfil" WHERE id = $1 AND usuario_id = $2`, profileID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", notFound("profile", err))
	}
	return p, nil
}
