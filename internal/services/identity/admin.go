package identity

import (
	"context"

	"github.com/benvon/cinematch/internal/models"
)

// Admin is the identity provider surface used by handlers and the reconciler.
type Admin interface {
	GetUser(ctx context.Context, uid string) (*models.IdentityUser, error)
	ListUsers(ctx context.Context, pageToken string, pageSize int) ([]*models.IdentityUser, string, error)
	SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error
	CreateUser(ctx context.Context, nu NewUser) (*models.IdentityUser, error)
	UpdateUser(ctx context.Context, uid string, upd UserUpdate) (*models.IdentityUser, error)
	DeleteUser(ctx context.Context, uid string) error
}

// TokenVerifier verifies identity provider ID tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.JWTClaims, error)
}

var (
	_ Admin         = (*FirebaseClient)(nil)
	_ TokenVerifier = (*Verifier)(nil)
)
