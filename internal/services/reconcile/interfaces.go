package reconcile

import (
	"context"

	"github.com/benvon/cinematch/internal/models"
)

// UserStore is the primary user table. Lookups that match nothing return an
// error wrapping database.ErrNotFound.
type UserStore interface {
	GetByFirebaseUID(ctx context.Context, uid string) (*models.StoreUser, error)
	// CreateFederated inserts the user and its default profile atomically,
	// returning the existing row with created=false if the uid is already linked.
	CreateFederated(ctx context.Context, u *models.StoreUser) (*models.StoreUser, bool, error)
	UpdateIdentity(ctx context.Context, uid, email, displayName string) (*models.StoreUser, error)
	DeleteByFirebaseUID(ctx context.Context, uid string) (int64, error)
}

// IdentityProvider is the subset of the identity provider the reconciler needs.
type IdentityProvider interface {
	GetUser(ctx context.Context, uid string) (*models.IdentityUser, error)
	// ListUsers returns one page and the token of the next; an empty token ends iteration.
	ListUsers(ctx context.Context, pageToken string, pageSize int) ([]*models.IdentityUser, string, error)
	SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error
}

// AuthAdmin is the store's own auth subsystem.
type AuthAdmin interface {
	// FindUserByEmail returns nil, nil when no auth user has the email.
	FindUserByEmail(ctx context.Context, email string) (*models.AuthUser, error)
	CreateUser(ctx context.Context, email, password string, appMetadata map[string]any) (*models.AuthUser, error)
	ListUsers(ctx context.Context) ([]*models.AuthUser, error)
	DeleteUser(ctx context.Context, id string) error
}
