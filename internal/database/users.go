package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/benvon/cinematch/internal/models"
)

const userColumns = `id, nome, email, senha, firebase_uid, auth_provider, supabase_uid, created_at, updated_at`

var errFirebaseUIDTaken = errors.New("firebase uid already linked")

// UserRepository handles "Usuario" rows and the default profile created with them.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by store ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.StoreUser, error) {
	user := &models.StoreUser{}
	err := r.db.GetContext(ctx, user, `SELECT `+userColumns+` FROM "Usuario" WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", notFound("user", err))
	}
	return user, nil
}

// GetByFirebaseUID retrieves the user linked to an identity provider uid.
func (r *UserRepository) GetByFirebaseUID(ctx context.Context, uid string) (*models.StoreUser, error) {
	user := &models.StoreUser{}
	err := r.db.GetContext(ctx, user, `SELECT `+userColumns+` FROM "Usuario" WHERE firebase_uid = $1`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by firebase uid: %w", notFound("user", err))
	}
	return user, nil
}

// GetByEmail retrieves the oldest user with the given email. Legacy accounts
// sort ahead of federated ones so password login finds them first.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.StoreUser, error) {
	user := &models.StoreUser{}
	err := r.db.GetContext(ctx, user, `
		SELECT `+userColumns+` FROM "Usuario"
		WHERE lower(email) = lower($1)
		ORDER BY (firebase_uid IS NULL) DESC, id
		LIMIT 1
	`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", notFound("user", err))
	}
	return user, nil
}

// CreateFederated inserts a federated user and its default profile in one
// transaction. When another writer already linked the uid, the existing row
// is returned and created is false.
func (r *UserRepository) CreateFederated(ctx context.Context, u *models.StoreUser) (*models.StoreUser, bool, error) {
	if !u.IsFederated() {
		return nil, false, fmt.Errorf("federated user requires a firebase uid")
	}

	created := &models.StoreUser{}
	err := r.db.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, created, `
			INSERT INTO "Usuario" (nome, email, senha, firebase_uid, auth_provider, supabase_uid, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			ON CONFLICT (firebase_uid) DO NOTHING
			RETURNING `+userColumns,
			u.DisplayName,
			u.Email,
			models.FederatedPasswordSentinel,
			*u.FirebaseUID,
			models.AuthProviderFirebase,
			u.StoreAuthUID,
			time.Now(),
		)
		if errors.Is(err, sql.ErrNoRows) {
			return errFirebaseUIDTaken
		}
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO "Perfil" (usuario_id, tipo, nome) VALUES ($1, $2, $3)
		`, created.ID, models.DefaultProfileType, created.DisplayName)
		if err != nil {
			return fmt.Errorf("failed to insert default profile: %w", err)
		}
		return nil
	})
	if errors.Is(err, errFirebaseUIDTaken) {
		existing, getErr := r.GetByFirebaseUID(ctx, *u.FirebaseUID)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create federated user: %w", err)
	}
	return created, true, nil
}

// UpdateIdentity rewrites the email and display name of a federated user.
// Empty values keep the stored ones.
func (r *UserRepository) UpdateIdentity(ctx context.Context, uid, email, displayName string) (*models.StoreUser, error) {
	user := &models.StoreUser{}
	err := r.db.GetContext(ctx, user, `
		UPDATE "Usuario"
		SET email = COALESCE(NULLIF($2, ''), email), nome = COALESCE(NULLIF($3, ''), nome), updated_at = $4
		WHERE firebase_uid = $1
		RETURNING `+userColumns,
		uid, email, displayName, time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", notFound("user", err))
	}
	return user, nil
}

// DeleteByFirebaseUID deletes the user linked to uid. Profiles cascade.
// It returns the number of rows removed; zero is not an error.
func (r *UserRepository) DeleteByFirebaseUID(ctx context.Context, uid string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM "Usuario" WHERE firebase_uid = $1`, uid)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
