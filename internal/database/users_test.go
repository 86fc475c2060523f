package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/benvon/cinematch/internal/models"
)

var userRowColumns = []string{
	"id", "nome", "email", "senha", "firebase_uid", "auth_provider", "supabase_uid", "created_at", "updated_at",
}

func federatedRow(id int64, name, email, uid string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userRowColumns).
		AddRow(id, name, email, models.FederatedPasswordSentinel, uid, "firebase", nil, now, now)
}

func strPtr(s string) *string { return &s }

func TestUserRepository_CreateFederated(t *testing.T) {
	t.Parallel()

	t.Run("inserts user and default profile", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "Usuario"`)).
			WithArgs("Jane", "jane@example.com", models.FederatedPasswordSentinel, "uid-1", "firebase", nil, sqlmock.AnyArg()).
			WillReturnRows(federatedRow(7, "Jane", "jane@example.com", "uid-1"))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "Perfil"`)).
			WithArgs(int64(7), "usuario", "Jane").
			WillReturnResult(sqlmock.NewResult(11, 1))
		mock.ExpectCommit()

		user, created, err := NewUserRepository(db).CreateFederated(context.Background(), &models.StoreUser{
			DisplayName: "Jane",
			Email:       "jane@example.com",
			FirebaseUID: strPtr("uid-1"),
		})
		if err != nil {
			t.Fatalf("CreateFederated() error = %v", err)
		}
		if !created {
			t.Error("CreateFederated() created = false, want true")
		}
		if user.ID != 7 || user.PasswordHash != models.FederatedPasswordSentinel {
			t.Errorf("CreateFederated() user = %+v", user)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("conflict returns existing row", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "Usuario"`)).
			WillReturnRows(sqlmock.NewRows(userRowColumns))
		mock.ExpectRollback()
		mock.ExpectQuery(regexp.QuoteMeta(`FROM "Usuario" WHERE firebase_uid = $1`)).
			WithArgs("uid-1").
			WillReturnRows(federatedRow(3, "Jane", "jane@example.com", "uid-1"))

		user, created, err := NewUserRepository(db).CreateFederated(context.Background(), &models.StoreUser{
			DisplayName: "Jane",
			Email:       "jane@example.com",
			FirebaseUID: strPtr("uid-1"),
		})
		if err != nil {
			t.Fatalf("CreateFederated() error = %v", err)
		}
		if created {
			t.Error("CreateFederated() created = true, want false on conflict")
		}
		if user.ID != 3 {
			t.Errorf("CreateFederated() returned id %d, want existing id 3", user.ID)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("profile failure rolls back", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "Usuario"`)).
			WillReturnRows(federatedRow(9, "Jane", "jane@example.com", "uid-1"))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "Perfil"`)).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		_, _, err := NewUserRepository(db).CreateFederated(context.Background(), &models.StoreUser{
			DisplayName: "Jane",
			Email:       "jane@example.com",
			FirebaseUID: strPtr("uid-1"),
		})
		if err == nil {
			t.Fatal("CreateFederated() expected error when profile insert fails")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("requires firebase uid", func(t *testing.T) {
		t.Parallel()
		db, _ := newMockDB(t)
		if _, _, err := NewUserRepository(db).CreateFederated(context.Background(), &models.StoreUser{Email: "x@example.com"}); err == nil {
			t.Fatal("CreateFederated() expected error without firebase uid")
		}
	})
}

func TestUserRepository_GetByFirebaseUIDNotFound(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE firebase_uid = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := NewUserRepository(db).GetByFirebaseUID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByFirebaseUID() error = %v, want ErrNotFound", err)
	}
}

func TestUserRepository_UpdateIdentity(t *testing.T) {
	t.Parallel()

	t.Run("updates row", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "Usuario"`)).
			WithArgs("uid-1", "new@example.com", "New Name", sqlmock.AnyArg()).
			WillReturnRows(federatedRow(1, "New Name", "new@example.com", "uid-1"))

		user, err := NewUserRepository(db).UpdateIdentity(context.Background(), "uid-1", "new@example.com", "New Name")
		if err != nil {
			t.Fatalf("UpdateIdentity() error = %v", err)
		}
		if user.Email != "new@example.com" || user.DisplayName != "New Name" {
			t.Errorf("UpdateIdentity() user = %+v", user)
		}
	})

	t.Run("empty email keeps stored email", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SET email = COALESCE(NULLIF($2, ''), email), nome = COALESCE(NULLIF($3, ''), nome)`)).
			WithArgs("uid-1", "", "Phone User", sqlmock.AnyArg()).
			WillReturnRows(federatedRow(1, "Phone User", "kept@example.com", "uid-1"))

		user, err := NewUserRepository(db).UpdateIdentity(context.Background(), "uid-1", "", "Phone User")
		if err != nil {
			t.Fatalf("UpdateIdentity() error = %v", err)
		}
		if user.Email != "kept@example.com" {
			t.Errorf("UpdateIdentity() email = %q, want kept@example.com", user.Email)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("zero rows is not found", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "Usuario"`)).
			WillReturnRows(sqlmock.NewRows(userRowColumns))

		_, err := NewUserRepository(db).UpdateIdentity(context.Background(), "gone", "x@example.com", "")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("UpdateIdentity() error = %v, want ErrNotFound", err)
		}
	})
}

func TestUserRepository_DeleteByFirebaseUID(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "Usuario" WHERE firebase_uid = $1`)).
		WithArgs("uid-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := NewUserRepository(db).DeleteByFirebaseUID(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("DeleteByFirebaseUID() error = %v", err)
	}
	if n != 0 {
		t.Errorf("DeleteByFirebaseUID() = %d, want 0", n)
	}
}
