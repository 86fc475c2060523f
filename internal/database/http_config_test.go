package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/benvon/cinematch/internal/models"
)

func TestAllowedOriginsSlice(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "https://a.example.com", []string{"https://a.example.com"}},
		{"comma", "https://a.com, https://b.com", []string{"https://a.com", "https://b.com"}},
		{"dedup", "x, x, y", []string{"x", "y"}},
		{"trim", "  a  ,  b  ", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := AllowedOriginsSlice(tt.raw)
			if len(got) != len(tt.want) {
				t.Errorf("AllowedOriginsSlice(%q) length = %d, want %d", tt.raw, len(got), len(tt.want))
				return
			}
			seen := make(map[string]bool)
			for _, s := range got {
				seen[s] = true
			}
			for _, w := range tt.want {
				if !seen[w] {
					t.Errorf("AllowedOriginsSlice(%q) missing %q", tt.raw, w)
				}
			}
		})
	}
}

func TestRatelimitConfigRepository_GetMissing(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM ratelimit_config WHERE config_key = $1`)).
		WithArgs("default").
		WillReturnRows(sqlmock.NewRows([]string{"config_key", "rate", "created_at", "updated_at"}))

	cfg, err := NewRatelimitConfigRepository(db).Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cfg != nil {
		t.Errorf("Get() = %+v, want nil when no row is stored", cfg)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCorsConfigRepository_SetRejectsEmptyOrigins(t *testing.T) {
	t.Parallel()

	db, _ := newMockDB(t)
	err := NewCorsConfigRepository(db).Set(context.Background(), &models.CorsConfig{AllowedOrigins: " , "})
	if err == nil {
		t.Fatal("Set() expected error for blank origins")
	}
}
