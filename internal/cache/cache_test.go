package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/benvon/cinematch/internal/metrics"
)

func TestMemory_Expiry(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got, err := m.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Fatalf("Get() = %q, %v", got, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get() after expiry error = %v, want ErrMiss", err)
	}
}

func TestMemory_Delete(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()
	_ = m.Set(ctx, "k", []byte("v"), 0)
	_ = m.Delete(ctx, "k")
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get() after delete error = %v, want ErrMiss", err)
	}
}

func TestJSONHelpers(t *testing.T) {
	t.Parallel()
	type payload struct {
		Title string `json:"title"`
	}
	m := NewMemory()
	ctx := context.Background()
	name := "test_json_helpers"

	if _, ok := GetJSON[payload](ctx, m, name, "movie:1"); ok {
		t.Fatal("GetJSON() hit on empty cache")
	}
	if err := SetJSON(ctx, m, "movie:1", payload{Title: "Alien"}, time.Hour); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}
	got, ok := GetJSON[payload](ctx, m, name, "movie:1")
	if !ok || got.Title != "Alien" {
		t.Errorf("GetJSON() = %+v, %v", got, ok)
	}

	_ = m.Set(ctx, "movie:2", []byte("{not json"), time.Hour)
	if _, ok := GetJSON[payload](ctx, m, name, "movie:2"); ok {
		t.Error("GetJSON() hit on corrupt value")
	}

	if hits := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues(name, "hit")); hits != 1 {
		t.Errorf("hit count = %v, want 1", hits)
	}
	if misses := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues(name, "miss")); misses != 1 {
		t.Errorf("miss count = %v, want 1", misses)
	}
}
