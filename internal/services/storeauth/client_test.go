package storeauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"
)

const adminUsersPath = "/auth/v1/admin/users"

type fakeGoTrue struct {
	mu    sync.Mutex
	users []types.User
	auth  []string
	pages []string
}

func (f *fakeGoTrue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization")+"|"+r.Header.Get("apikey"))

	switch {
	case r.Method == http.MethodGet && r.URL.Path == adminUsersPath:
		f.pages = append(f.pages, r.URL.Query().Get("page"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		per, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		start := (page - 1) * per
		end := start + per
		if start > len(f.users) {
			start = len(f.users)
		}
		if end > len(f.users) {
			end = len(f.users)
		}
		_ = json.NewEncoder(w).Encode(types.AdminListUsersResponse{Users: f.users[start:end]})
	case r.Method == http.MethodPost && r.URL.Path == adminUsersPath:
		var in struct {
			Email        string         `json:"email"`
			Password     string         `json:"password"`
			EmailConfirm bool           `json:"email_confirm"`
			AppMetadata  map[string]any `json:"app_metadata"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		for _, u := range f.users {
			if u.Email == in.Email {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(`{"msg":"email exists"}`))
				return
			}
		}
		if !in.EmailConfirm || in.Password == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		u := types.User{ID: uuid.New(), Email: in.Email, AppMetadata: in.AppMetadata}
		f.users = append(f.users, u)
		_ = json.NewEncoder(w).Encode(u)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, adminUsersPath+"/"):
		id := strings.TrimPrefix(r.URL.Path, adminUsersPath+"/")
		for i, u := range f.users {
			if u.ID.String() == id {
				f.users = append(f.users[:i], f.users[i+1:]...)
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, f *fakeGoTrue) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, "service-key", nil, WithPageSize(2), WithRateLimit(1000, 100))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func user(email string) types.User {
	return types.User{ID: uuid.New(), Email: email}
}

func TestClient_CreateAndFind(t *testing.T) {
	t.Parallel()
	f := &fakeGoTrue{users: []types.User{
		user("a@example.com"),
		user("b@example.com"),
		user("c@example.com"),
	}}
	c := newTestClient(t, f)
	ctx := context.Background()

	created, err := c.CreateUser(ctx, "New@Example.com", "pw", map[string]any{"firebase_uid": "uid-1"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if created.FirebaseUID() != "uid-1" {
		t.Errorf("FirebaseUID() = %q, want uid-1", created.FirebaseUID())
	}

	got, err := c.FindUserByEmail(ctx, "new@example.com")
	if err != nil {
		t.Fatalf("FindUserByEmail() error = %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Fatalf("FindUserByEmail() = %+v, want id %s", got, created.ID)
	}

	missing, err := c.FindUserByEmail(ctx, "nobody@example.com")
	if err != nil || missing != nil {
		t.Errorf("FindUserByEmail(missing) = %+v, %v; want nil, nil", missing, err)
	}

	for _, a := range f.auth {
		if a != "Bearer service-key|service-key" {
			t.Errorf("request headers = %q", a)
		}
	}
}

func TestClient_ListUsersPages(t *testing.T) {
	t.Parallel()
	f := &fakeGoTrue{}
	for i := 0; i < 5; i++ {
		f.users = append(f.users, user(fmt.Sprintf("u%d@example.com", i)))
	}
	c := newTestClient(t, f)

	users, err := c.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 5 {
		t.Errorf("ListUsers() returned %d users, want 5", len(users))
	}
	if got := strings.Join(f.pages, ","); got != "1,2,3" {
		t.Errorf("requested pages = %s, want 1,2,3", got)
	}
}

func TestClient_CancelledContext(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, &fakeGoTrue{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.ListUsers(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("ListUsers() error = %v, want context.Canceled", err)
	}
}

func TestClient_CreateConflict(t *testing.T) {
	t.Parallel()
	f := &fakeGoTrue{users: []types.User{user("a@example.com")}}
	c := newTestClient(t, f)

	_, err := c.CreateUser(context.Background(), "a@example.com", "pw", nil)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("CreateUser() error = %v, want 422 StatusError", err)
	}
}

func TestClient_DeleteMissingIsNoop(t *testing.T) {
	t.Parallel()
	f := &fakeGoTrue{users: []types.User{user("a@example.com")}}
	c := newTestClient(t, f)
	ctx := context.Background()
	id := f.users[0].ID.String()

	if err := c.DeleteUser(ctx, id); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if err := c.DeleteUser(ctx, id); err != nil {
		t.Errorf("DeleteUser(missing) error = %v, want nil", err)
	}
	if err := c.DeleteUser(ctx, "not-a-uuid"); err == nil {
		t.Error("DeleteUser(malformed id) expected error")
	}
}

func TestNewClient_RequiresConfig(t *testing.T) {
	t.Parallel()
	if _, err := NewClient("", "key", nil); err == nil {
		t.Error("NewClient() expected error without url")
	}
}
