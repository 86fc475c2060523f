package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/models"
)

func newForumTestHandler(forum *mockForumRepo) *ForumHandler {
	profiles := ownedProfiles(map[int64][]int64{1: {10, 11}, 2: {20}})
	return NewForumHandler(forum, profiles, zap.NewNop())
}

func TestForumHandler_CreateComment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		path           string
		body           any
		replyMissing   bool
		expectedStatus int
		expectedForum  bool
		validate       func(*testing.T, *models.Comment)
	}{
		{
			name:           "default profile",
			path:           "/forum/filme/9/comments",
			body:           CreateCommentRequest{Message: "  Great movie  "},
			expectedStatus: http.StatusCreated,
			validate: func(t *testing.T, c *models.Comment) {
				if c.ProfileID != 10 || c.UserID != 1 || c.ForumID != 90 {
					t.Errorf("Unexpected comment ownership: %+v", c)
				}
				if c.Message != "Great movie" {
					t.Errorf("Expected trimmed message, got %q", c.Message)
				}
			},
		},
		{
			name:           "explicit owned profile",
			path:           "/forum/filme/9/comments?perfil_id=11",
			body:           CreateCommentRequest{Message: "hi"},
			expectedStatus: http.StatusCreated,
			validate: func(t *testing.T, c *models.Comment) {
				if c.ProfileID != 11 {
					t.Errorf("Expected profile 11, got %d", c.ProfileID)
				}
			},
		},
		{
			name:           "foreign profile",
			path:           "/forum/filme/9/comments?perfil_id=20",
			body:           CreateCommentRequest{Message: "hi"},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "blank message",
			path:           "/forum/filme/9/comments",
			body:           CreateCommentRequest{Message: "   "},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing reply target",
			path:           "/forum/filme/9/comments",
			body:           CreateCommentRequest{Message: "me too", ReplyToID: int64Ptr(555)},
			replyMissing:   true,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "unknown movie",
			path:           "/forum/filme/404/comments",
			body:           CreateCommentRequest{Message: "hi"},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var created *models.Comment
			forum := &mockForumRepo{
				GetOrCreateForumFunc: func(ctx context.Context, movieID int64) (*models.Forum, error) {
					if movieID == 404 {
						return nil, fmt.Errorf("referenced row not found: %w", database.ErrNotFound)
					}
					return &models.Forum{ID: movieID * 10, MovieID: movieID}, nil
				},
				CreateCommentFunc: func(ctx context.Context, c *models.Comment) (*models.Comment, error) {
					if tt.replyMissing {
						return nil, fmt.Errorf("reply target %d: %w", *c.ReplyToID, database.ErrNotFound)
					}
					created = c
					out := *c
					out.ID = 1
					return &out, nil
				},
			}
			h := newForumTestHandler(forum)

			w := serve("/forum", h.RegisterRoutes, asCaller(newTestRequest(http.MethodPost, tt.path, tt.body), 1))
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.validate != nil {
				if created == nil {
					t.Fatal("Expected comment to be created")
				}
				tt.validate(t, created)
			}
		})
	}
}

func TestForumHandler_ListCommentsIsPublic(t *testing.T) {
	t.Parallel()

	forum := &mockForumRepo{ListByMovieFunc: func(ctx context.Context, movieID int64, page, pageSize int) ([]*models.Comment, int, error) {
		if movieID != 9 {
			t.Errorf("Expected movie 9, got %d", movieID)
		}
		return []*models.Comment{{ID: 1, Message: "first"}}, 1, nil
	}}
	h := newForumTestHandler(forum)

	w := serve("/forum", h.RegisterPublicRoutes, newTestRequest(http.MethodGet, "/forum/filme/9/comments", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var page PageResponse[models.Comment]
	decodeData(t, w, &page)
	if len(page.Items) != 1 || page.Items[0].Message != "first" {
		t.Errorf("Unexpected page: %+v", page)
	}
}

func TestForumHandler_Ownership(t *testing.T) {
	t.Parallel()

	// Comment 1 belongs to user 1 through profile 11.
	owner := func(ctx context.Context, commentID int64) (*models.CommentOwner, error) {
		if commentID != 1 {
			return nil, fmt.Errorf("failed to get comment owner: %w", database.ErrNotFound)
		}
		return &models.CommentOwner{CommentID: 1, ProfileID: 11, UserID: 1}, nil
	}

	tests := []struct {
		name           string
		method         string
		path           string
		body           any
		caller         int64
		expectedStatus int
	}{
		{"owner edits", http.MethodPut, "/forum/comments/1", EditCommentRequest{Message: "edited"}, 1, http.StatusOK},
		{"other user edits", http.MethodPut, "/forum/comments/1", EditCommentRequest{Message: "edited"}, 2, http.StatusForbidden},
		{"edit missing comment", http.MethodPut, "/forum/comments/2", EditCommentRequest{Message: "edited"}, 1, http.StatusNotFound},
		{"empty edit", http.MethodPut, "/forum/comments/1", EditCommentRequest{}, 1, http.StatusBadRequest},
		{"owner deletes", http.MethodDelete, "/forum/comments/1", nil, 1, http.StatusNoContent},
		{"other user deletes", http.MethodDelete, "/forum/comments/1", nil, 2, http.StatusForbidden},
		{"bad id", http.MethodDelete, "/forum/comments/x", nil, 1, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var updated, deleted bool
			forum := &mockForumRepo{
				GetOwnerFunc: owner,
				UpdateMessageFunc: func(ctx context.Context, commentID int64, message string) (*models.Comment, error) {
					updated = true
					return &models.Comment{ID: commentID, Message: message}, nil
				},
				DeleteFunc: func(ctx context.Context, commentID int64) error {
					deleted = true
					return nil
				},
			}
			h := newForumTestHandler(forum)

			w := serve("/forum", h.RegisterRoutes, asCaller(newTestRequest(tt.method, tt.path, tt.body), tt.caller))
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			succeeded := tt.expectedStatus == http.StatusOK || tt.expectedStatus == http.StatusNoContent
			if !succeeded && (updated || deleted) {
				t.Error("Expected no mutation on a rejected request")
			}
		})
	}
}

func TestForumHandler_Like(t *testing.T) {
	t.Parallel()

	forum := &mockForumRepo{LikeFunc: func(ctx context.Context, commentID int64) (int, error) {
		if commentID == 3 {
			return 0, fmt.Errorf("failed to like comment: %w", database.ErrNotFound)
		}
		return 5, nil
	}}
	h := newForumTestHandler(forum)

	w := serve("/forum", h.RegisterRoutes, asCaller(newTestRequest(http.MethodPost, "/forum/comments/1/like", nil), 2))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp LikeResponse
	decodeData(t, w, &resp)
	if resp.Likes != 5 || resp.CommentID != 1 {
		t.Errorf("Unexpected like response: %+v", resp)
	}

	w = serve("/forum", h.RegisterRoutes, asCaller(newTestRequest(http.MethodPost, "/forum/comments/3/like", nil), 2))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func int64Ptr(v int64) *int64 { return &v }
