package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/models"
	"github.com/benvon/cinematch/internal/validation"
)

// ForumHandler serves per-movie forums.
type ForumHandler struct {
	forum    database.ForumRepositoryInterface
	profiles database.ProfileRepositoryInterface
	logger   *zap.Logger
}

// NewForumHandler creates a forum handler.
func NewForumHandler(forum database.ForumRepositoryInterface, profiles database.ProfileRepositoryInterface, logger *zap.Logger) *ForumHandler {
	return &ForumHandler{forum: forum, profiles: profiles, logger: logger}
}

// RegisterPublicRoutes registers the read-only forum routes.
func (h *ForumHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/filme/{filme_id}/comments", h.ListComments).Methods("GET")
}

// RegisterRoutes registers authenticated forum routes on a router with the /forum prefix.
func (h *ForumHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/filme/{filme_id}/comments", h.CreateComment).Methods("POST")
	r.HandleFunc("/comments/{comment_id}/like", h.LikeComment).Methods("POST")
	r.HandleFunc("/comments/{comment_id}", h.UpdateComment).Methods("PUT")
	r.HandleFunc("/comments/{comment_id}", h.DeleteComment).Methods("DELETE")
}

// CreateCommentRequest posts a comment, optionally as a reply.
type CreateCommentRequest struct {
	Message   string `json:"mensagem" validate:"required,not_blank,max=2000"`
	ReplyToID *int64 `json:"respondendo_id,omitempty" validate:"omitempty,gt=0"`
}

// EditCommentRequest replaces a comment's text.
type EditCommentRequest struct {
	Message string `json:"mensagem" validate:"required,not_blank,max=2000"`
}

// LikeResponse reports the new like count.
type LikeResponse struct {
	CommentID int64 `json:"comment_id"`
	Likes     int   `json:"likes"`
}

// CreateComment posts a comment to a movie's forum, creating the forum on first use.
func (h *ForumHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	movieID, err := pathInt64(r, "filme_id")
	if err != nil {
		respondBadRequest(w, "Invalid movie ID")
		return
	}
	requested, err := queryProfileID(r)
	if err != nil {
		respondBadRequest(w, "Invalid profile ID")
		return
	}
	var req CreateCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	var profile *models.Profile
	if requested != nil {
		profile, err = h.profiles.GetOwned(ctx, *requested, id.UserID)
	} else {
		profile, err = h.profiles.GetDefault(ctx, id.UserID)
	}
	if err != nil {
		respondStoreError(w, err, "Profile not found", "Failed to resolve profile")
		return
	}

	forum, err := h.forum.GetOrCreateForum(ctx, movieID)
	if err != nil {
		respondStoreError(w, err, "Movie not found", "Failed to open forum")
		return
	}

	comment, err := h.forum.CreateComment(ctx, &models.Comment{
		Message:   validation.SanitizeText(req.Message),
		UserID:    id.UserID,
		ForumID:   forum.ID,
		ProfileID: profile.ID,
		ReplyToID: req.ReplyToID,
	})
	if err != nil {
		h.logger.Warn("comment_create_failed", zap.Int64("movie_id", movieID), zap.Error(err))
		respondStoreError(w, err, "Reply target not found", "Failed to create comment")
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// ListComments pages through a movie's comments.
func (h *ForumHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	movieID, err := pathInt64(r, "filme_id")
	if err != nil {
		respondBadRequest(w, "Invalid movie ID")
		return
	}
	page, pageSize := pagination(r)
	comments, total, err := h.forum.ListByMovie(r.Context(), movieID, page, pageSize)
	if err != nil {
		h.logger.Error("comment_list_failed", zap.Int64("movie_id", movieID), zap.Error(err))
		respondInternal(w, "Failed to retrieve comments")
		return
	}
	respondJSON(w, http.StatusOK, newPage(comments, page, pageSize, total))
}

// LikeComment adds one like to a comment.
func (h *ForumHandler) LikeComment(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerIdentity(w, r); !ok {
		return
	}
	commentID, err := pathInt64(r, "comment_id")
	if err != nil {
		respondBadRequest(w, "Invalid comment ID")
		return
	}
	likes, err := h.forum.Like(r.Context(), commentID)
	if err != nil {
		respondStoreError(w, err, "Comment not found", "Failed to like comment")
		return
	}
	respondJSON(w, http.StatusOK, LikeResponse{CommentID: commentID, Likes: likes})
}

// authorize checks that the caller owns the comment through its profile.
func (h *ForumHandler) authorize(w http.ResponseWriter, r *http.Request, userID int64) (int64, bool) {
	commentID, err := pathInt64(r, "comment_id")
	if err != nil {
		respondBadRequest(w, "Invalid comment ID")
		return 0, false
	}
	owner, err := h.forum.GetOwner(r.Context(), commentID)
	if err != nil {
		respondStoreError(w, err, "Comment not found", "Failed to retrieve comment")
		return 0, false
	}
	if owner.UserID != userID {
		respondJSONError(w, http.StatusForbidden, "Forbidden", "You can only modify your own comments")
		return 0, false
	}
	return commentID, true
}

// UpdateComment edits the caller's own comment.
func (h *ForumHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	var req EditCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	commentID, ok := h.authorize(w, r, id.UserID)
	if !ok {
		return
	}

	comment, err := h.forum.UpdateMessage(r.Context(), commentID, validation.SanitizeText(req.Message))
	if err != nil {
		respondStoreError(w, err, "Comment not found", "Failed to update comment")
		return
	}
	respondJSON(w, http.StatusOK, comment)
}

// DeleteComment removes the caller's own comment.
func (h *ForumHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	commentID, ok := h.authorize(w, r, id.UserID)
	if !ok {
		return
	}
	if err := h.forum.Delete(r.Context(), commentID); err != nil {
		respondStoreError(w, err, "Comment not found", "Failed to delete comment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
