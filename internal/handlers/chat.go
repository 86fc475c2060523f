package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/cinematch/internal/chat"
	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/models"
	"github.com/benvon/cinematch/internal/validation"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

// ChatHub delivers messages to connected websocket clients.
type ChatHub interface {
	Send(ctx context.Context, groupID uuid.UUID, userID int64, content string) (*models.ChatMessage, error)
	Serve(w http.ResponseWriter, r *http.Request, groupID uuid.UUID, userID int64) error
}

// ChatHandler serves chat groups, their history and the websocket endpoint.
type ChatHandler struct {
	chat   database.ChatRepositoryInterface
	hub    ChatHub
	logger *zap.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(repo database.ChatRepositoryInterface, hub ChatHub, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: repo, hub: hub, logger: logger}
}

// RegisterRoutes registers chat routes on a router with the /chat prefix.
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/groups", h.CreateGroup).Methods("POST")
	r.HandleFunc("/groups", h.ListGroups).Methods("GET")
	r.HandleFunc("/groups/{group_id}", h.GetGroup).Methods("GET")
	r.HandleFunc("/groups/{group_id}/members/{user_id}", h.AddMember).Methods("POST")
	r.HandleFunc("/groups/{group_id}/messages", h.ListMessages).Methods("GET")
	r.HandleFunc("/groups/{group_id}/messages", h.PostMessage).Methods("POST")
	r.HandleFunc("/ws/{group_id}", h.Connect).Methods("GET")
}

// CreateGroupRequest creates a chat group.
type CreateGroupRequest struct {
	Name        string  `json:"name" validate:"required,not_blank,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	IsPrivate   bool    `json:"is_private"`
}

// PostMessageRequest sends a message over REST.
type PostMessageRequest struct {
	Content string `json:"content" validate:"required,not_blank,max=4000"`
}

func groupID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["group_id"])
}

// membership returns the caller's membership in the group, writing 404 for a
// missing group and 403 for a non-member.
func (h *ChatHandler) membership(w http.ResponseWriter, r *http.Request, gid uuid.UUID, userID int64) (*models.GroupMember, bool) {
	ctx := r.Context()
	if _, err := h.chat.GetGroup(ctx, gid); err != nil {
		respondStoreError(w, err, "Group not found", "Failed to retrieve group")
		return nil, false
	}
	member, err := h.chat.GetMember(ctx, gid, userID)
	if errors.Is(err, database.ErrNotFound) {
		respondJSONError(w, http.StatusForbidden, "Forbidden", "You are not a member of this group")
		return nil, false
	}
	if err != nil {
		respondInternal(w, "Failed to check group membership")
		return nil, false
	}
	return member, true
}

// CreateGroup creates a group with the caller as admin.
func (h *ChatHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	var req CreateGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	group, err := h.chat.CreateGroup(r.Context(), &models.ChatGroup{
		Name:        validation.SanitizeText(req.Name),
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
		CreatedBy:   id.UserID,
	})
	if err != nil {
		h.logger.Error("chat_group_create_failed", zap.Int64("user_id", id.UserID), zap.Error(err))
		respondInternal(w, "Failed to create group")
		return
	}
	respondJSON(w, http.StatusCreated, group)
}

// ListGroups returns the caller's groups.
func (h *ChatHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	groups, err := h.chat.ListGroupsForUser(r.Context(), id.UserID)
	if err != nil {
		respondInternal(w, "Failed to retrieve groups")
		return
	}
	if groups == nil {
		groups = []*models.ChatGroup{}
	}
	respondJSON(w, http.StatusOK, groups)
}

// GetGroup returns a group. Private groups are only visible to members.
func (h *ChatHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	gid, err := groupID(r)
	if err != nil {
		respondBadRequest(w, "Invalid group ID")
		return
	}
	group, err := h.chat.GetGroup(r.Context(), gid)
	if err != nil {
		respondStoreError(w, err, "Group not found", "Failed to retrieve group")
		return
	}
	if group.IsPrivate {
		if _, ok := h.membership(w, r, gid, id.UserID); !ok {
			return
		}
	}
	respondJSON(w, http.StatusOK, group)
}

// AddMember adds a user to a group. Only group admins may add members.
func (h *ChatHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	gid, err := groupID(r)
	if err != nil {
		respondBadRequest(w, "Invalid group ID")
		return
	}
	userID, err := pathInt64(r, "user_id")
	if err != nil {
		respondBadRequest(w, "Invalid user ID")
		return
	}
	caller, ok := h.membership(w, r, gid, id.UserID)
	if !ok {
		return
	}
	if caller.Role != models.GroupRoleAdmin {
		respondJSONError(w, http.StatusForbidden, "Forbidden", "Only group admins can add members")
		return
	}

	member, err := h.chat.AddMember(r.Context(), gid, userID)
	switch {
	case errors.Is(err, database.ErrAlreadyMember):
		respondBadRequest(w, "User is already a member of this group")
		return
	case err != nil:
		respondStoreError(w, err, "User not found", "Failed to add member")
		return
	}
	respondJSON(w, http.StatusCreated, member)
}

// ListMessages returns a page of the group's history, newest first.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	gid, err := groupID(r)
	if err != nil {
		respondBadRequest(w, "Invalid group ID")
		return
	}
	limit, offset, err := limitOffset(r)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	if _, ok := h.membership(w, r, gid, id.UserID); !ok {
		return
	}

	messages, err := h.chat.ListMessages(r.Context(), gid, limit, offset)
	if err != nil {
		respondInternal(w, "Failed to retrieve messages")
		return
	}
	if messages == nil {
		messages = []*models.ChatMessage{}
	}
	respondJSON(w, http.StatusOK, messages)
}

// PostMessage persists a message and broadcasts it to connected members.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	gid, err := groupID(r)
	if err != nil {
		respondBadRequest(w, "Invalid group ID")
		return
	}
	var req PostMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, ok := h.membership(w, r, gid, id.UserID); !ok {
		return
	}

	msg, err := h.hub.Send(r.Context(), gid, id.UserID, req.Content)
	switch {
	case errors.Is(err, chat.ErrInvalidMessage):
		respondBadRequest(w, err.Error())
		return
	case err != nil:
		h.logger.Error("chat_message_failed", zap.String("group_id", gid.String()), zap.Error(err))
		respondInternal(w, "Failed to send message")
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// Connect upgrades to a websocket attached to the group.
func (h *ChatHandler) Connect(w http.ResponseWriter, r *http.Request) {
	id, ok := callerIdentity(w, r)
	if !ok {
		return
	}
	gid, err := groupID(r)
	if err != nil {
		respondBadRequest(w, "Invalid group ID")
		return
	}
	if _, ok := h.membership(w, r, gid, id.UserID); !ok {
		return
	}
	if err := h.hub.Serve(w, r, gid, id.UserID); err != nil {
		h.logger.Warn("chat_websocket_failed",
			zap.String("group_id", gid.String()),
			zap.Int64("user_id", id.UserID),
			zap.Error(err))
	}
}

func limitOffset(r *http.Request) (limit, offset int, err error) {
	limit = defaultMessageLimit
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		limit = min(limit, maxMessageLimit)
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}
