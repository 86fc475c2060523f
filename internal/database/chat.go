package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/benvon/cinematch/internal/models"
)

// ErrAlreadyMember is returned when adding a user already in the group.
var ErrAlreadyMember = errors.New("user already a member of the group")

// ChatRepository handles chat groups, memberships and messages.
type ChatRepository struct {
	db *DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateGroup inserts a group and makes its creator an admin member.
func (r *ChatRepository) CreateGroup(ctx context.Context, g *models.ChatGroup) (*models.ChatGroup, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	out := &models.ChatGroup{}
	err := r.db.withTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now()
		if err := tx.GetContext(ctx, out, `
			INSERT INTO chat_groups (id, name, description, is_private, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, name, description, is_private, created_by, created_at
		`, g.ID, g.Name, g.Description, g.IsPrivate, g.CreatedBy, now); err != nil {
			return fmt.Errorf("failed to insert chat group: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO group_members (group_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)
		`, out.ID, g.CreatedBy, models.GroupRoleAdmin, now); err != nil {
			return fmt.Errorf("failed to add group creator: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetGroup retrieves a group by ID
func (r *ChatRepository) GetGroup(ctx context.Context, id uuid.UUID) (*models.ChatGroup, error) {
	g := &models.ChatGroup{}
	err := r.db.GetContext(ctx, g, `
		SELECT id, name, description, is_private, created_by, created_at FROM chat_groups WHERE id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat group: %w", notFound("chat group", err))
	}
	return g, nil
}

// ListGroupsForUser returns the groups the user belongs to.
func (r *ChatRepository) ListGroupsForUser(ctx context.Context, userID int64) ([]*models.ChatGroup, error) {
	groups := []*models.ChatGroup{}
	err := r.db.SelectContext(ctx, &groups, `
		SELECT g.id, g.name, g.description, g.is_private, g.created_by, g.created_at
		FROM chat_groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat groups: %w", err)
	}
	return groups, nil
}

// AddMember adds a user to a group with the member role.
func (r *ChatRepository) AddMember(ctx context.Context, groupID uuid.UUID, userID int64) (*models.GroupMember, error) {
	m := &models.GroupMember{}
	err := r.db.GetContext(ctx, m, `
		INSERT INTO group_members (group_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)
		RETURNING group_id, user_id, role, joined_at
	`, groupID, userID, models.GroupRoleMember, time.Now())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrAlreadyMember
		}
		return nil, mapForeignKey(err)
	}
	return m, nil
}

// GetMember returns the membership row, or a not-found error.
func (r *ChatRepository) GetMember(ctx context.Context, groupID uuid.UUID, userID int64) (*models.GroupMember, error) {
	m := &models.GroupMember{}
	err := r.db.GetContext(ctx, m, `
		SELECT group_id, user_id, role, joined_at FROM group_members WHERE group_id = $1 AND user_id = $2
	`, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group member: %w", notFound("group member", err))
	}
	return m, nil
}

// CreateMessage persists a message.
func (r *ChatRepository) CreateMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	out := &models.ChatMessage{}
	now := time.Now()
	err := r.db.GetContext(ctx, out, `
		INSERT INTO messages (id, group_id, sender_id, content, is_edited, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $5)
		RETURNING id, group_id, sender_id, content, is_edited, created_at, updated_at
	`, msg.ID, msg.GroupID, msg.SenderID, msg.Content, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return out, nil
}

// ListMessages returns a page of a group's messages, newest first.
func (r *ChatRepository) ListMessages(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]*models.ChatMessage, error) {
	msgs := []*models.ChatMessage{}
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT id, group_id, sender_id, content, is_edited, created_at, updated_at
		FROM messages
		WHERE group_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, groupID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}
