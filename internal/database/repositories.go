package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/benvon/cinematch/internal/models"
)

// UserRepositoryInterface defines the user store operations used by the
// reconciler, the auth middleware and the handlers.
type UserRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*models.StoreUser, error)
	GetByFirebaseUID(ctx context.Context, uid string) (*models.StoreUser, error)
	GetByEmail(ctx context.Context, email string) (*models.StoreUser, error)
	CreateFederated(ctx context.Context, u *models.StoreUser) (*models.StoreUser, bool, error)
	UpdateIdentity(ctx context.Context, uid, email, displayName string) (*models.StoreUser, error)
	DeleteByFirebaseUID(ctx context.Context, uid string) (int64, error)
}

// ProfileRepositoryInterface defines profile lookups.
type ProfileRepositoryInterface interface {
	ListByUser(ctx context.Context, userID int64) ([]*models.Profile, error)
	GetDefault(ctx context.Context, userID int64) (*models.Profile, error)
	GetOwned(ctx context.Context, profileID, userID int64) (*models.Profile, error)
}

// MovieRepositoryInterface defines catalog operations.
type MovieRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*models.Movie, error)
	List(ctx context.Context, page, pageSize int) ([]*models.Movie, int, error)
	TopRated(ctx context.Context, limit int) ([]*models.Movie, error)
	UpsertByTMDBID(ctx context.Context, m *models.Movie) (*models.Movie, error)
}

// MovieListRepositoryInterface defines watch-list operations.
type MovieListRepositoryInterface interface {
	Add(ctx context.Context, list models.ListType, movieID, profileID int64) (bool, error)
	Remove(ctx context.Context, list models.ListType, movieID, profileID int64) (bool, error)
	Entries(ctx context.Context, list models.ListType, profileID int64) ([]*models.ListEntry, error)
	Status(ctx context.Context, movieID, profileID int64) (*models.MovieListStatus, error)
}

// ForumRepositoryInterface defines forum operations.
type ForumRepositoryInterface interface {
	GetOrCreateForum(ctx context.Context, movieID int64) (*models.Forum, error)
	CreateComment(ctx context.Context, c *models.Comment) (*models.Comment, error)
	ListByMovie(ctx context.Context, movieID int64, page, pageSize int) ([]*models.Comment, int, error)
	GetOwner(ctx context.Context, commentID int64) (*models.CommentOwner, error)
	Like(ctx context.Context, commentID int64) (int, error)
	UpdateMessage(ctx context.Context, commentID int64, message string) (*models.Comment, error)
	Delete(ctx context.Context, commentID int64) error
}

// ChatRepositoryInterface defines chat operations.
type ChatRepositoryInterface interface {
	CreateGroup(ctx context.Context, g *models.ChatGroup) (*models.ChatGroup, error)
	GetGroup(ctx context.Context, id uuid.UUID) (*models.ChatGroup, error)
	ListGroupsForUser(ctx context.Context, userID int64) ([]*models.ChatGroup, error)
	AddMember(ctx context.Context, groupID uuid.UUID, userID int64) (*models.GroupMember, error)
	GetMember(ctx context.Context, groupID uuid.UUID, userID int64) (*models.GroupMember, error)
	CreateMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error)
	ListMessages(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]*models.ChatMessage, error)
}

// ReviewRepositoryInterface defines review lookups.
type ReviewRepositoryInterface interface {
	ListByMovie(ctx context.Context, movieID int64, limit int) ([]*models.Review, error)
}

// Ensure concrete types implement the interfaces
var (
	_ UserRepositoryInterface      = (*UserRepository)(nil)
	_ ProfileRepositoryInterface   = (*ProfileRepository)(nil)
	_ MovieRepositoryInterface     = (*MovieRepository)(nil)
	_ MovieListRepositoryInterface = (*MovieListRepository)(nil)
	_ ForumRepositoryInterface     = (*ForumRepository)(nil)
	_ ChatRepositoryInterface      = (*ChatRepository)(nil)
	_ ReviewRepositoryInterface    = (*ReviewRepository)(nil)
)
