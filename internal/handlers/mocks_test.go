package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/benvon/cinematch/internal/database"
	"github.com/benvon/cinematch/internal/models"
	"github.com/benvon/cinematch/internal/queue"
	"github.com/benvon/cinematch/internal/services/identity"
	"github.com/benvon/cinematch/internal/services/tmdb"
)

type mockUserRepo struct {
	database.UserRepositoryInterface
	GetByIDFunc    func(ctx context.Context, id int64) (*models.StoreUser, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.StoreUser, error)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*models.StoreUser, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.StoreUser, error) {
	return m.GetByEmailFunc(ctx, email)
}

type mockProfileRepo struct {
	ListByUserFunc func(ctx context.Context, userID int64) ([]*models.Profile, error)
	GetDefaultFunc func(ctx context.Context, userID int64) (*models.Profile, error)
	GetOwnedFunc   func(ctx context.Context, profileID, userID int64) (*models.Profile, error)
}

func (m *mockProfileRepo) ListByUser(ctx context.Context, userID int64) ([]*models.Profile, error) {
	return m.ListByUserFunc(ctx, userID)
}

func (m *mockProfileRepo) GetDefault(ctx context.Context, userID int64) (*models.Profile, error) {
	return m.GetDefaultFunc(ctx, userID)
}

func (m *mockProfileRepo) GetOwned(ctx context.Context, profileID, userID int64) (*models.Profile, error) {
	return m.GetOwnedFunc(ctx, profileID, userID)
}

// ownedProfiles returns a profile repo where each user owns exactly the given
// profile IDs and the first one is the default.
func ownedProfiles(owned map[int64][]int64) *mockProfileRepo {
	return &mockProfileRepo{
		GetDefaultFunc: func(ctx context.Context, userID int64) (*models.Profile, error) {
			ids := owned[userID]
			if len(ids) == 0 {
				return nil, database.ErrNotFound
			}
			return &models.Profile{ID: ids[0], UserID: userID}, nil
		},
		GetOwnedFunc: func(ctx context.Context, profileID, userID int64) (*models.Profile, error) {
			for _, id := range owned[userID] {
				if id == profileID {
					return &models.Profile{ID: id, UserID: userID}, nil
				}
			}
			return nil, database.ErrNotFound
		},
		ListByUserFunc: func(ctx context.Context, userID int64) ([]*models.Profile, error) {
			var out []*models.Profile
			for _, id := range owned[userID] {
				out = append(out, &models.Profile{ID: id, UserID: userID})
			}
			return out, nil
		},
	}
}

type mockMovieRepo struct {
	GetByIDFunc        func(ctx context.Context, id int64) (*models.Movie, error)
	ListFunc           func(ctx context.Context, page, pageSize int) ([]*models.Movie, int, error)
	TopRatedFunc       func(ctx context.Context, limit int) ([]*models.Movie, error)
	UpsertByTMDBIDFunc func(ctx context.Context, m *models.Movie) (*models.Movie, error)
}

func (m *mockMovieRepo) GetByID(ctx context.Context, id int64) (*models.Movie, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockMovieRepo) List(ctx context.Context, page, pageSize int) ([]*models.Movie, int, error) {
	return m.ListFunc(ctx, page, pageSize)
}

func (m *mockMovieRepo) TopRated(ctx context.Context, limit int) ([]*models.Movie, error) {
	return m.TopRatedFunc(ctx, limit)
}

func (m *mockMovieRepo) UpsertByTMDBID(ctx context.Context, movie *models.Movie) (*models.Movie, error) {
	return m.UpsertByTMDBIDFunc(ctx, movie)
}

type mockMovieListRepo struct {
	AddFunc     func(ctx context.Context, list models.ListType, movieID, profileID int64) (bool, error)
	RemoveFunc  func(ctx context.Context, list models.ListType, movieID, profileID int64) (bool, error)
	EntriesFunc func(ctx context.Context, list models.ListType, profileID int64) ([]*models.ListEntry, error)
	StatusFunc  func(ctx context.Context, movieID, profileID int64) (*models.MovieListStatus, error)
}

func (m *mockMovieListRepo) Add(ctx context.Context, list models.ListType, movieID, profileID int64) (bool, error) {
	return m.AddFunc(ctx, list, movieID, profileID)
}

func (m *mockMovieListRepo) Remove(ctx context.Context, list models.ListType, movieID, profileID int64) (bool, error) {
	return m.RemoveFunc(ctx, list, movieID, profileID)
}

func (m *mockMovieListRepo) Entries(ctx context.Context, list models.ListType, profileID int64) ([]*models.ListEntry, error) {
	return m.EntriesFunc(ctx, list, profileID)
}

func (m *mockMovieListRepo) Status(ctx context.Context, movieID, profileID int64) (*models.MovieListStatus, error) {
	return m.StatusFunc(ctx, movieID, profileID)
}

type mockForumRepo struct {
	GetOrCreateForumFunc func(ctx context.Context, movieID int64) (*models.Forum, error)
	CreateCommentFunc    func(ctx context.Context, c *models.Comment) (*models.Comment, error)
	ListByMovieFunc      func(ctx context.Context, movieID int64, page, pageSize int) ([]*models.Comment, int, error)
	GetOwnerFunc         func(ctx context.Context, commentID int64) (*models.CommentOwner, error)
	LikeFunc             func(ctx context.Context, commentID int64) (int, error)
	UpdateMessageFunc    func(ctx context.Context, commentID int64, message string) (*models.Comment, error)
	DeleteFunc           func(ctx context.Context, commentID int64) error
}

func (m *mockForumRepo) GetOrCreateForum(ctx context.Context, movieID int64) (*models.Forum, error) {
	return m.GetOrCreateForumFunc(ctx, movieID)
}

func (m *mockForumRepo) CreateComment(ctx context.Context, c *models.Comment) (*models.Comment, error) {
	return m.CreateCommentFunc(ctx, c)
}

func (m *mockForumRepo) ListByMovie(ctx context.Context, movieID int64, page, pageSize int) ([]*models.Comment, int, error) {
	return m.ListByMovieFunc(ctx, movieID, page, pageSize)
}

func (m *mockForumRepo) GetOwner(ctx context.Context, commentID int64) (*models.CommentOwner, error) {
	return m.GetOwnerFunc(ctx, commentID)
}

func (m *mockForumRepo) Like(ctx context.Context, commentID int64) (int, error) {
	return m.LikeFunc(ctx, commentID)
}

func (m *mockForumRepo) UpdateMessage(ctx context.Context, commentID int64, message string) (*models.Comment, error) {
	return m.UpdateMessageFunc(ctx, commentID, message)
}

func (m *mockForumRepo) Delete(ctx context.Context, commentID int64) error {
	return m.DeleteFunc(ctx, commentID)
}

type mockChatRepo struct {
	CreateGroupFunc       func(ctx context.Context, g *models.ChatGroup) (*models.ChatGroup, error)
	GetGroupFunc          func(ctx context.Context, id uuid.UUID) (*models.ChatGroup, error)
	ListGroupsForUserFunc func(ctx context.Context, userID int64) ([]*models.ChatGroup, error)
	AddMemberFunc         func(ctx context.Context, groupID uuid.UUID, userID int64) (*models.GroupMember, error)
	GetMemberFunc         func(ctx context.Context, groupID uuid.UUID, userID int64) (*models.GroupMember, error)
	CreateMessageFunc     func(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error)
	ListMessagesFunc      func(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]*models.ChatMessage, error)
}

func (m *mockChatRepo) CreateGroup(ctx context.Context, g *models.ChatGroup) (*models.ChatGroup, error) {
	return m.CreateGroupFunc(ctx, g)
}

func (m *mockChatRepo) GetGroup(ctx context.Context, id uuid.UUID) (*models.ChatGroup, error) {
	return m.GetGroupFunc(ctx, id)
}

func (m *mockChatRepo) ListGroupsForUser(ctx context.Context, userID int64) ([]*models.ChatGroup, error) {
	return m.ListGroupsForUserFunc(ctx, userID)
}

func (m *mockChatRepo) AddMember(ctx context.Context, groupID uuid.UUID, userID int64) (*models.GroupMember, error) {
	return m.AddMemberFunc(ctx, groupID, userID)
}

func (m *mockChatRepo) GetMember(ctx context.Context, groupID uuid.UUID, userID int64) (*models.GroupMember, error) {
	return m.GetMemberFunc(ctx, groupID, userID)
}

func (m *mockChatRepo) CreateMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	return m.CreateMessageFunc(ctx, msg)
}

func (m *mockChatRepo) ListMessages(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]*models.ChatMessage, error) {
	return m.ListMessagesFunc(ctx, groupID, limit, offset)
}

type mockReviewRepo struct {
	ListByMovieFunc func(ctx context.Context, movieID int64, limit int) ([]*models.Review, error)
}

func (m *mockReviewRepo) ListByMovie(ctx context.Context, movieID int64, limit int) ([]*models.Review, error) {
	return m.ListByMovieFunc(ctx, movieID, limit)
}

type mockMovieSource struct {
	GetMovieFunc func(ctx context.Context, id int64) (*tmdb.MovieDetails, error)
}

func (m *mockMovieSource) GetMovie(ctx context.Context, id int64) (*tmdb.MovieDetails, error) {
	return m.GetMovieFunc(ctx, id)
}

type mockChatHub struct {
	SendFunc  func(ctx context.Context, groupID uuid.UUID, userID int64, content string) (*models.ChatMessage, error)
	ServeFunc func(w http.ResponseWriter, r *http.Request, groupID uuid.UUID, userID int64) error
}

func (m *mockChatHub) Send(ctx context.Context, groupID uuid.UUID, userID int64, content string) (*models.ChatMessage, error) {
	return m.SendFunc(ctx, groupID, userID, content)
}

func (m *mockChatHub) Serve(w http.ResponseWriter, r *http.Request, groupID uuid.UUID, userID int64) error {
	return m.ServeFunc(w, r, groupID, userID)
}

type mockAIProvider struct {
	SummarizeReviewsFunc func(ctx context.Context, movie *models.Movie, reviews []*models.Review) (string, error)
	RecommendFunc        func(ctx context.Context, question string, movies []*models.Movie) (string, error)
}

func (m *mockAIProvider) SummarizeReviews(ctx context.Context, movie *models.Movie, reviews []*models.Review) (string, error) {
	return m.SummarizeReviewsFunc(ctx, movie, reviews)
}

func (m *mockAIProvider) Recommend(ctx context.Context, question string, movies []*models.Movie) (string, error) {
	return m.RecommendFunc(ctx, question, movies)
}

type mockIdentityAdmin struct {
	GetUserFunc         func(ctx context.Context, uid string) (*models.IdentityUser, error)
	ListUsersFunc       func(ctx context.Context, pageToken string, pageSize int) ([]*models.IdentityUser, string, error)
	SetCustomClaimsFunc func(ctx context.Context, uid string, claims map[string]any) error
	CreateUserFunc      func(ctx context.Context, nu identity.NewUser) (*models.IdentityUser, error)
	UpdateUserFunc      func(ctx context.Context, uid string, upd identity.UserUpdate) (*models.IdentityUser, error)
	DeleteUserFunc      func(ctx context.Context, uid string) error
}

func (m *mockIdentityAdmin) GetUser(ctx context.Context, uid string) (*models.IdentityUser, error) {
	return m.GetUserFunc(ctx, uid)
}

func (m *mockIdentityAdmin) ListUsers(ctx context.Context, pageToken string, pageSize int) ([]*models.IdentityUser, string, error) {
	return m.ListUsersFunc(ctx, pageToken, pageSize)
}

func (m *mockIdentityAdmin) SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error {
	return m.SetCustomClaimsFunc(ctx, uid, claims)
}

func (m *mockIdentityAdmin) CreateUser(ctx context.Context, nu identity.NewUser) (*models.IdentityUser, error) {
	return m.CreateUserFunc(ctx, nu)
}

func (m *mockIdentityAdmin) UpdateUser(ctx context.Context, uid string, upd identity.UserUpdate) (*models.IdentityUser, error) {
	return m.UpdateUserFunc(ctx, uid, upd)
}

func (m *mockIdentityAdmin) DeleteUser(ctx context.Context, uid string) error {
	return m.DeleteUserFunc(ctx, uid)
}

type mockReconciler struct {
	ReconcileUIDFunc    func(ctx context.Context, uid string) (*models.StoreUser, error)
	ReconcileCreateFunc func(ctx context.Context, u *models.IdentityUser) (*models.StoreUser, error)
	ReconcileUpdateFunc func(ctx context.Context, u *models.IdentityUser) (*models.StoreUser, error)
	ReconcileDeleteFunc func(ctx context.Context, uid string) (bool, error)
}

func (m *mockReconciler) ReconcileUID(ctx context.Context, uid string) (*models.StoreUser, error) {
	return m.ReconcileUIDFunc(ctx, uid)
}

func (m *mockReconciler) ReconcileCreate(ctx context.Context, u *models.IdentityUser) (*models.StoreUser, error) {
	return m.ReconcileCreateFunc(ctx, u)
}

func (m *mockReconciler) ReconcileUpdate(ctx context.Context, u *models.IdentityUser) (*models.StoreUser, error) {
	return m.ReconcileUpdateFunc(ctx, u)
}

func (m *mockReconciler) ReconcileDelete(ctx context.Context, uid string) (bool, error) {
	return m.ReconcileDeleteFunc(ctx, uid)
}

type mockEnqueuer struct {
	mu   sync.Mutex
	jobs []*queue.Job
	err  error
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, job *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *mockEnqueuer) enqueued() []*queue.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*queue.Job(nil), m.jobs...)
}

type mockSessions struct {
	IssueFunc  func(u *models.StoreUser) (*models.TokenPair, error)
	VerifyFunc func(token string, kind models.TokenKind) (*models.JWTClaims, error)
}

func (m *mockSessions) Issue(u *models.StoreUser) (*models.TokenPair, error) {
	return m.IssueFunc(u)
}

func (m *mockSessions) Verify(token string, kind models.TokenKind) (*models.JWTClaims, error) {
	return m.VerifyFunc(token, kind)
}
