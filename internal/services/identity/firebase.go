package identity

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/benvon/cinematch/internal/models"
)

var (
	// ErrUserNotFound is returned when the identity provider has no such user.
	ErrUserNotFound = errors.New("identity user not found")
	// ErrEmailExists is returned when creating or updating to a taken email.
	ErrEmailExists = errors.New("email already in use")
)

// NewUser carries the fields accepted when creating an identity user.
type NewUser struct {
	Email       string
	Password    string
	DisplayName string
}

// UserUpdate carries optional field changes; nil means unchanged.
type UserUpdate struct {
	Email       *string
	Password    *string
	DisplayName *string
	Disabled    *bool
}

// FirebaseClient manages users through the Firebase Admin SDK.
type FirebaseClient struct {
	auth   *auth.Client
	logger *zap.Logger
}

// NewFirebaseClient initialises the Admin SDK. With an empty credentials
// file the SDK falls back to application default credentials.
func NewFirebaseClient(ctx context.Context, projectID, credentialsFile string, logger *zap.Logger) (*FirebaseClient, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase auth: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirebaseClient{auth: client, logger: logger}, nil
}

// GetUser fetches one user by uid.
func (c *FirebaseClient) GetUser(ctx context.Context, uid string) (*models.IdentityUser, error) {
	rec, err := c.auth.GetUser(ctx, uid)
	if err != nil {
		return nil, mapAuthError("get user", err)
	}
	return fromRecord(rec), nil
}

// ListUsers returns one page of users and the next page token.
func (c *FirebaseClient) ListUsers(ctx context.Context, pageToken string, pageSize int) ([]*models.IdentityUser, string, error) {
	pager := iterator.NewPager(c.auth.Users(ctx, ""), pageSize, pageToken)
	var records []*auth.ExportedUserRecord
	next, err := pager.NextPage(&records)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list identity users: %w", err)
	}
	users := make([]*models.IdentityUser, 0, len(records))
	for _, rec := range records {
		users = append(users, fromRecord(rec.UserRecord))
	}
	return users, next, nil
}

// SetCustomClaims replaces the user's custom claims.
func (c *FirebaseClient) SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error {
	if err := c.auth.SetCustomUserClaims(ctx, uid, claims); err != nil {
		return mapAuthError("set custom claims", err)
	}
	return nil
}

// CreateUser creates an email/password identity user.
func (c *FirebaseClient) CreateUser(ctx context.Context, nu NewUser) (*models.IdentityUser, error) {
	params := (&auth.UserToCreate{}).Email(nu.Email).Password(nu.Password)
	if nu.DisplayName != "" {
		params = params.DisplayName(nu.DisplayName)
	}
	rec, err := c.auth.CreateUser(ctx, params)
	if err != nil {
		return nil, mapAuthError("create user", err)
	}
	c.logger.Info("identity_user_created", zap.String("uid", rec.UID))
	return fromRecord(rec), nil
}

// UpdateUser applies the non-nil fields of upd.
func (c *FirebaseClient) UpdateUser(ctx context.Context, uid string, upd UserUpdate) (*models.IdentityUser, error) {
	params := &auth.UserToUpdate{}
	if upd.Email != nil {
		params = params.Email(*upd.Email)
	}
	if upd.Password != nil {
		params = params.Password(*upd.Password)
	}
	if upd.DisplayName != nil {
		params = params.DisplayName(*upd.DisplayName)
	}
	if upd.Disabled != nil {
		params = params.Disabled(*upd.Disabled)
	}
	rec, err := c.auth.UpdateUser(ctx, uid, params)
	if err != nil {
		return nil, mapAuthError("update user", err)
	}
	return fromRecord(rec), nil
}

// DeleteUser removes the user from the identity provider.
func (c *FirebaseClient) DeleteUser(ctx context.Context, uid string) error {
	if err := c.auth.DeleteUser(ctx, uid); err != nil {
		return mapAuthError("delete user", err)
	}
	return nil
}

func mapAuthError(op string, err error) error {
	switch {
	case auth.IsUserNotFound(err):
		return fmt.Errorf("failed to %s: %w", op, errors.Join(ErrUserNotFound, err))
	case auth.IsEmailAlreadyExists(err):
		return fmt.Errorf("failed to %s: %w", op, errors.Join(ErrEmailExists, err))
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

func fromRecord(rec *auth.UserRecord) *models.IdentityUser {
	if rec == nil || rec.UserInfo == nil {
		return &models.IdentityUser{}
	}
	return &models.IdentityUser{
		UID:          rec.UID,
		Email:        rec.Email,
		DisplayName:  rec.DisplayName,
		Disabled:     rec.Disabled,
		CustomClaims: rec.CustomClaims,
	}
}
