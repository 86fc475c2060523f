package identity

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/benvon/cinematch/internal/models"
)

const sessionIssuer = "cinematch"

// SessionManager issues and verifies HS256 tokens for legacy email/password users.
type SessionManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewSessionManager creates a session manager. The secret must be at least 32 bytes.
func NewSessionManager(secret string, accessTTL, refreshTTL time.Duration) (*SessionManager, error) {
	if len(secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	return &SessionManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// Issue returns an access and refresh token pair for the user.
func (m *SessionManager) Issue(u *models.StoreUser) (*models.TokenPair, error) {
	access, err := m.sign(u, models.TokenKindSession, m.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := m.sign(u, models.TokenKindRefresh, m.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(m.accessTTL.Seconds()),
	}, nil
}

func (m *SessionManager) sign(u *models.StoreUser, kind models.TokenKind, ttl time.Duration) (string, error) {
	now := m.now()
	tok, err := jwt.NewBuilder().
		Issuer(sessionIssuer).
		Subject(strconv.FormatInt(u.ID, 10)).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim("email", u.Email).
		Claim("name", u.DisplayName).
		Claim("kind", string(kind)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build %s token: %w", kind, err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, m.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return string(signed), nil
}

// Verify checks a token of the expected kind and returns its claims.
func (m *SessionManager) Verify(tokenString string, kind models.TokenKind) (*models.JWTClaims, error) {
	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, m.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithClock(jwt.ClockFunc(m.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if got := stringClaim(token, "kind"); got != string(kind) {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, kind, got)
	}
	return &models.JWTClaims{
		Kind:  kind,
		Sub:   token.Subject(),
		Email: stringClaim(token, "email"),
		Name:  stringClaim(token, "name"),
		Iss:   token.Issuer(),
		Exp:   token.Expiration().Unix(),
		Iat:   token.IssuedAt().Unix(),
	}, nil
}

// UserID parses the store user id from session claims.
func UserID(claims *models.JWTClaims) (int64, error) {
	id, err := strconv.ParseInt(claims.Sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}

// IsSessionToken reports whether the token was signed with HS256, which only
// locally issued session tokens use.
func IsSessionToken(tokenString string) bool {
	msg, err := jws.Parse([]byte(tokenString))
	if err != nil || len(msg.Signatures()) == 0 {
		return false
	}
	return msg.Signatures()[0].ProtectedHeaders().Algorithm() == jwa.HS256
}
