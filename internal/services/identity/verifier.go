package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/benvon/cinematch/internal/models"
)

// ErrInvalidToken wraps every token verification failure.
var ErrInvalidToken = errors.New("invalid token")

// Verifier checks Firebase ID tokens against the published signing keys.
type Verifier struct {
	jwks      *JWKSManager
	jwksURL   string
	projectID string
}

// NewVerifier creates a verifier for tokens issued to projectID.
func NewVerifier(jwks *JWKSManager, jwksURL, projectID string) *Verifier {
	if jwksURL == "" {
		jwksURL = FirebaseJWKSURL
	}
	return &Verifier{jwks: jwks, jwksURL: jwksURL, projectID: projectID}
}

// Issuer returns the issuer Firebase uses for the project.
func (v *Verifier) Issuer() string {
	return "https://securetoken.google.com/" + v.projectID
}

// Verify validates the token signature, lifetime, issuer and audience and
// returns its claims.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	keys, err := v.jwks.GetJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.Issuer()),
		jwt.WithAudience(v.projectID),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if token.Subject() == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	claims := &models.JWTClaims{
		Kind: models.TokenKindFirebase,
		Sub:  token.Subject(),
		Iss:  token.Issuer(),
		Exp:  token.Expiration().Unix(),
		Iat:  token.IssuedAt().Unix(),
	}
	if aud := token.Audience(); len(aud) > 0 {
		claims.Aud = aud[0]
	}
	claims.Email = stringClaim(token, "email")
	claims.Name = stringClaim(token, "name")
	claims.Role = stringClaim(token, "role")
	return claims, nil
}

func stringClaim(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
