package models

// TokenKind distinguishes identity provider tokens from locally issued ones.
type TokenKind string

const (
	TokenKindFirebase TokenKind = "firebase"
	TokenKindSession  TokenKind = "session"
	TokenKindRefresh  TokenKind = "refresh"
)

// JWTClaims represents the claims extracted from a verified bearer token
type JWTClaims struct {
	Kind  TokenKind `json:"kind"`
	Sub   string    `json:"sub"` // identity uid, or store user id for session tokens
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  string    `json:"role,omitempty"`
	Exp   int64     `json:"exp"`
	Iat   int64     `json:"iat"`
	Iss   string    `json:"iss"`
	Aud   string    `json:"aud"`
}

// TokenPair is returned by the legacy login and refresh endpoints.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
