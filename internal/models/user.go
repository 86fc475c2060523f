package models

import (
	"strings"
	"time"
)

// FederatedPasswordSentinel is stored in the password column of users whose
// credentials live in the identity provider. It is never a valid bcrypt hash.
const FederatedPasswordSentinel = "firebase_auth_user"

// DefaultProfileType is the tipo given to the profile created alongside a user.
const DefaultProfileType = "usuario"

// AuthProvider names where a StoreUser authenticates.
type AuthProvider string

const (
	AuthProviderLegacy   AuthProvider = "legacy"
	AuthProviderFirebase AuthProvider = "firebase"
)

// StoreUser is an application user row.
type StoreUser struct {
	ID           int64        `json:"id" db:"id"`
	DisplayName  string       `json:"nome" db:"nome"`
	Email        string       `json:"email" db:"email"`
	PasswordHash string       `json:"-" db:"senha"`
	FirebaseUID  *string      `json:"firebase_uid,omitempty" db:"firebase_uid"`
	AuthProvider AuthProvider `json:"auth_provider" db:"auth_provider"`
	StoreAuthUID *string      `json:"supabase_uid,omitempty" db:"supabase_uid"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// IsFederated reports whether the user is owned by the identity provider.
func (u *StoreUser) IsFederated() bool {
	return u.FirebaseUID != nil && *u.FirebaseUID != ""
}

// Profile is a persona owned by a StoreUser. Watch-lists, reviews and
// comments hang off profiles rather than users.
type Profile struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"usuario_id" db:"usuario_id"`
	Type        string    `json:"tipo" db:"tipo"`
	Name        string    `json:"nome" db:"nome"`
	Description *string   `json:"descricao,omitempty" db:"descricao"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// IdentityUser is a user record held by the identity provider.
type IdentityUser struct {
	UID          string         `json:"uid"`
	Email        string         `json:"email"`
	DisplayName  string         `json:"display_name,omitempty"`
	Disabled     bool           `json:"disabled"`
	CustomClaims map[string]any `json:"custom_claims,omitempty"`
}

// DerivedDisplayName returns the display name, falling back to the local
// part of the email when the provider has none.
func (u *IdentityUser) DerivedDisplayName() string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// HasRole reports whether the custom claims carry the given role.
func (u *IdentityUser) HasRole(role string) bool {
	v, ok := u.CustomClaims["role"].(string)
	return ok && v == role
}

// AuthUser is a record in the store's own auth subsystem.
type AuthUser struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	AppMetadata map[string]any `json:"app_metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// FirebaseUID returns the identity uid recorded in the auth user's metadata.
func (u *AuthUser) FirebaseUID() string {
	uid, _ := u.AppMetadata["firebase_uid"].(string)
	return uid
}
