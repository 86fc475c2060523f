package models

// Identity is the caller as seen by handlers. Every authentication path
// (identity provider token, legacy session token, dev header) produces one.
type Identity struct {
	UserID      int64        `json:"user_id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name"`
	Provider    AuthProvider `json:"provider"`
	// FirebaseUID is empty for legacy users.
	FirebaseUID string `json:"firebase_uid,omitempty"`
}

// NewIdentity builds the caller identity from a store row.
func NewIdentity(u *StoreUser) *Identity {
	id := &Identity{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Provider:    u.AuthProvider,
	}
	if u.FirebaseUID != nil {
		id.FirebaseUID = *u.FirebaseUID
	}
	if id.Provider == "" {
		id.Provider = AuthProviderLegacy
		if id.FirebaseUID != "" {
			id.Provider = AuthProviderFirebase
		}
	}
	return id
}
