package goSession

import (
	"context"
	"time"
)

// Subject is the authenticated identity a valid token represents.
type Subject struct {
	ID        string
	Email     string
	Name      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Profile is the non-secret view of a subject served by GetProfile and cached
// in the session store.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileUpdate carries the mutable profile fields. Nil fields are left unchanged.
// Email is the login identifier and is immutable once the account exists.
type ProfileUpdate struct {
	Name   *string
	Avatar *string
}

// NewAccount is the input to [Authority.Register].
type NewAccount struct {
	Name   string
	Email  string
	Secret string
}

// Issued is the result of a successful login or registration.
type Issued struct {
	Token     string
	ExpiresAt time.Time
	Subject   Subject
	Profile   Profile
}

// Stats holds point-in-time session store counts. Values are best-effort
// under concurrent mutation.
type Stats struct {
	ActiveSessions    int `json:"activeSessions"`
	CachedProfiles    int `json:"cachedProfiles"`
	BlacklistedTokens int `json:"blacklistedTokens"`
}

// SessionInfo is the safe introspection view of one active login.
// It carries no token material.
type SessionInfo struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RedisAvailable bool          `json:"redisAvailable"`
	RedisLatency   time.Duration `json:"redisLatency"`
}

// CredentialVerifier confirms an identifier/secret pair against the user store.
// Implementations must not reveal through errors whether the identifier exists.
type CredentialVerifier interface {
	Verify(ctx context.Context, identifier, secret string) (bool, error)
}

// ProfileStore is the primary profile store the cache sits in front of.
// Load and LoadByIdentifier return [ErrProfileNotFound] for unknown subjects.
type ProfileStore interface {
	Load(ctx context.Context, subjectID string) (Profile, error)
	LoadByIdentifier(ctx context.Context, identifier string) (Profile, error)
	Save(ctx context.Context, subjectID string, update ProfileUpdate) (Profile, error)
}

// AccountStore creates accounts and replaces secrets. Create returns
// [ErrAccountExists] for a duplicate identifier.
type AccountStore interface {
	Create(ctx context.Context, account NewAccount) (Profile, error)
	SetSecret(ctx context.Context, subjectID, secret string) error
}
