package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

const (
	recordSchemaVersion  = 1
	profileSchemaVersion = 1
)

var errUnknownSchema = errors.New("unknown schema version")

// Record is the per-login session metadata kept for introspection and cleanup.
// It carries the token digest, never the bearer string itself.
type Record struct {
	SessionID string
	SubjectID string
	TokenHash string
	CreatedAt int64
	ExpiresAt int64
}

// Profile is the non-secret profile snapshot held in the profile cache.
type Profile struct {
	ID        string
	Name      string
	Email     string
	Avatar    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats holds point-in-time key counts.
type Stats struct {
	ActiveSessions    int
	CachedProfiles    int
	BlacklistedTokens int
}

// TokenHash returns the hex SHA-256 digest used for token-set members,
// session record fields and blacklist keys.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type recordWire struct {
	Version   int    `json:"v"`
	SessionID string `json:"sid"`
	SubjectID string `json:"subject"`
	TokenHash string `json:"token_hash"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
}

type profileWire struct {
	Version   int       `json:"v"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func encodeRecord(r Record) ([]byte, error) {
	return json.Marshal(recordWire{
		Version:   recordSchemaVersion,
		SessionID: r.SessionID,
		SubjectID: r.SubjectID,
		TokenHash: r.TokenHash,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	})
}

func decodeRecord(data []byte) (Record, error) {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Record{}, err
	}
	if w.Version != recordSchemaVersion {
		return Record{}, errUnknownSchema
	}
	return Record{
		SessionID: w.SessionID,
		SubjectID: w.SubjectID,
		TokenHash: w.TokenHash,
		CreatedAt: w.CreatedAt,
		ExpiresAt: w.ExpiresAt,
	}, nil
}

func encodeProfile(p Profile) ([]byte, error) {
	return json.Marshal(profileWire{
		Version:   profileSchemaVersion,
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Avatar:    p.Avatar,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	})
}

func decodeProfile(data []byte) (Profile, error) {
	var w profileWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Profile{}, err
	}
	if w.Version != profileSchemaVersion || w.ID == "" {
		return Profile{}, errUnknownSchema
	}
	return Profile{
		ID:        w.ID,
		Name:      w.Name,
		Email:     w.Email,
		Avatar:    w.Avatar,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}, nil
}
