// Package memstore is an in-memory user-record store used by the demo binary
// and integration tests. It implements the credential verifier, profile
// store and account store ports of goSession.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/password"
	"github.com/google/uuid"
)

type account struct {
	profile goSession.Profile
	hash    string
}

// Store keeps accounts keyed by subject id with a lowercase email index.
type Store struct {
	hasher password.Hasher
	now    func() time.Time

	mu      sync.RWMutex
	byID    map[string]*account
	byEmail map[string]string

	// dummy is verified against for unknown identifiers so both failure
	// paths cost one hash comparison.
	dummy string
}

var (
	_ goSession.CredentialVerifier = (*Store)(nil)
	_ goSession.ProfileStore       = (*Store)(nil)
	_ goSession.AccountStore       = (*Store)(nil)
)

// New returns an empty store hashing secrets with hasher.
func New(hasher password.Hasher) (*Store, error) {
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}
	return &Store{
		hasher:  hasher,
		now:     time.Now,
		byID:    make(map[string]*account),
		byEmail: make(map[string]string),
		dummy:   dummy,
	}, nil
}

// Verify implements goSession.CredentialVerifier.
func (s *Store) Verify(_ context.Context, identifier, secret string) (bool, error) {
	s.mu.RLock()
	acc, ok := s.lookupLocked(identifier)
	hash := s.dummy
	if ok {
		hash = acc.hash
	}
	s.mu.RUnlock()

	match, err := s.hasher.Verify(secret, hash)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if match && s.hasher.NeedsRehash(hash) {
		s.rehash(acc.profile.ID, hash, secret)
	}
	return match, nil
}

func (s *Store) rehash(subjectID, old, secret string) {
	fresh, err := s.hasher.Hash(secret)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.byID[subjectID]; ok && acc.hash == old {
		acc.hash = fresh
	}
}

// Load implements goSession.ProfileStore.
func (s *Store) Load(_ context.Context, subjectID string) (goSession.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.byID[subjectID]
	if !ok {
		return goSession.Profile{}, goSession.ErrProfileNotFound
	}
	return acc.profile, nil
}

// LoadByIdentifier implements goSession.ProfileStore.
func (s *Store) LoadByIdentifier(_ context.Context, identifier string) (goSession.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.lookupLocked(identifier)
	if !ok {
		return goSession.Profile{}, goSession.ErrProfileNotFound
	}
	return acc.profile, nil
}

// Save implements goSession.ProfileStore.
func (s *Store) Save(_ context.Context, subjectID string, update goSession.ProfileUpdate) (goSession.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[subjectID]
	if !ok {
		return goSession.Profile{}, goSession.ErrProfileNotFound
	}
	if update.Name != nil {
		acc.profile.Name = *update.Name
	}
	if update.Avatar != nil {
		acc.profile.Avatar = *update.Avatar
	}
	acc.profile.UpdatedAt = s.now().UTC()
	return acc.profile, nil
}

// Create implements goSession.AccountStore.
func (s *Store) Create(_ context.Context, in goSession.NewAccount) (goSession.Profile, error) {
	hash, err := s.hasher.Hash(in.Secret)
	if err != nil {
		return goSession.Profile{}, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[email]; exists {
		return goSession.Profile{}, goSession.ErrAccountExists
	}

	acc := &account{
		profile: goSession.Profile{
			ID:        uuid.NewString(),
			Name:      in.Name,
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		},
		hash: hash,
	}
	s.byID[acc.profile.ID] = acc
	s.byEmail[email] = acc.profile.ID
	return acc.profile, nil
}

// SetSecret implements goSession.AccountStore.
func (s *Store) SetSecret(_ context.Context, subjectID, secret string) error {
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[subjectID]
	if !ok {
		return goSession.ErrProfileNotFound
	}
	acc.hash = hash
	acc.profile.UpdatedAt = s.now().UTC()
	return nil
}

// Len returns the number of accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Store) lookupLocked(identifier string) (*account, bool) {
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(identifier))]
	if !ok {
		return nil, false
	}
	acc, ok := s.byID[id]
	return acc, ok
}
