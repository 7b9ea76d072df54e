package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	h, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}
	s, err := New(h)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestCreateVerifyLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, goSession.NewAccount{Name: "Ada", Email: " Ada@Example.com ", Secret: "secret-123"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == "" || p.Email != "ada@example.com" {
		t.Fatalf("unexpected profile %+v", p)
	}

	if ok, err := s.Verify(ctx, "ADA@example.com", "secret-123"); err != nil || !ok {
		t.Fatalf("expected verify success, got ok=%v err=%v", ok, err)
	}
	if ok, err := s.Verify(ctx, "ada@example.com", "wrong"); err != nil || ok {
		t.Fatalf("expected wrong secret rejected, got ok=%v err=%v", ok, err)
	}
	if ok, err := s.Verify(ctx, "nobody@example.com", "secret-123"); err != nil || ok {
		t.Fatalf("expected unknown identifier rejected, got ok=%v err=%v", ok, err)
	}

	byID, err := s.Load(ctx, p.ID)
	if err != nil || byID.Email != p.Email {
		t.Fatalf("Load: %+v %v", byID, err)
	}
	if _, err := s.Load(ctx, "missing"); !errors.Is(err, goSession.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestCreateDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, goSession.NewAccount{Name: "Ada", Email: "ada@example.com", Secret: "secret-123"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, goSession.NewAccount{Name: "Ada", Email: "ADA@example.com", Secret: "secret-456"}); !errors.Is(err, goSession.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 account, got %d", s.Len())
	}
}

func TestSaveAndSetSecret(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	p, err := s.Create(ctx, goSession.NewAccount{Name: "Ada", Email: "ada@example.com", Secret: "secret-123"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	s.now = func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) }
	avatar := "https://example.com/a.png"
	updated, err := s.Save(ctx, p.ID, goSession.ProfileUpdate{Avatar: &avatar})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if updated.Avatar != avatar || updated.Name != "Ada" || !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Fatalf("unexpected update %+v", updated)
	}

	if err := s.SetSecret(ctx, p.ID, "new-secret-456"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}
	if ok, _ := s.Verify(ctx, "ada@example.com", "secret-123"); ok {
		t.Fatal("old secret still accepted")
	}
	if ok, _ := s.Verify(ctx, "ada@example.com", "new-secret-456"); !ok {
		t.Fatal("new secret rejected")
	}
}

func TestVerifyUpgradesWeakHash(t *testing.T) {
	weak, _ := password.NewBcrypt(bcrypt.MinCost)
	strong, _ := password.NewBcrypt(bcrypt.MinCost + 1)
	s, err := New(weak)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	p, err := s.Create(ctx, goSession.NewAccount{Name: "Ada", Email: "ada@example.com", Secret: "secret-123"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	s.hasher = strong
	if ok, err := s.Verify(ctx, "ada@example.com", "secret-123"); err != nil || !ok {
		t.Fatalf("Verify: ok=%v err=%v", ok, err)
	}
	if strong.NeedsRehash(s.byID[p.ID].hash) {
		t.Fatal("expected hash upgraded after successful verify")
	}
}

func TestAuthorityEndToEnd(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := newTestStore(t)
	cfg := goSession.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")

	a, err := goSession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialVerifier(s).
		WithProfileStore(s).
		WithAccountStore(s).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	reg, err := a.Register(ctx, goSession.NewAccount{Name: "Ada", Email: "ada@example.com", Secret: "secret-123"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	login, err := a.Login(ctx, "ada@example.com", "secret-123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := a.ChangePassword(ctx, reg.Subject.ID, "secret-123", "new-secret-456"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	for _, tok := range []string{reg.Token, login.Token} {
		if _, err := a.Validate(ctx, tok); !errors.Is(err, goSession.ErrSessionRevoked) {
			t.Fatalf("expected revoked after password change, got %v", err)
		}
	}
	if _, err := a.Login(ctx, "ada@example.com", "new-secret-456"); err != nil {
		t.Fatalf("Login with new secret: %v", err)
	}
}
