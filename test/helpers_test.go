//go:build integration
// +build integration

package test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/memstore"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// cmdCounter counts Redis round-trips: single commands and whole pipelines.
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.pipelines.Add(1)
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

// RoundTrips is commands outside pipelines plus one per pipeline.
func (h *cmdCounter) RoundTrips() int64 { return h.commands.Load() + h.pipelines.Load() }

type harness struct {
	mr      *miniredis.Miniredis
	rdb     *redis.Client
	counter *cmdCounter
	store   *session.Store
	users   *memstore.Store
	auth    *goSession.Authority
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}
	counter := &cmdCounter{}
	rdb.AddHook(counter)

	hasher, err := password.NewBcrypt(4)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}
	users, err := memstore.New(hasher)
	if err != nil {
		t.Fatalf("memstore.New: %v", err)
	}

	cfg := goSession.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)

	auth, err := goSession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialVerifier(users).
		WithProfileStore(users).
		WithAccountStore(users).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(auth.Close)

	return &harness{
		mr:      mr,
		rdb:     rdb,
		counter: counter,
		store:   session.NewStore(rdb, session.Config{Prefix: cfg.Session.RedisPrefix}),
		users:   users,
		auth:    auth,
	}
}

func (h *harness) register(t *testing.T, email string) *goSession.Issued {
	t.Helper()
	issued, err := h.auth.Register(context.Background(), goSession.NewAccount{
		Name:   "Integration",
		Email:  email,
		Secret: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return issued
}

func makeRecord(subjectID, token string) session.Record {
	now := time.Now()
	return session.Record{
		SessionID: "sid-" + token,
		SubjectID: subjectID,
		TokenHash: session.TokenHash(token),
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	}
}
