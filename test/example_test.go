package test

import (
	"context"
	"errors"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/redis/go-redis/v9"
)

// ExampleNew shows authority construction with production-style dependencies.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	users := &exampleUserStore{}

	cfg := goSession.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("replace-with-a-32-byte-secret!!!")

	authority, err := goSession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialVerifier(users).
		WithProfileStore(users).
		Build()
	if err != nil {
		return
	}
	defer authority.Close()
}

// ExampleAuthority_Validate shows how callers separate client errors from
// backend incidents.
func ExampleAuthority_Validate() {
	var authority *goSession.Authority
	subject, err := authority.Validate(context.Background(), "token")
	switch {
	case errors.Is(err, goSession.ErrStoreUnavailable):
		// page someone; the token was rejected
	case goSession.IsAuthFailure(err):
		// 401
	case err == nil:
		_ = subject.ID
	}
}

// ExampleAuthority_MetricsSnapshot reads the in-process counters.
func ExampleAuthority_MetricsSnapshot() {
	var authority *goSession.Authority
	snapshot := authority.MetricsSnapshot()
	_ = snapshot.Counters[goSession.MetricValidateSuccess]
}

// Example_guard protects a net/http handler.
func Example_guard() {
	var authority *goSession.Authority
	mux := http.NewServeMux()
	mux.Handle("GET /me", middleware.Guard(authority)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ := middleware.SubjectFromContext(r.Context())
		_, _ = w.Write([]byte(subject.ID))
	})))
}

type exampleUserStore struct{}

func (exampleUserStore) Verify(context.Context, string, string) (bool, error) { return false, nil }

func (exampleUserStore) Load(context.Context, string) (goSession.Profile, error) {
	return goSession.Profile{}, goSession.ErrProfileNotFound
}

func (exampleUserStore) LoadByIdentifier(context.Context, string) (goSession.Profile, error) {
	return goSession.Profile{}, goSession.ErrProfileNotFound
}

func (exampleUserStore) Save(context.Context, string, goSession.ProfileUpdate) (goSession.Profile, error) {
	return goSession.Profile{}, goSession.ErrProfileNotFound
}
