// Package httpapi is the JSON HTTP surface of the gosession binary.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Authority is the subset of [goSession.Authority] the handlers call.
type Authority interface {
	middleware.Validator
	Login(ctx context.Context, identifier, secret string) (*goSession.Issued, error)
	Register(ctx context.Context, account goSession.NewAccount) (*goSession.Issued, error)
	Logout(ctx context.Context, subjectID, token string) error
	LogoutAll(ctx context.Context, subjectID string) error
	GetProfile(ctx context.Context, subjectID string) (goSession.Profile, error)
	UpdateProfile(ctx context.Context, subjectID string, update goSession.ProfileUpdate) (goSession.Profile, error)
	ChangePassword(ctx context.Context, subjectID, oldSecret, newSecret string) error
	ListSessions(ctx context.Context, subjectID string) ([]goSession.SessionInfo, error)
	Health(ctx context.Context) goSession.HealthStatus
}

// Options configures [New].
type Options struct {
	Logger *zap.Logger
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// TrustProxy makes the first X-Forwarded-For entry the client IP.
	TrustProxy bool
}

type server struct {
	auth     Authority
	logger   *zap.Logger
	validate *validator.Validate
	opts     Options
}

// New returns the routed handler. Keyspace-wide statistics have no route;
// the "gosession stats" command serves them.
func New(auth Authority, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &server{
		auth:     auth,
		logger:   opts.Logger.Named("http"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		opts:     opts,
	}

	guard := middleware.Guard(auth)
	protected := func(h http.HandlerFunc) http.Handler { return guard(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("POST /api/auth/logout", protected(s.logout))
	mux.Handle("POST /api/auth/logout-all", protected(s.logoutAll))
	mux.Handle("GET /api/auth/me", protected(s.me))
	mux.Handle("GET /api/auth/profile", protected(s.getProfile))
	mux.Handle("PUT /api/auth/profile", protected(s.updateProfile))
	mux.Handle("POST /api/auth/password", protected(s.changePassword))
	mux.Handle("GET /api/auth/sessions", protected(s.sessions))
	mux.HandleFunc("GET /health", s.health)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	return s.withRequestContext(s.recoverer(mux))
}

func (s *server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := goSession.WithClientIP(r.Context(), s.clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panicked",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
				)
				writeJSON(w, http.StatusInternalServerError, errorBody("INTERNAL", "internal error"))
				return
			}
			s.logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("elapsed", time.Since(start)),
			)
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *server) clientIP(r *http.Request) string {
	if s.opts.TrustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
