package middleware

import (
	"context"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// Validator is the subset of [goSession.Authority] the guards need.
type Validator interface {
	Validate(ctx context.Context, token string) (*goSession.Subject, error)
}

type subjectContextKey struct{}

// SubjectFromContext returns the subject attached by [Guard].
func SubjectFromContext(ctx context.Context) (*goSession.Subject, bool) {
	s, ok := ctx.Value(subjectContextKey{}).(*goSession.Subject)
	return s, ok
}

// WithSubject attaches s to ctx the same way [Guard] does.
func WithSubject(ctx context.Context, s *goSession.Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, s)
}

// Guard rejects requests without a valid, active bearer token with 401. The
// response body never says why: expired, revoked, malformed and store
// failures all look the same to the client.
func Guard(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			subject, err := v.Validate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
