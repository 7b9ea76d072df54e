package goSession

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"go.uber.org/zap"
)

// Authority issues, validates and revokes session tokens and serves cached
// profiles. Methods are safe for concurrent use.
type Authority struct {
	config   Config
	codec    *jwt.Codec
	store    *session.Store
	verifier CredentialVerifier
	profiles ProfileStore
	accounts AccountStore
	limiter  *rate.Limiter
	notify   *notifyDispatcher
	metrics  *Metrics
	logger   *zap.Logger

	sweepMu   sync.Mutex
	sweepStop chan struct{}
	sweepWG   sync.WaitGroup
	closeOnce sync.Once
}

// MetricsSnapshot returns a copy of the in-process counters.
func (a *Authority) MetricsSnapshot() MetricsSnapshot {
	if a == nil || a.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return a.metrics.Snapshot()
}

// NotificationsDropped reports events discarded because the dispatcher buffer was full.
func (a *Authority) NotificationsDropped() uint64 {
	if a == nil {
		return 0
	}
	return a.notify.Dropped()
}

func (a *Authority) metricInc(id MetricID) {
	if a == nil || a.metrics == nil {
		return
	}
	a.metrics.Inc(id)
}

// RegisterOrLogin issues a token for profile once the caller has verified the
// subject's credentials, and persists the session together with a profile
// snapshot. verified=false yields [ErrCredentialInvalid] and touches nothing.
func (a *Authority) RegisterOrLogin(ctx context.Context, profile Profile, verified bool) (*Issued, error) {
	if !verified || strings.TrimSpace(profile.ID) == "" {
		a.metricInc(MetricLoginFailure)
		a.emit(ctx, EventLoginFailure, false, profile.ID, "", ErrCredentialInvalid, nil)
		return nil, ErrCredentialInvalid
	}

	token, claims, err := a.codec.Issue(jwt.Identity{ID: profile.ID, Email: profile.Email, Name: profile.Name})
	if err != nil {
		return nil, errors.Join(ErrSessionCreationFailed, err)
	}

	rec := session.Record{
		SessionID: claims.ID,
		SubjectID: profile.ID,
		TokenHash: session.TokenHash(token),
		CreatedAt: claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
	}
	snapshot := toCacheProfile(profile)
	if err := a.store.PutSession(ctx, rec, a.config.Session.SessionTTL, &snapshot, a.config.Session.ProfileTTL); err != nil {
		a.logger.Error("session persist failed",
			zap.String("subject_id", profile.ID),
			zap.Error(err),
		)
		return nil, errors.Join(ErrSessionCreationFailed, storeError(err))
	}

	a.metricInc(MetricLoginSuccess)
	a.metricInc(MetricSessionCreated)
	a.emit(ctx, EventLogin, true, profile.ID, claims.ID, nil, nil)

	return &Issued{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		Subject:   subjectFromClaims(claims),
		Profile:   profile,
	}, nil
}

// Login verifies identifier and secret through the credential verifier and
// starts a session. Unknown identifiers, wrong secrets and verifier errors all
// surface as the same [ErrCredentialInvalid]. With the throttle enabled,
// repeated failures yield [ErrRateLimited] until the window passes.
func (a *Authority) Login(ctx context.Context, identifier, secret string) (*Issued, error) {
	identifier = normalizeIdentifier(identifier)
	if identifier == "" || secret == "" {
		return a.RegisterOrLogin(ctx, Profile{}, false)
	}

	ip := clientIPFromContext(ctx)
	if err := a.limiter.Check(ctx, identifier, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			a.metricInc(MetricLoginThrottled)
			a.emit(ctx, EventLoginFailure, false, "", "", ErrRateLimited, nil)
			return nil, ErrRateLimited
		}
		a.logger.Warn("login throttle check failed, continuing", zap.Error(err))
	}

	ok, err := a.verifier.Verify(ctx, identifier, secret)
	if err != nil {
		a.logger.Warn("credential verifier failed", zap.Error(err))
	}
	if err != nil || !ok {
		a.recordLoginFailure(ctx, identifier, ip)
		return a.RegisterOrLogin(ctx, Profile{}, false)
	}

	profile, err := a.profiles.LoadByIdentifier(ctx, identifier)
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			a.logger.Warn("profile lookup after verification failed", zap.Error(err))
		}
		return a.RegisterOrLogin(ctx, Profile{}, false)
	}

	issued, err := a.RegisterOrLogin(ctx, profile, true)
	if err != nil {
		return nil, err
	}
	if err := a.limiter.Reset(ctx, identifier); err != nil {
		a.logger.Warn("login throttle reset failed", zap.Error(err))
	}
	return issued, nil
}

func (a *Authority) recordLoginFailure(ctx context.Context, identifier, ip string) {
	if err := a.limiter.RecordFailure(ctx, identifier, ip); err != nil {
		a.logger.Warn("login throttle update failed", zap.Error(err))
	}
}

// Register creates an account through the account store and logs it in.
func (a *Authority) Register(ctx context.Context, account NewAccount) (*Issued, error) {
	if a.accounts == nil {
		return nil, ErrEngineNotReady
	}

	account.Email = normalizeIdentifier(account.Email)
	account.Name = strings.TrimSpace(account.Name)
	if account.Email == "" || account.Name == "" {
		return nil, ErrCredentialInvalid
	}
	if err := a.checkSecretPolicy(account.Secret); err != nil {
		return nil, err
	}

	profile, err := a.accounts.Create(ctx, account)
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			a.metricInc(MetricRegisterDuplicate)
			a.emit(ctx, EventRegister, false, "", "", ErrAccountExists, nil)
			return nil, ErrAccountExists
		}
		return nil, err
	}

	a.metricInc(MetricRegisterSuccess)
	a.emit(ctx, EventRegister, true, profile.ID, "", nil, nil)

	return a.RegisterOrLogin(ctx, profile, true)
}

// Validate checks signature and expiry locally, then asks the session store
// whether the token is still active. Parse failures never reach the store.
//
// A store failure rejects the token with [ErrStoreUnavailable] and is logged
// as an incident.
func (a *Authority) Validate(ctx context.Context, token string) (*Subject, error) {
	start := time.Now()
	defer func() {
		a.metrics.Observe(MetricValidateLatency, time.Since(start))
	}()

	claims, err := a.codec.Parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			a.metricInc(MetricValidateExpired)
			return nil, ErrTokenExpired
		}
		a.metricInc(MetricValidateInvalid)
		return nil, ErrTokenInvalid
	}

	active, err := a.store.IsActive(ctx, claims.Subject, token)
	if err != nil {
		a.metricInc(MetricValidateStoreUnavailable)
		a.logger.Error("session store unavailable during validate, rejecting token",
			zap.String("subject_id", claims.Subject),
			zap.Error(err),
		)
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	if !active {
		a.metricInc(MetricValidateRevoked)
		return nil, ErrSessionRevoked
	}

	a.metricInc(MetricValidateSuccess)
	subject := subjectFromClaims(claims)
	return &subject, nil
}

func (a *Authority) checkSecretPolicy(secret string) error {
	n := len(secret)
	if n < a.config.Password.MinLength || n > a.config.Password.MaxLength {
		return ErrPasswordPolicy
	}
	return nil
}

func (a *Authority) emit(ctx context.Context, eventType string, success bool, subjectID, sessionID string, err error, metadata func() map[string]string) {
	if a == nil || a.notify == nil {
		return
	}

	event := Event{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		SubjectID: subjectID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     errorCode(err),
	}
	if metadata != nil {
		event.Metadata = metadata()
	}
	a.notify.Emit(ctx, event)
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCredentialInvalid):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountExists):
		return "account_exists"
	case errors.Is(err, ErrPasswordPolicy):
		return "password_policy"
	case errors.Is(err, ErrPasswordReuse):
		return "password_reuse"
	case errors.Is(err, ErrSessionInvalidationFailed):
		return "session_invalidation_failed"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}

func storeError(err error) error {
	if errors.Is(err, session.ErrRedisUnavailable) {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return err
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func subjectFromClaims(claims *jwt.Claims) Subject {
	s := Subject{
		ID:      claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s
}

func toCacheProfile(p Profile) session.Profile {
	return session.Profile{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Avatar:    p.Avatar,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func fromCacheProfile(p session.Profile) Profile {
	return Profile{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		Avatar:    p.Avatar,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
