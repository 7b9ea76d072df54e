package goSession

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"go.uber.org/zap"
)

// Logout revokes one session of subjectID. The token is blacklisted for its
// remaining lifetime; an already expired token is only removed from the
// active set. Repeated calls are safe.
func (a *Authority) Logout(ctx context.Context, subjectID, token string) error {
	if subjectID == "" || token == "" {
		return ErrTokenInvalid
	}

	var (
		sessionID string
		ttl       time.Duration
	)
	claims, err := a.codec.Parse(token)
	switch {
	case err == nil:
		if claims.Subject != subjectID {
			return ErrTokenInvalid
		}
		sessionID = claims.ID
		ttl = a.blacklistTTL(claims.ExpiresAt.Time)
	case errors.Is(err, jwt.ErrExpired):
	default:
		return ErrTokenInvalid
	}

	return a.revokeOne(ctx, subjectID, sessionID, token, ttl)
}

// LogoutToken revokes the session the token belongs to. Used when only the
// bearer string is at hand.
func (a *Authority) LogoutToken(ctx context.Context, token string) error {
	claims, err := a.codec.Parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}

	return a.revokeOne(ctx, claims.Subject, claims.ID, token, a.blacklistTTL(claims.ExpiresAt.Time))
}

func (a *Authority) revokeOne(ctx context.Context, subjectID, sessionID, token string, ttl time.Duration) error {
	if err := a.store.RevokeOne(ctx, subjectID, token, ttl); err != nil {
		a.logger.Error("logout failed",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
		a.emit(ctx, EventLogout, false, subjectID, sessionID, ErrStoreUnavailable, nil)
		return storeError(err)
	}

	a.metricInc(MetricLogout)
	a.metricInc(MetricSessionInvalidated)
	a.emit(ctx, EventLogout, true, subjectID, sessionID, nil, nil)
	return nil
}

// blacklistTTL covers the token's remaining lifetime plus parser leeway,
// capped by the configured blacklist TTL.
func (a *Authority) blacklistTTL(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt) + a.config.JWT.Leeway + time.Second
	if ttl > a.config.Session.BlacklistTTL {
		ttl = a.config.Session.BlacklistTTL
	}
	return ttl
}

// LogoutAll revokes every active session of subjectID and drops its profile
// cache entry in one atomic store operation.
func (a *Authority) LogoutAll(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return ErrTokenInvalid
	}

	n, err := a.store.RevokeAll(ctx, subjectID, a.config.Session.BlacklistTTL)
	if err != nil {
		a.logger.Error("logout all failed",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
		a.emit(ctx, EventLogoutAll, false, subjectID, "", ErrStoreUnavailable, nil)
		return storeError(err)
	}

	a.metricInc(MetricLogoutAll)
	if n > 0 && a.metrics != nil {
		a.metrics.Add(MetricSessionInvalidated, uint64(n))
	}
	a.emit(ctx, EventLogoutAll, true, subjectID, "", nil, nil)
	return nil
}

// ChangePassword verifies the current secret, stores the new one and then
// revokes every session of the subject, including the one making the call.
func (a *Authority) ChangePassword(ctx context.Context, subjectID, oldSecret, newSecret string) error {
	if a.accounts == nil {
		return ErrEngineNotReady
	}
	if subjectID == "" || oldSecret == "" {
		return ErrPasswordPolicy
	}
	if err := a.checkSecretPolicy(newSecret); err != nil {
		a.emit(ctx, EventPasswordChanged, false, subjectID, "", err, nil)
		return err
	}

	profile, err := a.profiles.Load(ctx, subjectID)
	if err != nil {
		return err
	}

	ok, err := a.verifier.Verify(ctx, normalizeIdentifier(profile.Email), oldSecret)
	if err != nil || !ok {
		a.metricInc(MetricPasswordChangeInvalidOld)
		a.emit(ctx, EventPasswordChanged, false, subjectID, "", ErrCredentialInvalid, nil)
		return ErrCredentialInvalid
	}

	if subtle.ConstantTimeCompare([]byte(oldSecret), []byte(newSecret)) == 1 {
		a.metricInc(MetricPasswordChangeReuseRejected)
		a.emit(ctx, EventPasswordChanged, false, subjectID, "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	if err := a.accounts.SetSecret(ctx, subjectID, newSecret); err != nil {
		return err
	}

	if err := a.LogoutAll(ctx, subjectID); err != nil {
		a.logger.Error("session invalidation failed after password change",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
		a.emit(ctx, EventPasswordChanged, false, subjectID, "", ErrSessionInvalidationFailed, func() map[string]string {
			return map[string]string{"reason": "session_invalidation_failed"}
		})
		return errors.Join(ErrSessionInvalidationFailed, err)
	}

	a.metricInc(MetricPasswordChangeSuccess)
	a.emit(ctx, EventPasswordChanged, true, subjectID, "", nil, nil)
	return nil
}
