package goSession

import "errors"

var (
	// ErrCredentialInvalid is returned by login and register when the identity
	// cannot be confirmed. It never reveals which part of the credential failed.
	ErrCredentialInvalid = errors.New("invalid credentials")
	// ErrTokenInvalid is returned for malformed tokens or tokens with a bad signature.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for well-signed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrSessionRevoked is returned for well-signed, unexpired tokens that the
	// session store no longer honors.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrStoreUnavailable is returned when the session store times out or cannot be reached.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrAccountExists is returned by Register for a duplicate identifier.
	ErrAccountExists = errors.New("account already exists")
	// ErrPasswordPolicy is returned when a new secret does not satisfy the configured policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when the new secret equals the current one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrProfileNotFound is returned when the profile store has no record for a subject.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileInvalid is returned for a profile update with empty or oversized fields.
	ErrProfileInvalid = errors.New("invalid profile update")
	// ErrSessionCreationFailed wraps store failures while persisting a new session.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionInvalidationFailed wraps store failures during logout-all after a password change.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrRateLimited is returned by Login while the identifier or client IP is
	// throttled after repeated failures.
	ErrRateLimited = errors.New("too many failed login attempts")
	// ErrEngineNotReady is returned when a required collaborator was not configured.
	ErrEngineNotReady = errors.New("authority not initialized")
)

// IsAuthFailure reports whether err is one of the four failures that the HTTP
// boundary collapses into a single unauthorized response.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrCredentialInvalid) ||
		errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrSessionRevoked)
}
