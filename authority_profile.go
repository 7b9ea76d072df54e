package goSession

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goSession/session"
	"go.uber.org/zap"
)

const maxProfileFieldLength = 256

// GetProfile serves the subject's profile from the cache, loading it from the
// profile store on a miss and writing it back. The write-back is dropped when
// an invalidation for the subject happened after the miss. A failing cache
// degrades to a profile store read; it never fails the call by itself.
func (a *Authority) GetProfile(ctx context.Context, subjectID string) (Profile, error) {
	if subjectID == "" {
		return Profile{}, ErrProfileNotFound
	}

	cached, err := a.store.ReadProfile(ctx, subjectID)
	if err == nil {
		a.metricInc(MetricProfileCacheHit)
		return fromCacheProfile(cached), nil
	}

	cacheReachable := errors.Is(err, session.ErrProfileMiss)
	if cacheReachable {
		a.metricInc(MetricProfileCacheMiss)
	} else {
		a.metricInc(MetricProfileCacheError)
		a.logger.Warn("profile cache read failed, falling back to profile store",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
	}

	// The generation is read before the load; any invalidation that lands
	// after this point voids the write-back below.
	var generation int64
	if cacheReachable {
		generation, err = a.store.ProfileGeneration(ctx, subjectID)
		if err != nil {
			cacheReachable = false
			a.metricInc(MetricProfileCacheError)
			a.logger.Warn("profile cache generation read failed, skipping write-back",
				zap.String("subject_id", subjectID),
				zap.Error(err),
			)
		}
	}

	profile, err := a.profiles.Load(ctx, subjectID)
	if err != nil {
		return Profile{}, err
	}

	if cacheReachable {
		written, err := a.store.CacheProfileAt(ctx, toCacheProfile(profile), a.config.Session.ProfileTTL, generation)
		switch {
		case err != nil:
			a.logger.Warn("profile cache write-back failed",
				zap.String("subject_id", subjectID),
				zap.Error(err),
			)
		case !written:
			a.logger.Debug("profile cache write-back discarded after concurrent invalidation",
				zap.String("subject_id", subjectID),
			)
		}
	}

	return profile, nil
}

// UpdateProfile saves update through the profile store and then drops the
// cached snapshot, so the next GetProfile misses. When the drop fails the
// saved profile is returned together with the error.
func (a *Authority) UpdateProfile(ctx context.Context, subjectID string, update ProfileUpdate) (Profile, error) {
	if subjectID == "" {
		return Profile{}, ErrProfileNotFound
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" || len(name) > maxProfileFieldLength {
			return Profile{}, ErrProfileInvalid
		}
		update.Name = &name
	}
	if update.Avatar != nil && len(*update.Avatar) > maxProfileFieldLength {
		return Profile{}, ErrProfileInvalid
	}

	profile, err := a.profiles.Save(ctx, subjectID, update)
	if err != nil {
		return Profile{}, err
	}

	a.metricInc(MetricProfileUpdated)
	a.emit(ctx, EventProfileUpdated, true, subjectID, "", nil, nil)

	if err := a.InvalidateProfile(ctx, subjectID); err != nil {
		a.logger.Error("profile cache invalidation failed after update",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
		return profile, err
	}

	return profile, nil
}

// InvalidateProfile unconditionally drops the cached profile snapshot.
func (a *Authority) InvalidateProfile(ctx context.Context, subjectID string) error {
	if err := a.store.DropProfile(ctx, subjectID); err != nil {
		return storeError(err)
	}
	return nil
}
