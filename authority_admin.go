package goSession

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Stats returns point-in-time session store counts.
//
// This is an admin-only O(n) operation and must not be used in request hot paths.
func (a *Authority) Stats(ctx context.Context) (Stats, error) {
	s, err := a.store.Stats(ctx)
	if err != nil {
		return Stats{}, storeError(err)
	}
	return Stats{
		ActiveSessions:    s.ActiveSessions,
		CachedProfiles:    s.CachedProfiles,
		BlacklistedTokens: s.BlacklistedTokens,
	}, nil
}

// Sweep removes session records whose expiry has passed and returns how many
// were removed.
func (a *Authority) Sweep(ctx context.Context) (int, error) {
	a.metricInc(MetricSweepRun)

	removed, err := a.store.SweepExpired(ctx)
	if removed > 0 && a.metrics != nil {
		a.metrics.Add(MetricSweepRemoved, uint64(removed))
	}
	if err != nil {
		a.metricInc(MetricSweepFailure)
		a.logger.Error("session sweep failed",
			zap.Int("removed", removed),
			zap.Error(err),
		)
		return removed, storeError(err)
	}

	a.logger.Debug("session sweep finished", zap.Int("removed", removed))
	return removed, nil
}

// Health pings the session store.
func (a *Authority) Health(ctx context.Context) HealthStatus {
	if a == nil || a.store == nil {
		return HealthStatus{}
	}

	latency, err := a.store.Ping(ctx)
	return HealthStatus{
		RedisAvailable: err == nil,
		RedisLatency:   latency,
	}
}

// ListSessions returns the live sessions of subjectID, oldest first.
func (a *Authority) ListSessions(ctx context.Context, subjectID string) ([]SessionInfo, error) {
	if subjectID == "" {
		return nil, ErrProfileNotFound
	}

	records, err := a.store.ActiveSessions(ctx, subjectID)
	if err != nil {
		return nil, storeError(err)
	}

	out := make([]SessionInfo, 0, len(records))
	for _, rec := range records {
		out = append(out, SessionInfo{
			SessionID: rec.SessionID,
			CreatedAt: time.Unix(rec.CreatedAt, 0).UTC(),
			ExpiresAt: time.Unix(rec.ExpiresAt, 0).UTC(),
		})
	}
	return out, nil
}

// StartSweeper runs Sweep every interval in the background until ctx is done
// or Close is called. A zero interval falls back to Sweeper.Interval; when
// both are zero nothing is started. Sweep failures are logged only.
func (a *Authority) StartSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = a.config.Sweeper.Interval
	}
	if interval <= 0 {
		return nil
	}

	a.sweepMu.Lock()
	defer a.sweepMu.Unlock()
	if a.sweepStop != nil {
		return errors.New("sweeper already running")
	}
	stop := make(chan struct{})
	a.sweepStop = stop

	a.sweepWG.Add(1)
	go func() {
		defer a.sweepWG.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				_, _ = a.Sweep(ctx)
			}
		}
	}()

	return nil
}

// Close stops the sweeper and drains pending notifications.
func (a *Authority) Close() {
	if a == nil {
		return
	}
	a.closeOnce.Do(func() {
		a.sweepMu.Lock()
		if a.sweepStop != nil {
			close(a.sweepStop)
		}
		a.sweepMu.Unlock()
		a.sweepWG.Wait()

		a.notify.Close()
	})
}
