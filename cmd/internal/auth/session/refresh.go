package session

import (
	"context"
	"errors"
	"time"
)

// RefreshSession revalidates the session with the service and merges newer
// profile fields. When the secret is about to expire it is rotated instead.
// It reports false when there is no session, when offline, and on any
// failure; it never clears the session. Concurrent calls share one request,
// which runs detached from any single caller's cancellation and is bounded by
// RefreshTimeout; a caller whose ctx ends first gets false.
func (m *Manager) RefreshSession(ctx context.Context) bool {
	if m.checkReady() != nil {
		return false
	}
	ch := m.refresh.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.refreshTimeout())
		defer cancel()
		return m.refreshOnce(rctx), nil
	})
	select {
	case r := <-ch:
		return r.Val.(bool)
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) refreshTimeout() time.Duration {
	if m.cfg.RefreshTimeout <= 0 {
		return DefaultConfig().RefreshTimeout
	}
	return m.cfg.RefreshTimeout
}

func (m *Manager) refreshOnce(ctx context.Context) bool {
	m.mu.Lock()
	cur := m.current
	online := m.online
	epoch := m.epoch
	m.mu.Unlock()

	if cur == nil {
		m.metrics.refresh.WithLabelValues("no_session").Inc()
		return false
	}
	if !online {
		m.metrics.refresh.WithLabelValues("offline").Inc()
		return false
	}

	next := *cur
	changed := false
	result := "ok"

	if m.rotationDue(next) {
		tok, err := m.remote.RefreshToken(ctx, next.Secret)
		if err != nil {
			m.refreshFailed(err)
			return false
		}
		next.Secret = tok.AccessToken
		next.ExpiresAt, _ = secretExpiry(tok.AccessToken)
		changed = next.Secret != cur.Secret
		result = "rotated"
	} else {
		profile, err := m.remote.GetProfile(ctx, next.Secret)
		if err != nil {
			m.refreshFailed(err)
			return false
		}
		next, changed = merge(next, profile)
	}

	if changed {
		m.writeMu.Lock()
		defer m.writeMu.Unlock()

		m.mu.Lock()
		stale := m.epoch != epoch
		m.mu.Unlock()
		if stale {
			m.metrics.refresh.WithLabelValues("stale").Inc()
			return false
		}
		if err := m.store.Save(ctx, next.record()); err != nil {
			m.metrics.refresh.WithLabelValues("save_failed").Inc()
			m.log.Warn("session.refresh.save_failed", "err", err)
			return false
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		m.metrics.refresh.WithLabelValues("stale").Inc()
		return false
	}
	m.current = &next
	m.setStateLocked(m.authenticatedStateLocked())
	m.metrics.refresh.WithLabelValues(result).Inc()
	m.log.Debug("session.refresh.ok", "session", next, "result", result, "changed", changed)
	return true
}

func (m *Manager) rotationDue(s Session) bool {
	if m.cfg.RotateBefore <= 0 || s.ExpiresAt.IsZero() {
		return false
	}
	return s.ExpiresAt.Sub(m.now()) <= m.cfg.RotateBefore
}

func (m *Manager) refreshFailed(err error) {
	result := "failed"
	if errors.Is(err, ErrUnauthorized) {
		result = "unauthorized"
	}
	m.metrics.refresh.WithLabelValues(result).Inc()
	m.log.Warn("session.refresh.failed", "err", err)
}
