package oauth

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/flowgate/observe"
	"github.com/jonwraymond/flowgate/resilience"
)

// maxConcurrentRefreshes bounds sweep-initiated refresh fan-out.
const maxConcurrentRefreshes = 4

// Start launches the background sweep. Idempotent.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		go m.run()
	})
}

// Stop tears the sweep down and waits for it to exit. Idempotent; safe
// to call even if Start never ran.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	m.startOnce.Do(func() {
		close(m.done)
	})
	<-m.done
}

func (m *Manager) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep(context.Background())
		}
	}
}

// sweep is one maintenance pass: expired sessions are dropped, expired
// tokens deleted, tokens close to expiry announced, and auto-refresh
// candidates refreshed.
func (m *Manager) sweep(ctx context.Context) {
	now := m.now()

	// Expired sessions go unconditionally; ActiveSessions deletes them
	// as it scans.
	m.ActiveSessions()

	type refreshCandidate struct {
		provider string
		userID   string
	}
	var candidates []refreshCandidate

	m.tokens.Range(func(key string, token *Token) bool {
		provider, userID := splitTokenKey(key)

		if !token.ExpiresAt.IsZero() {
			if now.After(token.ExpiresAt) {
				m.tokens.Delete(key)
				return true
			}
			if token.ExpiresAt.Sub(now) <= expiringSoonWindow {
				m.emit(Event{
					Type:     EventTokenExpiring,
					Provider: provider,
					UserID:   userID,
					Details:  map[string]any{"expires_at": token.ExpiresAt.UTC().Format(time.RFC3339)},
				})
			}
		}

		cfg, ok := m.Provider(provider)
		if !ok || !cfg.AutoRefresh || token.RefreshToken == "" {
			return true
		}
		if token.ValidAt(now, cfg.refreshBuffer()) {
			return true
		}
		candidates = append(candidates, refreshCandidate{provider: provider, userID: userID})
		return true
	})

	if len(candidates) == 0 {
		return
	}

	// Each refresh is isolated: bounded on its own and unable to stall
	// the sweep's coverage of the remaining tokens.
	g := &errgroup.Group{}
	g.SetLimit(maxConcurrentRefreshes)
	for _, c := range candidates {
		c := c
		g.Go(func() error {
			err := resilience.WithTimeout(ctx, m.timeout, func(ctx context.Context) error {
				if m.RefreshTokens(ctx, c.provider, c.userID) == nil {
					m.logger.Warn(ctx, "sweep refresh attempt failed",
						observe.F("provider", c.provider),
						observe.F("user_id", c.userID),
					)
				}
				return nil
			})
			if err != nil {
				m.logger.Warn(ctx, "sweep refresh attempt timed out",
					observe.F("provider", c.provider),
					observe.F("user_id", c.userID),
					observe.F("error", err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// SweepNow runs one synchronous sweep pass. Intended for tests and
// operational tooling; the periodic sweep calls the same path.
func (m *Manager) SweepNow(ctx context.Context) {
	m.sweep(ctx)
}
