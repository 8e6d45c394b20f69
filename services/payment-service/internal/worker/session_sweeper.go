package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/payment-service/internal/payment"
)

// SessionSweeper deletes pending checkout sessions that outlived the session TTL, so abandoned
// widgets do not pile up between checkout calls for the same order.
type SessionSweeper struct {
	sessions payment.SessionStore
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewSessionSweeper(sessions payment.SessionStore, ttl, interval time.Duration, logger *slog.Logger) *SessionSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionSweeper{sessions: sessions, ttl: ttl, interval: interval, logger: logger.With("worker", "session_sweeper"), now: time.Now}
}

func (s *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// Sweep returns the number of deleted sessions.
func (s *SessionSweeper) Sweep(ctx context.Context) (int, error) {
	pending, err := s.sessions.GetSessionsBy(ctx, payment.SessionFilter{Status: payment.SessionPending})
	if err != nil {
		return 0, fmt.Errorf("list pending sessions: %w", err)
	}
	now := s.now()
	deleted := 0
	for _, cs := range pending {
		if payment.IsSessionValid(cs, s.ttl, now) {
			continue
		}
		if err := s.sessions.DeleteSession(ctx, cs.ID); err != nil {
			return deleted, fmt.Errorf("delete session %s: %w", cs.ID, err)
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.Info("expired checkout sessions removed", "count", deleted)
	}
	return deleted, nil
}
