package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// sleepScanLimit bounds how many recent turns a consolidation pass reads.
const sleepScanLimit = 1000

// SleepConsolidator condenses the recent conversation into a SUMMARY turn at
// most once per calendar day, the way a night's sleep consolidates memory.
type SleepConsolidator struct {
	repo     Repository
	minTurns int
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	lastDay string

	stopMu sync.Mutex
	stopCh chan struct{}
}

// NewSleepConsolidator creates a consolidator that needs at least minTurns
// stored turns (default 20). If logger is nil, the default slog logger is used.
func NewSleepConsolidator(repo Repository, minTurns int, logger *slog.Logger) *SleepConsolidator {
	if minTurns <= 0 {
		minTurns = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SleepConsolidator{repo: repo, minTurns: minTurns, logger: logger, now: time.Now}
}

// TryConsolidate runs one consolidation pass if none has run today. A day
// with too few turns is still marked as done. It reports whether a SUMMARY
// turn was written.
func (s *SleepConsolidator) TryConsolidate(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := s.now().Format(time.DateOnly)
	if day == s.lastDay {
		return false, nil
	}

	turns, err := s.repo.ListRecentTurns(ctx, 0, sleepScanLimit)
	if err != nil {
		return false, fmt.Errorf("sleep: list turns: %w", err)
	}
	if len(turns) < s.minTurns {
		s.lastDay = day
		return false, nil
	}

	summary := Condense(joinContents(turns))
	if summary == "" {
		return false, nil
	}

	session, err := s.repo.LatestSession(ctx)
	if err != nil {
		return false, fmt.Errorf("sleep: latest session: %w", err)
	}
	if session == nil {
		return false, nil
	}

	now := s.now()
	if _, err := s.repo.InsertTurn(ctx, Turn{
		SessionID: session.ID,
		Role:      RoleSummary,
		Content:   summary,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return false, fmt.Errorf("sleep: insert summary: %w", err)
	}

	s.lastDay = day
	s.logger.Info("sleep consolidation complete",
		"session_id", session.ID,
		"turns", len(turns),
		"day", day,
	)
	return true, nil
}

// Run calls TryConsolidate every interval until ctx is cancelled or Stop is
// called. Failures are logged and retried on the next tick.
func (s *SleepConsolidator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	s.stopMu.Lock()
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.stopMu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if _, err := s.TryConsolidate(ctx); err != nil {
				s.logger.Warn("sleep consolidation failed", "err", err)
			}
		}
	}
}

// Stop signals Run to return. Safe to call multiple times.
func (s *SleepConsolidator) Stop() {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	if s.stopCh != nil {
		select {
		case <-s.stopCh:
		default:
			close(s.stopCh)
		}
	}
}
