package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eduardopventura/demandflow/internal/demand/repository"
)

// sweepLockKey guards against two processes sweeping the same window.
const sweepLockKey = "demandflow:deadline-sweep:lock"

// SweepService fires the one-time "deadline approaching" notification for
// demands due tomorrow. It runs hourly plus once shortly after startup.
type SweepService struct {
	repos    *repository.Repositories
	notifier *NotificationService
	rdb      *redis.Client
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
}

func NewSweepService(repos *repository.Repositories, notifier *NotificationService, rdb *redis.Client, logger *zap.Logger) *SweepService {
	return &SweepService{
		repos:    repos,
		notifier: notifier,
		rdb:      rdb,
		logger:   logger,
		interval: time.Hour,
		now:      time.Now,
	}
}

// Start runs the sweep loop until ctx is cancelled. The first run happens
// shortly after startup so a restarted process does not wait a full interval.
func (s *SweepService) Start(ctx context.Context) {
	startup := time.NewTimer(30 * time.Second)
	defer startup.Stop()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-startup.C:
			s.runLocked(ctx)
		case <-ticker.C:
			s.runLocked(ctx)
		}
	}
}

// runLocked takes a short distributed lease before sweeping, so overlapping
// deployments do not scan the same window concurrently. The per-demand flag
// claim is what actually enforces at-most-once; the lease only avoids
// wasted work.
func (s *SweepService) runLocked(ctx context.Context) {
	if s.rdb != nil {
		ok, err := s.rdb.SetNX(ctx, sweepLockKey, s.now().Format(time.RFC3339), 10*time.Minute).Result()
		if err != nil {
			s.logger.Warn("sweep lease unavailable, sweeping anyway", zap.Error(err))
		} else if !ok {
			s.logger.Debug("sweep skipped, another instance holds the lease")
			return
		}
	}
	if err := s.RunDeadlineSweep(ctx); err != nil {
		s.logger.Error("deadline sweep failed", zap.Error(err))
	}
}

// RunDeadlineSweep scans non-finalized demands whose deadline is exactly one
// whole day away and notifies each demand's responsible once. The
// deadline_notified flag is claimed atomically before the notification goes
// out, so a racing sweep sends nothing. A failure on one demand never stops
// the scan.
func (s *SweepService) RunDeadlineSweep(ctx context.Context) error {
	now := s.now()
	from := dateOnly(now).AddDate(0, 0, 1)
	to := from.AddDate(0, 0, 1)

	demands, err := s.repos.Demand.ListApproachingDeadline(ctx, from, to)
	if err != nil {
		return err
	}
	s.logger.Info("deadline sweep", zap.Int("candidates", len(demands)))

	for i := range demands {
		d := &demands[i]
		if wholeDaysUntil(now, d.ExpectedAt) != 1 {
			continue
		}
		claimed, err := s.repos.Demand.ClaimDeadlineNotification(ctx, d.ID)
		if err != nil {
			s.logger.Error("deadline claim failed",
				zap.String("demand_id", d.ID), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		s.notifier.Notify(ctx, d.Responsible(), Event{
			Kind:       EventDeadlineApproaching,
			DemandName: d.Name,
			DueDate:    dueDate(d.ExpectedAt),
		})
	}
	return nil
}
