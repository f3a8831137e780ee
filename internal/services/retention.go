package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/taskstream/backend/internal/infrastructure/notify"
)

// RetentionConfig controls how long parked notifications are kept.
type RetentionConfig struct {
	Retention time.Duration
	Interval  time.Duration
}

// RetentionService prunes expired notifications from the inbox on a schedule.
type RetentionService struct {
	inbox  *notify.Inbox
	logger *zap.Logger
	cron   *cron.Cron
	cfg    RetentionConfig
}

func NewRetentionService(inbox *notify.Inbox, logger *zap.Logger, cfg RetentionConfig) *RetentionService {
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rs := &RetentionService{
		inbox:  inbox,
		logger: logger,
		cfg:    cfg,
		cron:   cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = rs.cron.AddFunc(schedule, func() {
		if err := rs.Prune(); err != nil {
			rs.logger.Error("inbox prune failed", zap.Error(err))
		}
	})

	return rs
}

// Start launches the cron scheduler.
func (rs *RetentionService) Start() {
	if rs == nil || rs.cron == nil {
		return
	}
	rs.cron.Start()
	rs.logger.Info("retention service started",
		zap.Duration("retention", rs.cfg.Retention),
		zap.Duration("interval", rs.cfg.Interval))
}

// Stop gracefully stops the scheduler.
func (rs *RetentionService) Stop(ctx context.Context) {
	if rs == nil || rs.cron == nil {
		return
	}
	stopCtx := rs.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	rs.logger.Info("retention service stopped")
}

// Prune removes notifications older than the retention window.
func (rs *RetentionService) Prune() error {
	if rs == nil || rs.inbox == nil {
		return nil
	}
	cutoff := time.Now().Add(-rs.cfg.Retention)
	pruned, err := rs.inbox.PruneOlderThan(cutoff)
	if err != nil {
		return err
	}
	if pruned > 0 {
		rs.logger.Info("pruned expired notifications", zap.Int("count", pruned))
	}
	return nil
}
