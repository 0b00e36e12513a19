package service

import (
	"context"
	"time"

	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/ports"

	"github.com/robfig/cron/v3"
)

const (
	notificationRetention = 90 * 24 * time.Hour
	pushTokenMaxAge       = 60 * 24 * time.Hour
)

// Jobs runs the admin-side housekeeping schedule: pruning old notifications
// and deactivating push tokens that have gone stale.
type Jobs struct {
	logger *logger.Logger
	uow    ports.UnitOfWork
	notes  ports.NotificationRepository
	tokens ports.PushTokenRepository
	cron   *cron.Cron
}

// NewJobs constructs the scheduler. Call Start to begin, Stop on shutdown.
func NewJobs(log *logger.Logger, uow ports.UnitOfWork, notes ports.NotificationRepository, tokens ports.PushTokenRepository) *Jobs {
	return &Jobs{
		logger: log,
		uow:    uow,
		notes:  notes,
		tokens: tokens,
		cron:   cron.New(),
	}
}

// Start registers the schedule and launches the cron loop.
func (j *Jobs) Start(ctx context.Context) error {
	if _, err := j.cron.AddFunc("0 3 * * *", func() { j.pruneNotifications(ctx) }); err != nil {
		return err
	}
	if _, err := j.cron.AddFunc("30 3 * * *", func() { j.deactivateStaleTokens(ctx) }); err != nil {
		return err
	}

	j.cron.Start()
	j.logger.Info(ctx, "jobs_started", "Housekeeping schedule started", nil)
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (j *Jobs) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Jobs) pruneNotifications(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-notificationRetention)

	var pruned int
	err := j.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		pruned, err = j.notes.PruneOlderThan(ctx, cutoff)
		return err
	})
	if err != nil {
		j.logger.Error(ctx, "notifications_prune_failed", "Failed to prune old notifications", err, nil)
		return
	}

	j.logger.Info(ctx, "notifications_pruned", "Old notifications pruned", map[string]any{
		"pruned": pruned, "cutoff": cutoff,
	})
}

func (j *Jobs) deactivateStaleTokens(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-pushTokenMaxAge)

	var deactivated int
	err := j.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		deactivated, err = j.tokens.DeactivateStaleBefore(ctx, cutoff)
		return err
	})
	if err != nil {
		j.logger.Error(ctx, "push_tokens_cleanup_failed", "Failed to deactivate stale push tokens", err, nil)
		return
	}

	j.logger.Info(ctx, "push_tokens_deactivated", "Stale push tokens deactivated", map[string]any{
		"deactivated": deactivated, "cutoff": cutoff,
	})
}
