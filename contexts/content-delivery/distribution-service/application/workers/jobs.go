package workers

import (
	"context"
	"log/slog"

	application "quill/contexts/content-delivery/distribution-service/application"
	"quill/contexts/content-delivery/distribution-service/application/commands"
)

// DistributionTickJob is the minute poll that fans due rules out to detached
// distribution passes.
type DistributionTickJob struct {
	Commands commands.UseCase
	Logger   *slog.Logger
}

func (j DistributionTickJob) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	if err := j.Commands.ScheduleDistributions(ctx); err != nil {
		logger.Error("distribution tick failed",
			"event", "distribution_tick_failed",
			"module", "content-delivery/distribution-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	return nil
}

// RetrySweepJob re-attempts failed records under the retry cap.
type RetrySweepJob struct {
	Commands   commands.UseCase
	MaxRetries int
	Logger     *slog.Logger
}

func (j RetrySweepJob) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	maxRetries := j.MaxRetries
	if maxRetries <= 0 {
		maxRetries = commands.DefaultMaxRetries
	}
	result, err := j.Commands.RetryFailedRecords(ctx, maxRetries)
	if err != nil {
		logger.Error("retry sweep failed",
			"event", "distribution_retry_sweep_failed",
			"module", "content-delivery/distribution-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	logger.Debug("retry sweep cycle finished",
		"event", "distribution_retry_sweep_cycle_finished",
		"module", "content-delivery/distribution-service",
		"layer", "worker",
		"processed", result.Processed,
		"successful", result.Successful,
	)
	return nil
}

// CleanupJob purges terminal records older than the retention window.
type CleanupJob struct {
	Commands      commands.UseCase
	RetentionDays int
	Logger        *slog.Logger
}

func (j CleanupJob) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	days := j.RetentionDays
	if days <= 0 {
		days = commands.DefaultCleanupRetention
	}
	deleted, err := j.Commands.CleanupOldRecords(ctx, days)
	if err != nil {
		logger.Error("cleanup job failed",
			"event", "distribution_cleanup_job_failed",
			"module", "content-delivery/distribution-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	logger.Debug("cleanup job cycle finished",
		"event", "distribution_cleanup_cycle_finished",
		"module", "content-delivery/distribution-service",
		"layer", "worker",
		"deleted", deleted,
	)
	return nil
}
