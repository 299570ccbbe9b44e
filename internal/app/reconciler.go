/**
 * @description
 * Cron wrapper around the reconciliation pass. The reconciler exists for
 * environments where Stripe's webhooks cannot reach the service; production
 * deployments never start it.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Reconciler schedules periodic ReconcilePending passes. It is constructed
// with its dependencies and started and stopped by the process lifecycle;
// building an OnboardingService never starts it implicitly.
type Reconciler struct {
	cron     *cron.Cron
	service  *OnboardingService
	logger   *slog.Logger
	schedule string
}

// NewReconciler creates a reconciler running on the given cron schedule
// (e.g. "@every 30s"). SkipIfStillRunning guarantees a pass never overlaps
// an earlier pass still in flight.
func NewReconciler(service *OnboardingService, logger *slog.Logger, schedule string) *Reconciler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	return &Reconciler{
		cron:     c,
		service:  service,
		logger:   logger,
		schedule: schedule,
	}
}

// Start registers the reconcile job and starts the cron scheduler.
func (r *Reconciler) Start() {
	if _, err := r.cron.AddFunc(r.schedule, r.runOnce); err != nil {
		r.logger.Error("failed to schedule reconcile job", "schedule", r.schedule, "error", err)
		return
	}
	r.logger.Info("scheduled payment account reconcile job", "schedule", r.schedule)
	r.cron.Start()
}

// Stop gracefully stops the cron scheduler. The returned context is done
// once any in-flight pass has finished.
func (r *Reconciler) Stop() context.Context {
	return r.cron.Stop()
}

func (r *Reconciler) runOnce() {
	ctx := context.Background()

	refreshed, err := r.service.ReconcilePending(ctx)
	if err != nil {
		r.logger.Error("reconcile pass failed", "error", err)
		return
	}
	if refreshed > 0 {
		r.logger.Info("reconcile pass refreshed accounts", "count", refreshed)
	}
}
