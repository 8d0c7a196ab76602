package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the daily maintenance cycle: one refresh pass shortly
// after midnight followed by the day's notification digests. A run at
// startup covers days the server was down; the retention pass catches up on
// its own from the recorded last refresh date.
type Scheduler struct {
	cron     *cron.Cron
	refresh  *RefreshService
	notify   *NotificationService
	location *time.Location
}

func NewScheduler(refresh *RefreshService, notify *NotificationService, location *time.Location) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(location)),
		refresh:  refresh,
		notify:   notify,
		location: location,
	}
}

func (scheduler *Scheduler) Start() error {
	scheduler.runOnce()

	if _, err := scheduler.cron.AddFunc("5 0 * * *", scheduler.runOnce); err != nil {
		return err
	}
	scheduler.cron.Start()
	slog.Info("scheduler started", "timezone", scheduler.location.String())
	return nil
}

func (scheduler *Scheduler) Stop() {
	<-scheduler.cron.Stop().Done()
}

func (scheduler *Scheduler) runOnce() {
	ctx := context.Background()
	now := time.Now().In(scheduler.location)

	if _, err := scheduler.refresh.Run(ctx, now); err != nil {
		slog.Error("daily refresh", "error", err)
	}
	if err := scheduler.notify.SendDaily(ctx, now); err != nil {
		slog.Error("daily notifications", "error", err)
	}
}
