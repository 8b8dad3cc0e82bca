package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// Reconciler periodically reloads state from the store. It covers changes
// whose notification was missed, such as writes made while a watch was down
// or settings edits, which are not broadcast.
type Reconciler struct {
	scheduler gocron.Scheduler
	interval  time.Duration
}

// NewReconciler schedules reload every interval. It does nothing until Start.
func NewReconciler(interval time.Duration, reload func(ctx context.Context), opts ...gocron.SchedulerOption) (*Reconciler, error) {
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			reload(ctx)
		}),
		gocron.WithName("reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create reconcile job: %w", err)
	}

	return &Reconciler{scheduler: s, interval: interval}, nil
}

func (r *Reconciler) Start() {
	log.Debug().Dur("interval", r.interval).Msg("starting reconciler")
	r.scheduler.Start()
}

// Stop waits for a running reload to return.
func (r *Reconciler) Stop() error {
	if err := r.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop reconciler: %w", err)
	}
	return nil
}
