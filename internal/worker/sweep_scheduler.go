// Package worker runs the periodic sweep on a gocron scheduler.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/service"
)

// Sweeper is the operation the scheduler runs on every tick.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// SweepScheduler runs Sweep every interval. A run that is still busy when
// the next tick fires is rescheduled rather than overlapped.
type SweepScheduler struct {
	sched    gocron.Scheduler
	sweeper  Sweeper
	logger   *slog.Logger
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewSweepScheduler registers the sweep job. The first run happens as soon as Start is called.
func NewSweepScheduler(sweeper Sweeper, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) (*SweepScheduler, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	w := &SweepScheduler{sweeper: sweeper, logger: logger, interval: interval}
	w.ctx, w.cancel = context.WithCancel(context.Background())

	sched, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(w.run),
		gocron.WithName("reservation-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithEventListeners(
			gocron.AfterJobRunsWithPanic(func(_ uuid.UUID, name string, recovered any) {
				logger.Error("sweep job panicked", slog.String("job", name), slog.Any("panic", recovered))
			}),
		),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("register sweep job: %w", err)
	}
	w.sched = sched
	return w, nil
}

// Start begins scheduling.
func (w *SweepScheduler) Start() {
	w.logger.Info("sweep scheduler started", slog.Duration("interval", w.interval))
	w.sched.Start()
}

// Stop cancels a running sweep and waits for the scheduler to drain.
func (w *SweepScheduler) Stop() error {
	w.cancel()
	err := w.sched.Shutdown()
	w.logger.Info("sweep scheduler stopped")
	return err
}

func (w *SweepScheduler) run() {
	res, err := w.sweeper.Sweep(w.ctx)
	if err != nil {
		w.logger.Error("sweep failed", slog.String("error", err.Error()), slog.Int("failures", res.Failures))
		return
	}
	w.logger.Debug("sweep ran",
		slog.Int("expired", res.Expired+res.CheckedInExpired),
		slog.Int("no_shows", res.NoShows),
		slog.Int("notices", res.Reminders+res.PickupNotices+res.OverdueReminders),
	)
}
