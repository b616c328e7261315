// Package scheduler runs the periodic table reloads (code catalog, roster)
// on a gocron scheduler.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Job reloads one table and reports how many rows it loaded.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

type Scheduler struct {
	sched gocron.Scheduler
}

// Start runs every job now and then every Interval until Shutdown.
// Overlapping runs of one job are skipped. A failed run is logged and the
// previously loaded table stays in place.
func Start(ctx context.Context, logger *zap.SugaredLogger, jobs ...Job) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if j.Interval <= 0 || j.Run == nil {
			_ = sched.Shutdown()
			return nil, errors.New("scheduler: job " + j.Name + " needs a positive interval and a run func")
		}
		_, err = sched.NewJob(
			gocron.DurationJob(j.Interval),
			gocron.NewTask(func() {
				n, err := j.Run(ctx)
				if err != nil {
					logger.Warnw("scheduled reload failed", "job", j.Name, "err", err)
					return
				}
				logger.Debugw("scheduled reload", "job", j.Name, "rows", n)
			}),
			gocron.WithName(j.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, err
		}
	}
	sched.Start()
	return &Scheduler{sched: sched}, nil
}

func (s *Scheduler) Shutdown() error { return s.sched.Shutdown() }
