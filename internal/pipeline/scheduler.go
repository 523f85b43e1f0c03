package pipeline

import (
	"context"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is a periodic background task, such as template analysis or supplier metric recomputation.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs jobs on jittered tickers, off the ingestion and review paths.
type Scheduler struct {
	jobs []Job
	log  *zap.SugaredLogger
}

func NewScheduler(jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs, log: zap.S().Named("scheduler")}
}

// Run blocks until ctx is done. A failing job is logged and retried on its next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			s.log.Warnw("job disabled", "job", job.Name)
			continue
		}
		g.Go(func() error {
			ticker := jitterbug.New(job.Interval, &jitterbug.Norm{Stdev: job.Interval / 20})
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
				s.runOnce(ctx, job)
			}
		})
	}
	return g.Wait()
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.log.Errorw("scheduled job failed", "job", job.Name, "error", err)
		return
	}
	s.log.Debugw("scheduled job finished", "job", job.Name, "duration", time.Since(start))
}
