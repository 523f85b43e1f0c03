package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lthibault/jitterbug/v2"
	"github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const staleClaimMessage = "processing claim expired before the attempt finished"

// Pool runs ProcessSubmission on a fixed number of workers. A jittered poll loop feeds it from the store
// and Enqueue lets ingestion dispatch immediately.
type Pool struct {
	runner       *Runner
	store        store.Store
	workers      int
	pollInterval time.Duration
	batchSize    int
	staleAfter   time.Duration
	queue        chan uuid.UUID
	log          *zap.SugaredLogger
}

type PoolOption func(*Pool)

func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

func WithBatchSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithStaleAfter(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.staleAfter = d
		}
	}
}

func NewPool(runner *Runner, s store.Store, opts ...PoolOption) *Pool {
	p := &Pool{
		runner:       runner,
		store:        s,
		workers:      4,
		pollInterval: 5 * time.Second,
		batchSize:    50,
		staleAfter:   10 * time.Minute,
		log:          zap.S().Named("pipeline_pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queue = make(chan uuid.UUID, p.batchSize*2)
	return p
}

// Enqueue schedules a submission without blocking. It reports false when the queue is full;
// the poll loop picks the submission up later in that case.
func (p *Pool) Enqueue(id uuid.UUID) bool {
	select {
	case p.queue <- id:
		return true
	default:
		return false
	}
}

// Run blocks until ctx is done.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case id := <-p.queue:
					p.process(ctx, id)
				}
			}
		})
	}

	g.Go(func() error {
		ticker := jitterbug.New(p.pollInterval, &jitterbug.Norm{Stdev: p.pollInterval / 10})
		defer ticker.Stop()

		p.Tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			p.Tick(ctx)
		}
	})

	p.log.Infow("extraction pool started", "workers", p.workers, "poll_interval", p.pollInterval)
	err := g.Wait()
	p.log.Info("extraction pool stopped")
	return err
}

// Tick recovers stale claims, releases failed submissions whose backoff elapsed and dispatches pending ones.
func (p *Pool) Tick(ctx context.Context) {
	now := p.runner.now()

	if n, err := p.recoverStale(ctx, now); err != nil {
		p.log.Errorw("failed to recover stale claims", "error", err)
	} else if n > 0 {
		p.log.Infow("recovered stale claims", "count", n)
	}

	if n, err := p.store.Submission().ReleaseDue(ctx, now, p.runner.policy.MaxAttempts); err != nil {
		p.log.Errorw("failed to release due retries", "error", err)
	} else if n > 0 {
		p.log.Debugw("released due retries", "count", n)
	}

	pending, err := p.store.Submission().List(ctx,
		store.NewSubmissionQueryFilter().ByProcessingStatus(model.ProcessingStatusPending),
		store.NewSubmissionQueryOptions().WithSortOrder(store.SortByCreatedTime).WithLimit(p.batchSize))
	if err != nil {
		p.log.Errorw("failed to list pending submissions", "error", err)
		return
	}
	for _, s := range pending {
		if !p.Enqueue(s.ID) {
			break
		}
	}
}

func (p *Pool) recoverStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := p.store.Submission().List(ctx,
		store.NewSubmissionQueryFilter().StaleSince(now.Add(-p.staleAfter)),
		store.NewSubmissionQueryOptions().WithLimit(p.batchSize))
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, s := range stale {
		next := p.runner.policy.NextAttempt(s.Attempts, now)
		if err := p.store.Submission().FailExtraction(ctx, s.ID, staleClaimMessage, next); err != nil {
			if errors.Is(err, store.ErrNoRowsAffected) {
				continue
			}
			return recovered, err
		}
		entry := model.NewLogEntry(s.ID, model.StageAIExtraction, model.StageStatusFailed, s.Attempts).
			WithError(errors.New(staleClaimMessage)).
			WithMeta(model.MetaStaleClaim, true).
			WithMeta("retryable", next != nil)
		if err := p.store.ProcessingLog().Append(ctx, entry); err != nil {
			return recovered, err
		}
		recovered++
	}
	return recovered, nil
}

func (p *Pool) process(ctx context.Context, id uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("recovered from panic while processing submission", "submission_id", id, "panic", r)
		}
	}()

	outcome, err := p.runner.ProcessSubmission(ctx, id)
	switch {
	case errors.Is(err, ErrNotProcessable), errors.Is(err, ErrNotFound):
		p.log.Debugw("skipping submission", "submission_id", id, "reason", err)
	case err != nil:
		p.log.Errorw("failed to process submission", "submission_id", id, "error", err)
	case outcome.Err != nil && !outcome.Cancelled:
		p.log.Warnw("extraction attempt failed", "submission_id", id, "attempt", outcome.Attempt, "error", outcome.Err)
	}
}
