package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supplier-intake/intake-pipeline/internal/extraction"
	"github.com/supplier-intake/intake-pipeline/internal/media"
	"github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"github.com/supplier-intake/intake-pipeline/pkg/log"
	"github.com/supplier-intake/intake-pipeline/pkg/metrics"
)

var (
	// ErrNotProcessable is returned when the claim matched nothing: the submission is in flight,
	// already extracted or out of retry budget.
	ErrNotProcessable = errors.New("submission is not processable")
	ErrNotFound       = errors.New("submission not found")
)

const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeTimeout   = "timeout"
	outcomeCancelled = "cancelled"
)

// Outcome describes what one ProcessSubmission attempt did. Extraction errors are carried here, not returned.
type Outcome struct {
	SubmissionID uuid.UUID
	Attempt      int
	Status       model.ProcessingStatus
	Duration     time.Duration
	Err          error
	Cancelled    bool
}

type Runner struct {
	store     store.Store
	extractor extraction.Extractor
	media     media.Store
	policy    RetryPolicy
	timeout   time.Duration
	logger    *log.StructuredLogger
	now       func() time.Time
}

type RunnerOption func(*Runner)

func WithMediaStore(m media.Store) RunnerOption {
	return func(r *Runner) {
		r.media = m
	}
}

func WithRetryPolicy(p RetryPolicy) RunnerOption {
	return func(r *Runner) {
		if p.MaxAttempts > 0 {
			r.policy = p
		}
	}
}

func WithExtractionTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRunner(s store.Store, extractor extraction.Extractor, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:     s,
		extractor: extractor,
		policy:    DefaultRetryPolicy(),
		timeout:   60 * time.Second,
		logger:    log.NewDebugLogger("extraction_runner"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Policy() RetryPolicy {
	return r.policy
}

// ProcessSubmission runs one extraction attempt. It returns an error only when the attempt could not start
// or its result could not be persisted.
func (r *Runner) ProcessSubmission(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	tracer := r.logger.WithContext(ctx).Operation("process_submission").WithUUID("submission_id", id).Build()

	prior, err := r.store.Submission().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracer.Error(err).Log()
		return nil, err
	}

	claimed, err := r.store.Submission().Claim(ctx, id, r.policy.MaxAttempts, r.now())
	if err != nil {
		if errors.Is(err, store.ErrNoRowsAffected) {
			return nil, ErrNotProcessable
		}
		tracer.Error(err).Log()
		return nil, err
	}

	// restore target in case the caller goes away mid attempt
	priorStatus := prior.ProcessingStatus
	if prior.Attempts != claimed.Attempts-1 {
		priorStatus = model.ProcessingStatusFailed
	}

	attempt := claimed.Attempts
	tracer.Step("claimed").WithInt("attempt", attempt).Log()

	start := time.Now()
	if err := r.store.ProcessingLog().Append(ctx, model.NewLogEntry(id, model.StageAIExtraction, model.StageStatusStarted, attempt).
		WithMeta("template_id", claimed.TemplateID)); err != nil {
		tracer.Error(err).Log()
		if restoreErr := r.store.Submission().RestoreClaim(context.WithoutCancel(ctx), id, priorStatus, attempt-1); restoreErr != nil {
			tracer.Error(restoreErr).Log()
		}
		return nil, err
	}

	result, template, extractErr := r.extract(ctx, claimed)
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		// parent cancellation, not the extraction timeout
		metrics.ObserveExtraction(outcomeCancelled, elapsed)
		if err := r.restore(ctx, claimed, priorStatus, attempt, start, ctx.Err()); err != nil {
			tracer.Error(err).Log()
			return nil, err
		}
		tracer.Step("cancelled").WithInt("attempt", attempt).Log()
		return &Outcome{SubmissionID: id, Attempt: attempt, Status: priorStatus, Duration: elapsed, Err: ctx.Err(), Cancelled: true}, nil
	}

	if extractErr != nil {
		outcome := outcomeFailed
		if errors.Is(extractErr, context.DeadlineExceeded) {
			outcome = outcomeTimeout
			extractErr = fmt.Errorf("extraction timed out after %s: %w", r.timeout, extractErr)
		}
		metrics.ObserveExtraction(outcome, elapsed)
		if err := r.fail(ctx, claimed, attempt, elapsed, extractErr); err != nil {
			tracer.Error(err).Log()
			return nil, err
		}
		tracer.Step("extraction_failed").WithInt("attempt", attempt).WithString("error", extractErr.Error()).Log()
		return &Outcome{SubmissionID: id, Attempt: attempt, Status: model.ProcessingStatusFailed, Duration: elapsed, Err: extractErr}, nil
	}

	normalized := extraction.Normalize(result, template.ExpectedFields)
	if err := r.complete(ctx, claimed, attempt, elapsed, normalized); err != nil {
		tracer.Error(err).Log()
		return nil, err
	}
	metrics.ObserveExtraction(outcomeCompleted, elapsed)

	tracer.Success().WithInt("attempt", attempt).WithInt("fields", len(normalized.Data)).Log()
	return &Outcome{SubmissionID: id, Attempt: attempt, Status: model.ProcessingStatusCompleted, Duration: elapsed}, nil
}

// Retry moves a failed submission back to pending with a fresh attempt budget.
func (r *Runner) Retry(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	if err := r.store.Submission().Release(ctx, id, true); err != nil {
		if errors.Is(err, store.ErrNoRowsAffected) {
			if _, getErr := r.store.Submission().Get(ctx, id); errors.Is(getErr, store.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, ErrNotProcessable
		}
		return nil, err
	}
	return r.store.Submission().Get(ctx, id)
}

func (r *Runner) extract(ctx context.Context, s *model.Submission) (*extraction.Result, *model.Template, error) {
	template, err := r.store.Template().Get(ctx, s.TemplateID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading template %q: %w", s.TemplateID, err)
	}

	req := extraction.Request{
		SubmissionID:    s.ID,
		ContentType:     s.ContentType,
		Content:         s.RawContent,
		TemplateID:      template.ID,
		TemplateVersion: template.Version,
		Template:        template.Config(),
	}
	if s.MediaLocator != nil {
		req.MediaLocator = *s.MediaLocator
		if r.media != nil {
			data, err := r.media.Fetch(ctx, *s.MediaLocator)
			if err != nil {
				return nil, template, fmt.Errorf("fetching media: %w", err)
			}
			req.Media = data
		}
	}

	extractCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.extractor.Extract(extractCtx, req)
	if err == nil && extractCtx.Err() != nil {
		err = extractCtx.Err()
	}
	if err != nil {
		return nil, template, err
	}
	return result, template, nil
}

func (r *Runner) complete(ctx context.Context, s *model.Submission, attempt int, elapsed time.Duration, n extraction.Normalized) error {
	err := r.store.Submission().CompleteExtraction(ctx, s.ID, store.ExtractionUpdate{
		Data:        n.Data,
		Confidence:  n.Confidence,
		FieldErrors: n.FieldErrors,
		Category:    n.Category,
	})
	if err != nil {
		return err
	}

	entry := model.NewLogEntry(s.ID, model.StageAIExtraction, model.StageStatusCompleted, attempt).
		WithDuration(elapsed).
		WithMeta("field_count", len(n.Data)).
		WithMeta("field_errors", len(n.FieldErrors))
	if n.Confidence != nil {
		entry = entry.WithMeta("confidence", *n.Confidence)
	}
	return r.store.ProcessingLog().Append(ctx, entry)
}

func (r *Runner) fail(ctx context.Context, s *model.Submission, attempt int, elapsed time.Duration, cause error) error {
	next := r.policy.NextAttempt(attempt, r.now())
	if err := r.store.Submission().FailExtraction(ctx, s.ID, cause.Error(), next); err != nil {
		return err
	}

	entry := model.NewLogEntry(s.ID, model.StageAIExtraction, model.StageStatusFailed, attempt).
		WithDuration(elapsed).
		WithError(cause).
		WithMeta("retryable", next != nil)
	return r.store.ProcessingLog().Append(ctx, entry)
}

// restore puts the claim back as it was before the attempt. It runs detached from ctx, which may be done.
func (r *Runner) restore(ctx context.Context, s *model.Submission, status model.ProcessingStatus, attempt int, start time.Time, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if err := r.store.Submission().RestoreClaim(ctx, s.ID, status, attempt-1); err != nil {
		return err
	}
	entry := model.NewLogEntry(s.ID, model.StageAIExtraction, model.StageStatusFailed, attempt).
		WithDuration(time.Since(start)).
		WithError(fmt.Errorf("attempt cancelled: %w", cause)).
		WithMeta(model.MetaCancelled, true)
	return r.store.ProcessingLog().Append(ctx, entry)
}
