package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/supplier-intake/intake-pipeline/internal/analysis"
	"github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"github.com/supplier-intake/intake-pipeline/pkg/log"
	"github.com/supplier-intake/intake-pipeline/pkg/metrics"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

const maxParallelAnalyses = 4

type AnalysisService struct {
	store         store.Store
	engine        *analysis.Engine
	defaultWindow time.Duration
	snapshotTTL   time.Duration
	now           func() time.Time
	logger        *log.StructuredLogger
}

type AnalysisOption func(*AnalysisService)

func WithEngine(e *analysis.Engine) AnalysisOption {
	return func(a *AnalysisService) {
		if e != nil {
			a.engine = e
		}
	}
}

func WithDefaultWindow(d time.Duration) AnalysisOption {
	return func(a *AnalysisService) {
		if d > 0 {
			a.defaultWindow = d
		}
	}
}

// WithSnapshotTTL sets how long a stored analysis is served before it is recomputed. Zero disables reuse.
func WithSnapshotTTL(d time.Duration) AnalysisOption {
	return func(a *AnalysisService) {
		if d >= 0 {
			a.snapshotTTL = d
		}
	}
}

func WithAnalysisClock(now func() time.Time) AnalysisOption {
	return func(a *AnalysisService) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAnalysisService(s store.Store, opts ...AnalysisOption) *AnalysisService {
	a := &AnalysisService{
		store:         s,
		engine:        analysis.NewEngine(),
		defaultWindow: 30 * 24 * time.Hour,
		snapshotTTL:   15 * time.Minute,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        log.NewDebugLogger("analysis_service"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *AnalysisService) DefaultWindow() time.Duration {
	return a.defaultWindow
}

// Analyze recomputes the analysis of one template over the window and stores it as the latest snapshot.
func (a *AnalysisService) Analyze(ctx context.Context, templateID string, window time.Duration) (*analysis.Result, error) {
	window = a.window(window)
	tracer := a.logger.WithContext(ctx).Operation("analyze_template").
		WithString("template_id", templateID).
		WithString("window", window.String()).
		Build()

	template, err := a.store.Template().Get(ctx, templateID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrTemplateNotFound(templateID)
		}
		tracer.Error(err).Log()
		return nil, err
	}

	result, err := a.analyze(ctx, *template, window)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	tracer.Success().
		WithInt("total", result.Total).
		WithFloat("success_rate", result.SuccessRate).
		WithString("health", string(result.Health)).
		WithInt("proposals", len(result.Proposals)).
		Log()
	return result, nil
}

// AnalyzeAll recomputes every template in parallel and ranks the ones needing attention.
func (a *AnalysisService) AnalyzeAll(ctx context.Context, window time.Duration) (*analysis.Overview, error) {
	window = a.window(window)
	tracer := a.logger.WithContext(ctx).Operation("analyze_all_templates").WithString("window", window.String()).Build()

	templates, err := a.store.Template().List(ctx, false)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	var (
		mu      sync.Mutex
		results = make([]analysis.Result, 0, len(templates))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelAnalyses)
	for _, t := range templates {
		g.Go(func() error {
			r, err := a.analyze(gctx, t, window)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, *r)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	overview := analysis.NewOverview(results, a.now())
	tracer.Success().WithInt("templates", len(results)).WithInt("needs_attention", len(overview.NeedsAttention)).Log()
	return &overview, nil
}

// GetTemplateAnalysis serves the stored snapshot while it is fresh and was computed over the same window.
func (a *AnalysisService) GetTemplateAnalysis(ctx context.Context, templateID string, window time.Duration) (*analysis.Result, error) {
	window = a.window(window)
	if cached, ok := a.fresh(ctx, templateID, window); ok {
		return cached, nil
	}
	return a.Analyze(ctx, templateID, window)
}

// GetAllTemplateAnalysis is GetTemplateAnalysis for every template, with the attention ranking.
func (a *AnalysisService) GetAllTemplateAnalysis(ctx context.Context, window time.Duration) (*analysis.Overview, error) {
	window = a.window(window)
	templates, err := a.store.Template().List(ctx, false)
	if err != nil {
		return nil, err
	}

	results := make([]analysis.Result, 0, len(templates))
	for _, t := range templates {
		cached, ok := a.fresh(ctx, t.ID, window)
		if !ok {
			return a.AnalyzeAll(ctx, window)
		}
		results = append(results, *cached)
	}
	overview := analysis.NewOverview(results, a.now())
	return &overview, nil
}

// ApplyImprovement applies an accepted proposal to the template configuration and records the revision
// with the configuration before and after. Past submissions and feedback are left untouched.
func (a *AnalysisService) ApplyImprovement(ctx context.Context, templateID string, proposal analysis.Proposal, appliedBy string) (*model.Template, error) {
	tracer := a.logger.WithContext(ctx).Operation("apply_improvement").
		WithString("template_id", templateID).
		WithString("proposal_type", string(proposal.Type)).
		WithString("field", proposal.Field).
		Build()

	if _, err := model.ParseProposalType(string(proposal.Type)); err != nil {
		return nil, NewErrInvalidProposal(err)
	}

	template, err := a.store.Template().Get(ctx, templateID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrTemplateNotFound(templateID)
		}
		tracer.Error(err).Log()
		return nil, err
	}

	before := template.Config()
	after, err := analysis.Apply(before, proposal)
	if err != nil {
		return nil, NewErrInvalidProposal(err)
	}

	fromVersion := template.Version
	next := *template
	next.SetConfig(after)
	next.Version = fromVersion + 1

	txCtx, err := a.store.NewTransactionContext(ctx)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	updated, err := a.store.Template().Update(txCtx, next, fromVersion)
	if err != nil {
		_, _ = store.Rollback(txCtx)
		if errors.Is(err, store.ErrNoRowsAffected) {
			return nil, NewErrTemplateConflict(templateID, fromVersion)
		}
		tracer.Error(err).Log()
		return nil, err
	}

	var field *string
	if proposal.Field != "" {
		field = &proposal.Field
	}
	_, err = a.store.Template().CreateRevision(txCtx, model.TemplateRevision{
		TemplateID:   templateID,
		FromVersion:  fromVersion,
		ToVersion:    next.Version,
		ProposalType: proposal.Type,
		Field:        field,
		Before:       datatypes.NewJSONType(before),
		After:        datatypes.NewJSONType(after),
		AppliedBy:    validatorName(appliedBy),
		CreatedAt:    a.now(),
	})
	if err != nil {
		_, _ = store.Rollback(txCtx)
		tracer.Error(err).Log()
		return nil, err
	}

	if _, err := store.Commit(txCtx); err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	metrics.IncreaseTemplateImprovement(string(proposal.Type))
	tracer.Success().
		WithInt("from_version", fromVersion).
		WithInt("to_version", next.Version).
		WithParam("before", before).
		WithParam("after", after).
		Log()
	return updated, nil
}

func (a *AnalysisService) ListRevisions(ctx context.Context, templateID string) (model.TemplateRevisionList, error) {
	if _, err := a.store.Template().Get(ctx, templateID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrTemplateNotFound(templateID)
		}
		return nil, err
	}
	return a.store.Template().ListRevisions(ctx, templateID)
}

func (a *AnalysisService) analyze(ctx context.Context, t model.Template, window time.Duration) (*analysis.Result, error) {
	now := a.now()
	since := now.Add(-window)

	counts, err := a.store.Submission().DecisionCounts(ctx,
		store.NewSubmissionQueryFilter().ByTemplateID(t.ID).CreatedSince(since))
	if err != nil {
		return nil, err
	}

	feedback, err := a.store.Feedback().List(ctx, store.NewFeedbackQueryFilter().ByTemplateID(t.ID).SubmittedSince(since))
	if err != nil {
		return nil, err
	}

	failedEntries, err := a.store.ProcessingLog().List(ctx, store.NewLogQueryFilter().
		ByTemplateID(t.ID).
		ByStage(model.StageAIExtraction).
		ByStatus(model.StageStatusFailed).
		SubmittedSince(since))
	if err != nil {
		return nil, err
	}
	failures := make([]analysis.ExtractionFailure, 0, len(failedEntries))
	for _, e := range failedEntries {
		if e.Interrupted() {
			continue
		}
		f := analysis.ExtractionFailure{SubmissionID: e.SubmissionID}
		if e.ErrorMessage != nil {
			f.Message = *e.ErrorMessage
		}
		failures = append(failures, f)
	}

	result := a.engine.Analyze(analysis.Input{
		Template: t,
		Counts:   counts,
		Feedback: feedback,
		Failures: failures,
		Window:   window,
		Now:      now,
	})

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	if err := a.store.Snapshot().Put(ctx, model.AnalysisSnapshot{
		TemplateID: t.ID,
		Payload:    datatypes.JSON(payload),
		ComputedAt: now,
	}); err != nil {
		return nil, err
	}
	return &result, nil
}

func (a *AnalysisService) fresh(ctx context.Context, templateID string, window time.Duration) (*analysis.Result, bool) {
	if a.snapshotTTL == 0 {
		return nil, false
	}
	snapshot, err := a.store.Snapshot().Get(ctx, templateID)
	if err != nil {
		return nil, false
	}
	if a.now().Sub(snapshot.ComputedAt) > a.snapshotTTL {
		return nil, false
	}
	var result analysis.Result
	if err := json.Unmarshal(snapshot.Payload, &result); err != nil {
		return nil, false
	}
	if result.Window != window.String() {
		return nil, false
	}
	return &result, true
}

func (a *AnalysisService) window(w time.Duration) time.Duration {
	if w <= 0 {
		return a.defaultWindow
	}
	return w
}
