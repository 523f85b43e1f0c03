package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/supplier-intake/intake-pipeline/internal/analysis"
	apiserver "github.com/supplier-intake/intake-pipeline/internal/api_server"
	"github.com/supplier-intake/intake-pipeline/internal/config"
	"github.com/supplier-intake/intake-pipeline/internal/extraction"
	handlers "github.com/supplier-intake/intake-pipeline/internal/handlers/v1"
	"github.com/supplier-intake/intake-pipeline/internal/inventory"
	"github.com/supplier-intake/intake-pipeline/internal/media"
	"github.com/supplier-intake/intake-pipeline/internal/pipeline"
	"github.com/supplier-intake/intake-pipeline/internal/scoring"
	"github.com/supplier-intake/intake-pipeline/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the intake api, the extraction workers and the background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, flush, err := setup()
		if err != nil {
			return err
		}
		defer flush()

		zap.S().Info("Starting intake service")
		defer zap.S().Info("intake service stopped")

		if cfg.Extraction.URL == "" {
			return errors.New("INTAKE_EXTRACTION_URL is required")
		}
		if cfg.Inventory.URL == "" {
			return errors.New("INTAKE_INVENTORY_URL is required")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		s, err := openStore(ctx, cfg)
		if err != nil {
			zap.S().Errorw("failed to open store", "error", err)
			return err
		}
		defer func() { _ = s.Close() }()

		runnerOpts := []pipeline.RunnerOption{
			pipeline.WithRetryPolicy(pipeline.RetryPolicy{
				MaxAttempts: cfg.Pipeline.MaxAttempts,
				BaseDelay:   cfg.Pipeline.BaseDelay,
				MaxDelay:    cfg.Pipeline.MaxDelay,
			}),
			pipeline.WithExtractionTimeout(cfg.Pipeline.ExtractionTimeout),
		}
		if mediaStore, err := newMediaStore(cfg); err != nil {
			zap.S().Errorw("failed to create media store, media submissions will fail extraction", "error", err)
		} else if mediaStore != nil {
			runnerOpts = append(runnerOpts, pipeline.WithMediaStore(mediaStore))
		}

		runner := pipeline.NewRunner(s, extraction.NewHTTPClient(cfg.Extraction.URL, extraction.WithToken(cfg.Extraction.Token)), runnerOpts...)
		pool := pipeline.NewPool(runner, s,
			pipeline.WithWorkers(cfg.Pipeline.Workers),
			pipeline.WithPollInterval(cfg.Pipeline.PollInterval),
			pipeline.WithBatchSize(cfg.Pipeline.BatchSize),
			pipeline.WithStaleAfter(cfg.Pipeline.StaleAfter),
		)

		scorer := scoring.NewScorer(
			scoring.WithDefaultBaseConfidence(cfg.Queue.DefaultBaseConfidence),
			scoring.WithCategories(cfg.Queue.Categories),
		)
		committer := inventory.NewHTTPClient(cfg.Inventory.URL,
			inventory.WithToken(cfg.Inventory.Token),
			inventory.WithTimeout(cfg.Inventory.Timeout),
		)
		analysisSrv := service.NewAnalysisService(s,
			service.WithEngine(analysis.NewEngine(
				analysis.WithMinSampleSize(cfg.Analysis.MinSampleSize),
				analysis.WithMinErrorRate(cfg.Analysis.MinErrorRate),
				analysis.WithMinErrorCount(cfg.Analysis.MinErrorCount),
				analysis.WithSampleErrors(cfg.Analysis.SampleErrors),
			)),
			service.WithDefaultWindow(cfg.Analysis.Window),
			service.WithSnapshotTTL(cfg.Analysis.SnapshotTTL),
		)
		supplierSrv := service.NewSupplierService(s)

		h := handlers.NewServiceHandler(
			service.NewIngestService(s, service.WithDispatcher(pool)),
			service.NewQueueService(s, service.WithScorer(scorer), service.WithQueueLimits(cfg.Queue.MaxLimit, cfg.Queue.ScanLimit)),
			service.NewReviewService(s, committer),
			service.NewSubmissionService(s, scorer, runner),
			service.NewTemplateService(s),
			analysisSrv,
			supplierSrv,
			handlers.WithDefaultQueueLimit(cfg.Queue.DefaultLimit),
		)

		scheduler := pipeline.NewScheduler(
			pipeline.Job{
				Name:     "template_analysis",
				Interval: cfg.Analysis.RefreshInterval,
				Run: func(ctx context.Context) error {
					_, err := analysisSrv.AnalyzeAll(ctx, cfg.Analysis.Window)
					return err
				},
			},
			pipeline.Job{
				Name:     "supplier_metrics",
				Interval: cfg.Analysis.RefreshInterval,
				Run: func(ctx context.Context) error {
					_, err := supplierSrv.RefreshMetrics(ctx)
					return err
				},
			},
		)

		listener, err := newListener(cfg.Service.Address)
		if err != nil {
			return err
		}
		metricsListener, err := newListener(cfg.Service.MetricsAddress)
		if err != nil {
			_ = listener.Close()
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return pool.Run(gctx) })
		g.Go(func() error { return scheduler.Run(gctx) })
		g.Go(func() error { return apiserver.New(cfg, h, listener).Run(gctx) })
		g.Go(func() error {
			return apiserver.NewMetricServer(cfg.Service.MetricsAddress, metricsListener, s).Run(gctx)
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			zap.S().Errorw("intake service failed", "error", err)
			return err
		}
		return nil
	},
}

func newMediaStore(cfg *config.Config) (media.Store, error) {
	if cfg.S3.Endpoint == "" {
		zap.S().Warn("no s3 endpoint configured, media submissions cannot be fetched")
		return nil, nil
	}
	return media.NewMinioStore(
		media.WithEndpoint(cfg.S3.Endpoint),
		media.WithBucket(cfg.S3.Bucket),
		media.WithAccessKey(cfg.S3.AccessKey),
		media.WithSecretKey(cfg.S3.SecretKey),
		media.WithSSL(cfg.S3.UseSSL),
	)
}
