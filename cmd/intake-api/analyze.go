package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/supplier-intake/intake-pipeline/internal/analysis"
	"github.com/supplier-intake/intake-pipeline/internal/service"
	"go.uber.org/zap"
)

var (
	analyzeWindow time.Duration
	analyzeXLSX   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [template-id]",
	Short: "Analyze template performance and print the improvement proposals",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, flush, err := setup()
		if err != nil {
			return err
		}
		defer flush()

		ctx := context.Background()
		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		window := analyzeWindow
		if window <= 0 {
			window = cfg.Analysis.Window
		}
		srv := service.NewAnalysisService(s,
			service.WithEngine(analysis.NewEngine(
				analysis.WithMinSampleSize(cfg.Analysis.MinSampleSize),
				analysis.WithMinErrorRate(cfg.Analysis.MinErrorRate),
				analysis.WithMinErrorCount(cfg.Analysis.MinErrorCount),
				analysis.WithSampleErrors(cfg.Analysis.SampleErrors),
			)),
			service.WithDefaultWindow(window),
			service.WithSnapshotTTL(cfg.Analysis.SnapshotTTL),
		)

		var out any
		if len(args) == 1 {
			result, err := srv.Analyze(ctx, args[0], window)
			if err != nil {
				return err
			}
			out = result
		} else {
			overview, err := srv.AnalyzeAll(ctx, window)
			if err != nil {
				return err
			}
			if analyzeXLSX != "" {
				data, err := service.ExportAnalysisXLSX(*overview)
				if err != nil {
					return err
				}
				if err := os.WriteFile(analyzeXLSX, data, 0o600); err != nil {
					return fmt.Errorf("writing %s: %w", analyzeXLSX, err)
				}
				zap.S().Infow("analysis exported", "file", analyzeXLSX, "templates", len(overview.Results))
			}
			out = overview
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	analyzeCmd.Flags().DurationVarP(&analyzeWindow, "window", "w", 0, "Analysis window, defaults to INTAKE_ANALYSIS_WINDOW")
	analyzeCmd.Flags().StringVar(&analyzeXLSX, "xlsx", "", "Also write the analysis of every template to this spreadsheet")
}
