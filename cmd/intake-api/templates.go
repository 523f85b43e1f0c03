package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/supplier-intake/intake-pipeline/internal/service"
	"go.uber.org/zap"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage extraction templates",
}

var templatesLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Create or update templates from a yaml file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, flush, err := setup()
		if err != nil {
			return err
		}
		defer flush()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		ctx := context.Background()
		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		templates, err := service.NewTemplateService(s).LoadTemplates(ctx, data)
		if err != nil {
			return err
		}
		for _, t := range templates {
			zap.S().Infow("template loaded", "id", t.ID, "version", t.Version, "fields", len(t.ExpectedFields))
		}
		return nil
	},
}

func init() {
	templatesCmd.AddCommand(templatesLoadCmd)
}
