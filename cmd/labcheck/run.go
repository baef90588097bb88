package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/lab-compliance/constants"
	"github.com/joseph-ayodele/lab-compliance/internal/app"
	"github.com/joseph-ayodele/lab-compliance/internal/catalog"
	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
	"github.com/joseph-ayodele/lab-compliance/internal/export"
	"github.com/joseph-ayodele/lab-compliance/internal/pipeline"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		force        bool
		customFile   string
		customID     string
		xlsxOut      string
		withTimeline bool
	)
	cmd := &cobra.Command{
		Use:   "run <file.pdf>",
		Short: "Run the pipeline locally on one report and print the result record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !constants.IsAllowedExt(filepath.Ext(path)) {
				return common.NewAppError("INVALID_INPUT", "only PDF reports are accepted", common.ErrInvalidInput)
			}

			if err := root.cfg.Validate(); err != nil {
				return err
			}

			var custom catalog.Store
			if customFile != "" {
				store, err := catalog.NewFileStore(customFile, entity.SourceCustom)
				if err != nil {
					return err
				}
				custom = store
			}
			wired, err := app.BuildPipeline(root.cfg, custom, nil, root.logger)
			if err != nil {
				return err
			}

			ctx, cancel := common.WithTimeout(cmd.Context(), root.cfg.Pipeline.JobTimeout)
			defer cancel()

			started := time.Now()
			req := pipeline.Request{
				JobID:    uuid.New(),
				ResultID: uuid.New(),
				Path:     path,
				FileName: filepath.Base(path),
				Options:  entity.JobOptions{ForceRecovery: force, CustomCategoryID: customID},
			}
			rec, err := wired.Processor.Process(ctx, req, func(_ context.Context, pct int, stage string) {
				if withTimeline {
					fmt.Fprintf(cmd.ErrOrStderr(), "%3d%% %s (%s)\n", pct, stage, time.Since(started).Round(time.Millisecond))
				}
			})
			if err != nil {
				return err
			}

			if xlsxOut != "" {
				raw, err := export.WriteRecord(rec)
				if err != nil {
					return err
				}
				if err := os.WriteFile(xlsxOut, raw, 0o644); err != nil {
					return err
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
	cmd.Flags().BoolVar(&force, "force-recovery", false, "always try page OCR re-extraction")
	cmd.Flags().StringVar(&customFile, "custom-catalog", "", "YAML file with custom categories")
	cmd.Flags().StringVar(&customID, "category", "", "custom category ID to apply instead of the regulatory one")
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "also write the verdicts workbook to this path")
	cmd.Flags().BoolVar(&withTimeline, "progress", false, "print progress milestones to stderr")
	return cmd
}
