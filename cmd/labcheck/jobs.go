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
	"github.com/joseph-ayodele/lab-compliance/internal/async"
	"github.com/joseph-ayodele/lab-compliance/internal/ingest"
	"github.com/joseph-ayodele/lab-compliance/internal/server"
)

func newSubmitCmd(root *rootOptions) *cobra.Command {
	var req server.SubmitRequest
	cmd := &cobra.Command{
		Use:   "submit <file.pdf>",
		Short: "Submit a report to labcheckd and print the job ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			req.FileRef = abs

			client, done, err := root.dial()
			if err != nil {
				return err
			}
			defer done()

			ctx, cancel := root.callContext(cmd.Context())
			defer cancel()
			id, err := client.Submit(server.WithRequestID(ctx, uuid.NewString()), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&req.ForceRecovery, "force-recovery", false, "always try page OCR re-extraction")
	cmd.Flags().StringVar(&req.ExistingJobID, "job", "", "reuse this job ID instead of creating a new job")
	cmd.Flags().StringVar(&req.CustomCategoryID, "category", "", "custom category ID to apply")
	return cmd
}

func newPollCmd(root *rootOptions) *cobra.Command {
	var (
		wait     bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "poll <job-id>",
		Short: "Print the state of a job, optionally waiting until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, done, err := root.dial()
			if err != nil {
				return err
			}
			defer done()

			for {
				ctx, cancel := root.callContext(cmd.Context())
				view, err := client.Poll(ctx, args[0])
				cancel()
				if err != nil {
					return err
				}
				state, _ := view["state"].(string)
				if !wait || constants.JobState(state).Terminal() {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(view)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%v%% %v\n", view["progress_percent"], view["stage"])
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(interval):
				}
			}
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the job is completed or failed")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval with --wait")
	return cmd
}

func newReprocessCmd(root *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reprocess <job-id>",
		Short: "Re-run a finished job under the same job and result IDs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, done, err := root.dial()
			if err != nil {
				return err
			}
			defer done()

			ctx, cancel := root.callContext(cmd.Context())
			defer cancel()
			return client.Reprocess(ctx, args[0], force)
		},
	}
	cmd.Flags().BoolVar(&force, "force-recovery", false, "always try page OCR re-extraction")
	return cmd
}

func newExportCmd(root *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <job-id>",
		Short: "Download the verdicts workbook of a finished job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, done, err := root.dial()
			if err != nil {
				return err
			}
			defer done()

			ctx, cancel := root.callContext(cmd.Context())
			defer cancel()
			raw, err := client.Export(ctx, args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = args[0] + ".xlsx"
			}
			if err := os.WriteFile(out, raw, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default <job-id>.xlsx)")
	return cmd
}

// remoteSubmitter adapts the gRPC client to ingest.Submitter.
type remoteSubmitter struct {
	client  *server.Client
	timeout time.Duration
}

func (r remoteSubmitter) Submit(ctx context.Context, fileRef string, opts async.SubmitOptions) (uuid.UUID, error) {
	abs, err := filepath.Abs(fileRef)
	if err != nil {
		return uuid.Nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	id, err := r.client.Submit(ctx, server.SubmitRequest{
		FileRef:          abs,
		ForceRecovery:    opts.ForceRecovery,
		CustomCategoryID: opts.CustomCategoryID,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(id)
}

func newScanCmd(root *rootOptions) *cobra.Command {
	var (
		opts       async.SubmitOptions
		skipHidden bool
	)
	cmd := &cobra.Command{
		Use:   "scan <dir>",
		Short: "Submit every PDF under a directory, skipping duplicate content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, done, err := root.dial()
			if err != nil {
				return err
			}
			defer done()

			ing := ingest.NewIngestor(remoteSubmitter{client: client, timeout: root.timeout}, opts, root.logger)
			results, stats, err := ing.IngestDirectory(cmd.Context(), args[0], skipHidden)
			if err != nil {
				return err
			}
			for _, r := range results {
				switch {
				case r.Err != "":
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL  %s: %s\n", r.Path, r.Err)
				case r.Deduplicated:
					fmt.Fprintf(cmd.OutOrStdout(), "DUP   %s -> %s\n", r.Path, r.JobID)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "OK    %s -> %s\n", r.Path, r.JobID)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d matched=%d submitted=%d duplicates=%d failed=%d\n",
				stats.Scanned, stats.Matched, stats.Succeeded, stats.Deduplicated, stats.Failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.ForceRecovery, "force-recovery", false, "always try page OCR re-extraction")
	cmd.Flags().StringVar(&opts.CustomCategoryID, "category", "", "custom category ID to apply")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "skip hidden files and directories")
	return cmd
}
