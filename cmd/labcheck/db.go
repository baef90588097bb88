package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/lab-compliance/internal/catalog"
	"github.com/joseph-ayodele/lab-compliance/internal/entity"
	"github.com/joseph-ayodele/lab-compliance/internal/repository"
)

func newDBHealthCmd(root *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "dbhealth",
		Short: "Check database connectivity and apply the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := root.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.HealthCheck(cmd.Context(), timeout); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database OK (%s)\n", db.Dialect)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "check-timeout", 5*time.Second, "health check timeout")
	return cmd
}

func newCategoriesCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage custom rule categories",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "import <catalog.yaml>",
			Short: "Create or replace the custom categories defined in a YAML file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cats, err := catalog.LoadFile(args[0], entity.SourceCustom)
				if err != nil {
					return err
				}
				db, err := root.openDB(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()

				repo := repository.NewCategoryRepository(db, root.logger)
				for _, c := range cats {
					if err := repo.Upsert(cmd.Context(), c); err != nil {
						return fmt.Errorf("import %s: %w", c.ID, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d categories\n", len(cats))
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List custom categories",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := root.openDB(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()

				cats, err := repository.NewCategoryRepository(db, root.logger).ListCategories(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tPARAMETERS")
				for _, c := range cats {
					fmt.Fprintf(tw, "%s\t%s\t%d\n", c.ID, c.Name, len(c.Entries))
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a custom category",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := root.openDB(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()
				return repository.NewCategoryRepository(db, root.logger).Delete(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}
