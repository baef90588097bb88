package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/joseph-ayodele/lab-compliance/internal/common"
	"github.com/joseph-ayodele/lab-compliance/internal/repository"
	"github.com/joseph-ayodele/lab-compliance/internal/server"
)

type rootOptions struct {
	addr    string
	timeout time.Duration

	cfg    *common.Config
	logger *slog.Logger
	close  func() error
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "labcheck",
		Short:         "Classify lab PDF reports and decide parameter compliance",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.cfg = common.LoadConfig()
			opts.logger, opts.close = common.SetupLogger(opts.cfg.Log.File, opts.cfg.Log.Level)
			slog.SetDefault(opts.logger)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.close != nil {
				_ = opts.close()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&opts.addr, "addr", "", "labcheckd gRPC address (default GRPC_ADDR, localhost-qualified)")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "timeout for remote calls")

	cmd.AddCommand(
		newRunCmd(opts),
		newDBHealthCmd(opts),
		newSubmitCmd(opts),
		newPollCmd(opts),
		newReprocessCmd(opts),
		newExportCmd(opts),
		newScanCmd(opts),
		newCategoriesCmd(opts),
	)
	return cmd
}

// dial connects to the daemon; ":8080" style addresses are qualified with localhost.
func (o *rootOptions) dial() (*server.Client, func(), error) {
	addr := o.addr
	if addr == "" {
		addr = o.cfg.Server.GRPCAddr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return server.NewClient(conn), func() { _ = conn.Close() }, nil
}

func (o *rootOptions) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	return common.WithTimeout(parent, o.timeout)
}

// openDB opens and migrates the configured database.
func (o *rootOptions) openDB(ctx context.Context) (*repository.DB, error) {
	db, err := repository.Open(ctx, o.cfg.Database, o.logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
