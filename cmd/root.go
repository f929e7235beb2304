// Package cmd defines and implements the CLI commands for the gamecrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/game-catalog-crawler/internal/app"
	"github.com/JakeFAU/game-catalog-crawler/internal/config"
	"github.com/JakeFAU/game-catalog-crawler/internal/confirm"
	"github.com/JakeFAU/game-catalog-crawler/internal/crawler"
	"github.com/JakeFAU/game-catalog-crawler/internal/logging"
	"github.com/JakeFAU/game-catalog-crawler/internal/store"
)

// App defines the services commands use. This allows us to inject a fake
// app during tests.
type App interface {
	Logger() *zap.Logger
	Store() store.Store
	NewCrawler(ctx context.Context, opts app.CrawlOptions) (*crawler.Crawler, error)
	Close()
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger, opts app.Options) (App, error) {
	return app.New(ctx, cfg, logger, opts)
}

// confirmPrompt asks the operator a yes/no question. Tests replace it.
var confirmPrompt = func(cmd *cobra.Command, title, message string) (bool, error) {
	return confirm.Ask(cmd.InOrStdin(), cmd.OutOrStdout(), title, message)
}

// session carries what the root command loaded for its subcommands.
type session struct {
	configPath string
	cfg        config.Config
	logger     *zap.Logger
}

// open builds the application services for one command.
func (s *session) open(cmd *cobra.Command, opts app.Options) (App, error) {
	a, err := newApp(cmd.Context(), s.cfg, s.logger, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application services: %w", err)
	}
	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	s := &session{logger: zap.NewNop()}
	cmd := &cobra.Command{
		Use:   "gamecrawler",
		Short: "Incremental crawler for game catalog metadata.",
		Long: `gamecrawler walks the full game catalog one item at a time, normalizes
each item together with its aggregator statistics, and stores the result in
Postgres. A checkpoint ledger makes every run resumable.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(s.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Dir:         cfg.Logging.Dir,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			s.cfg, s.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = s.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&s.configPath, "config", "", "config file (YAML); environment variables override it")

	cmd.AddCommand(newCrawlCmd(s))
	cmd.AddCommand(newTablesCmd(s))
	cmd.AddCommand(newLedgerCmd(s))
	return cmd
}

// Execute is the main entry point. It exits 1 on any command error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		zap.L().Error("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
