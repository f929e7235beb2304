package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/game-catalog-crawler/internal/app"
	"github.com/JakeFAU/game-catalog-crawler/internal/progress"
)

type crawlFlags struct {
	preFilter  bool
	dropTables bool
	dryRun     bool
	yes        bool
}

// newCrawlCmd creates the 'crawl' subcommand, which runs one crawl epoch.
func newCrawlCmd(s *session) *cobra.Command {
	var f crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl epoch",
		Long: `Resolves the item universe, skips everything the checkpoint ledger already
holds, and crawls the rest in a shuffled order. Interrupting the command stops
after the current item; pending DLC links are still resolved.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, s, f)
		},
	}
	cmd.Flags().BoolVar(&f.preFilter, "pre-filter", false, "subtract processed IDs before the progress display starts")
	cmd.Flags().BoolVar(&f.dropTables, "drop-tables", false, "drop and recreate every table before crawling (asks for confirmation)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "crawl into the in-memory store instead of the database")
	cmd.Flags().BoolVar(&f.yes, "yes", false, "skip the confirmation for --drop-tables")
	return cmd
}

func runCrawl(cmd *cobra.Command, s *session, f crawlFlags) error {
	ctx := cmd.Context()
	a, err := s.open(cmd, app.Options{DryRun: f.dryRun})
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.Logger()

	if f.dropTables {
		ok, err := confirmed(cmd, f.yes, "Drop all tables?",
			"Every crawled item, lookup and checkpoint will be deleted before the crawl starts.")
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("drop tables declined; aborting")
			return nil
		}
		if err := a.Store().DropTables(ctx); err != nil {
			return fmt.Errorf("drop tables: %w", err)
		}
		logger.Info("tables dropped")
	}
	if err := a.Store().CreateTables(ctx); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	c, err := a.NewCrawler(ctx, app.CrawlOptions{
		PreFilter: f.preFilter,
		Progress:  progress.New(cmd.OutOrStdout()),
	})
	if err != nil {
		return fmt.Errorf("build crawler: %w", err)
	}

	summary, err := c.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawler: %w", err)
	}
	logger.Info("crawl command finished",
		zap.String("status", string(summary.Status)),
		zap.Int("new_items", summary.Succeeded),
	)
	return nil
}

func confirmed(cmd *cobra.Command, yes bool, title, message string) (bool, error) {
	if yes {
		return true, nil
	}
	ok, err := confirmPrompt(cmd, title, message)
	if err != nil {
		return false, fmt.Errorf("confirm: %w", err)
	}
	return ok, nil
}
