package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/game-catalog-crawler/internal/app"
)

// newTablesCmd groups schema management.
func newTablesCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Creates or drops the catalog tables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Creates every table that does not exist yet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := s.open(cmd, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Store().CreateTables(cmd.Context()); err != nil {
				return fmt.Errorf("create tables: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "tables created")
			return nil
		},
	})

	var yes bool
	drop := &cobra.Command{
		Use:   "drop",
		Short: "Drops every table (asks for confirmation)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ok, err := confirmed(cmd, yes, "Drop all tables?", "Every crawled item, lookup and checkpoint will be deleted.")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
			a, err := s.open(cmd, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Store().DropTables(cmd.Context()); err != nil {
				return fmt.Errorf("drop tables: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "tables dropped")
			return nil
		},
	}
	drop.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	cmd.AddCommand(drop)
	return cmd
}
