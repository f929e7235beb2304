package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/game-catalog-crawler/internal/api"
	"github.com/JakeFAU/game-catalog-crawler/internal/app"
	"github.com/JakeFAU/game-catalog-crawler/internal/store"
)

// newLedgerCmd groups checkpoint ledger maintenance.
func newLedgerCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspects and clears the checkpoint ledger",
	}

	var status string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Deletes checkpoint entries so the next epoch retries them",
		Long: `Deletes every checkpoint entry, or only those with --status. Items marked
unavailable are never retried until their entries are cleared here.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := s.open(cmd, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.Store().ClearCheckpoints(cmd.Context(), store.CheckpointStatus(status))
			if err != nil {
				return fmt.Errorf("clear checkpoints: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d checkpoint entries\n", n)
			return nil
		},
	}
	clearCmd.Flags().StringVar(&status, "status", "", "only clear entries with this status (e.g. unavailable)")
	cmd.AddCommand(clearCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Prints ledger counts and the latest epoch summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := s.open(cmd, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			status, err := api.ReadStatus(cmd.Context(), a.Store())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "processed: %d\npending cross references: %d\n", status.Processed, status.PendingCrossReferences)
			if e := status.LatestEpoch; e != nil {
				fmt.Fprintf(out, "latest epoch: %s %s (succeeded %d, unavailable %d, skipped %d, failed %d)\n",
					e.ID, e.Status, e.Succeeded, e.Unavailable, e.Skipped, e.Failed)
			}
			return nil
		},
	})
	return cmd
}
