package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"learnearn/internal/config"
	"learnearn/internal/export"
	"learnearn/internal/ranking"
	"learnearn/internal/wallet"
)

// NewLeaderboardCmd prints the stored ranking and can export it as a spreadsheet.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var xlsxPath, highlight string
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the leaderboard from the configured storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			d, err := openDeps(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer d.Close()

			storage, err := d.recordStorage(cfg)
			if err != nil {
				return err
			}
			store := ranking.NewRecordStore(storage, cfg.Storage.Key, logger)
			entries := ranking.Rank(store.ReadRanked(cmd.Context()), highlight)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tADDRESS\tAVATAR\tCHALLENGES\tXP")
			for _, e := range entries {
				marker := ""
				if e.IsUser {
					marker = " *"
				}
				fmt.Fprintf(tw, "%d\t%s%s\t%s\t%d\t%d\n", e.Rank, wallet.ShortAddress(e.AccountKey), marker, e.AvatarRef, e.ChallengesCompleted, e.PointsEarned)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if xlsxPath == "" {
				return nil
			}
			f, err := os.Create(xlsxPath)
			if err != nil {
				return err
			}
			if err := export.WriteLeaderboard(f, entries); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			logger.Info("leaderboard exported", "path", xlsxPath, "entries", len(entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write the leaderboard to this .xlsx file")
	cmd.Flags().StringVar(&highlight, "address", "", "flag this address in the output")
	return cmd
}
