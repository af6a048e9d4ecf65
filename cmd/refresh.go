package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	refreshUser  string
	refreshStale bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh feeds once and print the stats",
	Example: `  go-feeds refresh --user alice
  go-feeds refresh --stale`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if refreshUser == "" && !refreshStale {
			return fmt.Errorf("either --user or --stale is required")
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if refreshStale {
			n, err := a.refresh.RefreshStale(cmd.Context(), cfg.Refresh.StaleAfter)
			fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d users\n", n)
			return err
		}

		res, err := a.refresh.RefreshAll(cmd.Context(), refreshUser)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Stats); err != nil {
			return err
		}
		if res.Stats.FailedFeeds > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d feeds failed\n", res.Stats.FailedFeeds, res.Stats.TotalFeeds)
		}
		return nil
	},
}

func init() {
	refreshCmd.Flags().StringVarP(&refreshUser, "user", "u", "", "user id to refresh")
	refreshCmd.Flags().BoolVar(&refreshStale, "stale", false, "refresh every user with stale feeds")
	rootCmd.AddCommand(refreshCmd)
}
