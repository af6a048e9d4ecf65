package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Delete expired articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.reaper.ReapExpired(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired articles\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reapCmd)
}
