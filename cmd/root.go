// Package cmd 命令行入口
package cmd

import (
	"github.com/spf13/cobra"

	"go-feeds/config"
	"go-feeds/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "go-feeds",
	Short: "Personal feed aggregator backend",
	Long: `go-feeds pulls RSS, Atom and RDF feeds for each user, stores new articles
and serves them over a JSON API.

Example usage:
  go-feeds serve                  # start the API server and scheduler
  go-feeds refresh --user alice   # refresh one user's feeds once
  go-feeds reap                   # delete expired articles`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute 执行根命令
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion 构建时注入的版本号
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file (yaml, optional)")
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}
	return logger.Init(cfg.Log)
}
