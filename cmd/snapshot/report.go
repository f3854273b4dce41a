package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cohortSnapshot/internal/config"
	"cohortSnapshot/internal/snapshot"
)

func runReport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cohorts, err := snapshot.ReadFile(cfg.In)
	if err != nil {
		return err
	}
	logger.Debug("snapshot loaded", zap.String("in", cfg.In), zap.Int("cohorts", cohorts.Len()))

	return snapshot.PrintReport(os.Stdout, snapshot.Sizes(cohorts), cfg.Report)
}
