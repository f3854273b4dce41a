package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cohortSnapshot/internal/aggregate"
	"cohortSnapshot/internal/cache"
	"cohortSnapshot/internal/chain"
	"cohortSnapshot/internal/config"
	"cohortSnapshot/internal/indexer"
	"cohortSnapshot/internal/snapshot"
	"cohortSnapshot/internal/sources"
)

func main() {
	root := &cobra.Command{
		Use:          "snapshot",
		Short:        "Airdrop cohort snapshot",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Collect sources, compute cohorts and write the snapshot",
		RunE:  runSnapshot,
	}

	runCmd.Flags().String("rpc", "", "Ethereum RPC URL")
	runCmd.Flags().Uint64("snapshot-block", config.DefaultSnapshotBlock, "snapshot block, 0 means latest")
	runCmd.Flags().Uint64("from-block", config.DefaultFromBlock, "first block scanned for stake events")
	runCmd.Flags().Uint64("gift-from-block", config.DefaultGiftFromBlock, "first block scanned for gift events")
	runCmd.Flags().String("gift-contract", config.DefaultGiftContract, "gift contract address")
	runCmd.Flags().StringSlice("pool", config.DefaultPools, "staking pools as label=address")
	runCmd.Flags().String("stake-topic", "", "override Staked topic0")
	runCmd.Flags().String("gift-topic", "", "override GiftMinted topic0")
	runCmd.Flags().Uint64("batch-size", indexer.DefaultBatchSize, "blocks per log query")
	runCmd.Flags().Int("concurrency", indexer.DefaultConcurrency, "concurrent log queries")
	runCmd.Flags().Bool("progress", true, "show batch progress on stderr")
	runCmd.Flags().Int("max-retries", 3, "maximum retry attempts per RPC call")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("vote-url", sources.DefaultVoteURL, "vote export GraphQL endpoint")
	runCmd.Flags().StringSlice("vote-space", sources.DefaultVoteSpaces, "vote spaces")
	runCmd.Flags().Int("vote-first", sources.DefaultVoteFirst, "maximum votes requested")
	runCmd.Flags().Bool("vote-cutoff", true, "drop votes created after the snapshot block")
	runCmd.Flags().String("circle-url", sources.DefaultCircleURL, "circle roster endpoint")
	runCmd.Flags().StringSlice("circle-id", []string{"1", "2", "3"}, "allowed circle ids")
	runCmd.Flags().Duration("http-timeout", 30*time.Second, "HTTP request timeout")
	runCmd.Flags().Int("http-retries", 2, "HTTP retry attempts")
	runCmd.Flags().StringSlice("cohort", nil, "base cohorts as name=source+source (default tiers when empty)")
	runCmd.Flags().Bool("derived", true, "compute derived cohorts")
	runCmd.Flags().StringSlice("derived-cohort", nil, "derived cohorts as name=k (default tiers when empty)")
	runCmd.Flags().String("out", snapshot.DefaultOutput, "snapshot output path")
	runCmd.Flags().String("report", snapshot.ReportTable, "console report format (table, json)")
	runCmd.Flags().String("cache-backend", cache.BackendLevelDB, "cache backend (leveldb, postgres, memory)")
	runCmd.Flags().String("cache-dir", "./cache", "LevelDB cache directory")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for the postgres cache backend")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print cohort sizes of an existing snapshot",
		RunE:  runReport,
	}

	reportCmd.Flags().String("out", snapshot.DefaultOutput, "snapshot file to read")
	reportCmd.Flags().String("report", snapshot.ReportTable, "report format (table, json)")
	reportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(reportCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	pools, err := snapshot.ParsePools(cfg.Pools)
	if err != nil {
		return err
	}
	giftContract, err := indexer.ParseAddress(cfg.GiftContract)
	if err != nil {
		return fmt.Errorf("gift contract: %w", err)
	}
	for name, topic := range map[string]string{"stake-topic": cfg.StakeTopic, "gift-topic": cfg.GiftTopic} {
		if topic == "" {
			continue
		}
		if _, err := indexer.ParseTopic(topic); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	baseSpecs, err := aggregate.ParseBaseSpecs(cfg.Cohorts)
	if err != nil {
		return err
	}
	derivedSpecs, err := aggregate.ParseDerivedSpecs(cfg.DerivedCohorts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	store, err := cache.Open(ctx, cfg.CacheBackend, cfg.CacheDir, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	var progress io.Writer
	if cfg.Progress {
		progress = os.Stderr
	}
	scheduler := indexer.NewScheduler(indexer.SchedulerConfig{
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.Concurrency,
		Progress:    progress,
	}, indexer.NewFetcher(chainClient, store, logger), logger)

	httpClient := sources.NewHTTPClient(
		sources.WithTimeout(cfg.HTTPTimeout),
		sources.WithRetryMax(cfg.HTTPRetries),
	)

	runner := snapshot.NewRunner(snapshot.RunConfig{
		SnapshotBlock: cfg.SnapshotBlock,
		FromBlock:     cfg.FromBlock,
		GiftFromBlock: cfg.GiftFromBlock,
		GiftContract:  giftContract,
		Pools:         pools,
		StakeTopic:    cfg.StakeTopic,
		GiftTopic:     cfg.GiftTopic,
		VoteCutoff:    cfg.VoteCutoff,
		Cohorts: aggregate.CohortConfig{
			Base:          baseSpecs,
			Derived:       derivedSpecs,
			DeriveEnabled: cfg.Derived,
		},
	}, snapshot.Deps{
		Chain:     chainClient,
		Scheduler: scheduler,
		Votes: sources.NewVoteClient(sources.VoteConfig{
			URL:    cfg.VoteURL,
			Spaces: cfg.VoteSpaces,
			First:  cfg.VoteFirst,
		}, httpClient, logger),
		Roster: sources.NewCircleClient(sources.CircleConfig{
			URL:       cfg.CircleURL,
			CircleIDs: cfg.CircleIDs,
		}, httpClient, logger),
		Cache:  store,
		Writer: snapshot.NewWriter(snapshot.WriterConfig{Path: cfg.Out, Report: cfg.Report}, os.Stdout, logger),
	}, logger)

	logger.Info("snapshot start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("snapshot_block", cfg.SnapshotBlock),
		zap.Uint64("from_block", cfg.FromBlock),
		zap.Uint64("gift_from_block", cfg.GiftFromBlock),
		zap.Int("pools", len(pools)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Int("concurrency", cfg.Concurrency),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("out", cfg.Out),
	)

	_, err = runner.Run(ctx)
	return err
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
