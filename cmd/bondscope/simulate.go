package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bondScope/internal/config"
	"bondScope/internal/pool"
	"bondScope/internal/sim"
	"bondScope/internal/storage"
	"bondScope/internal/storage/postgres"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	start, err := config.ParseTimestamp(cfg.Start)
	if err != nil {
		return fmt.Errorf("parse start: %w", err)
	}
	if start == 0 {
		return fmt.Errorf("start is required")
	}
	maturity, err := config.ParseTimestamp(cfg.Maturity)
	if err != nil {
		return fmt.Errorf("parse maturity: %w", err)
	}
	if maturity == 0 {
		return fmt.Errorf("maturity is required")
	}

	baseReserve, err := parseTokens(cfg.BaseReserve)
	if err != nil {
		return fmt.Errorf("parse base-reserve: %w", err)
	}
	bondReserve, err := parseTokens(cfg.BondReserve)
	if err != nil {
		return fmt.Errorf("parse bond-reserve: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var storageSink storage.Storage
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		storageSink = store
	} else {
		storageSink = storage.NewJsonlStorage(cfg.Out)
	}

	p, err := pool.New(pool.Config{
		BaseAsset:   "base",
		BondAsset:   "bond",
		Maturity:    maturity,
		DecayPeriod: cfg.DecayPeriod,
	})
	if err != nil {
		return err
	}
	if _, _, _, err := p.Mint(start, baseReserve, bondReserve); err != nil {
		return fmt.Errorf("seed reserves: %w", err)
	}

	runner, err := sim.NewRunner(sim.RunnerConfig{
		RunID:     cfg.RunID,
		Seed:      cfg.Seed,
		Ops:       cfg.Ops,
		Start:     start,
		TimeStep:  cfg.TimeStep,
		MaxTrade:  cfg.MaxTrade,
		BatchSize: cfg.BatchSize,
	}, p, storageSink, logger)
	if err != nil {
		return err
	}

	logger.Info("simulate start",
		zap.String("run_id", cfg.RunID),
		zap.Int64("seed", cfg.Seed),
		zap.Int("ops", cfg.Ops),
		zap.String("base_reserve", cfg.BaseReserve),
		zap.String("bond_reserve", cfg.BondReserve),
		zap.Uint64("start", start),
		zap.Uint64("maturity", maturity),
		zap.Uint64("decay_period", cfg.DecayPeriod),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("ops: %d  rejected: %d  max drift: %s\n", stats.Total, stats.Rejected, stats.MaxDrift)
	return nil
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
