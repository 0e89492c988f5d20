package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "bondscope",
		Short:        "Bond AMM curve tooling",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a single trade against the curve",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("base-reserve", "", "base reserve in whole tokens")
	quoteCmd.Flags().String("bond-reserve", "", "bond reserve in whole tokens")
	quoteCmd.Flags().String("amount", "", "trade amount in whole tokens")
	quoteCmd.Flags().String("side", "sell-base", "trade side (sell-base, sell-bond, buy-base, buy-bond)")
	quoteCmd.Flags().String("now", "", "quote time (unix seconds or RFC3339)")
	quoteCmd.Flags().String("maturity", "", "maturity time (unix seconds or RFC3339)")
	quoteCmd.Flags().Uint64("decay-period", 126144000, "exponent decay period in seconds")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a seeded random operation sequence and check the invariant",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("run-id", "sim", "run identifier for stored op records")
	simulateCmd.Flags().Int64("seed", 1, "random seed")
	simulateCmd.Flags().Int("ops", 10000, "number of operations")
	simulateCmd.Flags().String("base-reserve", "1000", "initial base reserve in whole tokens")
	simulateCmd.Flags().String("bond-reserve", "1100", "initial bond reserve in whole tokens")
	simulateCmd.Flags().String("start", "", "start time (unix seconds or RFC3339)")
	simulateCmd.Flags().String("maturity", "", "maturity time (unix seconds or RFC3339)")
	simulateCmd.Flags().Uint64("decay-period", 126144000, "exponent decay period in seconds")
	simulateCmd.Flags().Uint64("time-step", 3600, "max seconds between operations")
	simulateCmd.Flags().Int64("max-trade", 50, "max whole tokens per trade")
	simulateCmd.Flags().Int("batch-size", 200, "op records per storage batch")
	simulateCmd.Flags().String("out", "./data/sim_ops.jsonl", "output JSONL path")
	simulateCmd.Flags().String("pg-dsn", "", "Postgres DSN (overrides JSONL output)")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay on-chain pool events and verify them against the curve",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("rpc", "", "Ethereum RPC URL")
	replayCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	replayCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	replayCmd.Flags().StringSlice("address", nil, "pool addresses (comma-separated)")
	replayCmd.Flags().StringSlice("topic0", nil, "topic0 signatures (comma-separated)")
	replayCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	replayCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	replayCmd.Flags().Uint64("decay-period", 126144000, "exponent decay period in seconds")
	replayCmd.Flags().String("out", "./data/ops.jsonl", "output JSONL path")
	replayCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN (overrides JSONL output)")
	replayCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	replayCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	replayCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().Bool("strict", false, "stop on the first verification failure")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
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
