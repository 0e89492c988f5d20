package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	RunID       string
	Seed        int64
	Ops         int
	BaseReserve string
	BondReserve string
	Start       string
	Maturity    string
	DecayPeriod uint64
	TimeStep    uint64
	MaxTrade    int64
	BatchSize   int
	Out         string
	PGDSN       string
	LogLevel    string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v := newViper()

	v.SetDefault("run-id", "sim")
	v.SetDefault("seed", int64(1))
	v.SetDefault("ops", 10000)
	v.SetDefault("base-reserve", "1000")
	v.SetDefault("bond-reserve", "1100")
	v.SetDefault("decay-period", uint64(126144000))
	v.SetDefault("time-step", uint64(3600))
	v.SetDefault("max-trade", int64(50))
	v.SetDefault("batch-size", 200)
	v.SetDefault("out", "./data/sim_ops.jsonl")
	v.SetDefault("log-level", "info")

	if err := readIn(v, cfgFile, flags); err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		RunID:       v.GetString("run-id"),
		Seed:        v.GetInt64("seed"),
		Ops:         v.GetInt("ops"),
		BaseReserve: v.GetString("base-reserve"),
		BondReserve: v.GetString("bond-reserve"),
		Start:       v.GetString("start"),
		Maturity:    v.GetString("maturity"),
		DecayPeriod: v.GetUint64("decay-period"),
		TimeStep:    v.GetUint64("time-step"),
		MaxTrade:    v.GetInt64("max-trade"),
		BatchSize:   v.GetInt("batch-size"),
		Out:         v.GetString("out"),
		PGDSN:       v.GetString("pg-dsn"),
		LogLevel:    v.GetString("log-level"),
	}

	return cfg, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
