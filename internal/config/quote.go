package config

import (
	"github.com/spf13/pflag"
)

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	BaseReserve string
	BondReserve string
	Amount      string
	Side        string
	Now         string
	Maturity    string
	DecayPeriod uint64
	LogLevel    string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v := newViper()

	v.SetDefault("side", "sell-base")
	v.SetDefault("decay-period", uint64(126144000))
	v.SetDefault("log-level", "info")

	if err := readIn(v, cfgFile, flags); err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		BaseReserve: v.GetString("base-reserve"),
		BondReserve: v.GetString("bond-reserve"),
		Amount:      v.GetString("amount"),
		Side:        v.GetString("side"),
		Now:         v.GetString("now"),
		Maturity:    v.GetString("maturity"),
		DecayPeriod: v.GetUint64("decay-period"),
		LogLevel:    v.GetString("log-level"),
	}

	return cfg, nil
}
