package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bondScope/internal/config"
	"bondScope/internal/pool"
	"bondScope/internal/sim"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	now, err := config.ParseTimestamp(cfg.Now)
	if err != nil {
		return fmt.Errorf("parse now: %w", err)
	}
	if now == 0 {
		return fmt.Errorf("now is required")
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
	amount, err := parseTokens(cfg.Amount)
	if err != nil {
		return fmt.Errorf("parse amount: %w", err)
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
	if _, _, _, err := p.Mint(now, baseReserve, bondReserve); err != nil {
		return fmt.Errorf("seed reserves: %w", err)
	}

	checker := sim.NewChecker(nil)
	if _, err := checker.Observe(p, now); err != nil {
		return err
	}

	var result *big.Int
	var label string
	switch strings.ToLower(strings.TrimSpace(cfg.Side)) {
	case "sell-base":
		result, err = p.SellBase(now, amount, nil)
		label = "bond out"
	case "sell-bond":
		result, err = p.SellBond(now, amount, nil)
		label = "base out"
	case "buy-base":
		result, err = p.BuyBase(now, amount, nil)
		label = "bond in"
	case "buy-bond":
		result, err = p.BuyBond(now, amount, nil)
		label = "base in"
	default:
		return fmt.Errorf("unknown side: %s", cfg.Side)
	}
	if err != nil {
		return err
	}

	drift, err := checker.Observe(p, now)
	if err != nil {
		return err
	}

	logger.Info("quote",
		zap.String("side", cfg.Side),
		zap.String("amount", formatTokens(amount)),
		zap.String("base_reserve", cfg.BaseReserve),
		zap.String("bond_reserve", cfg.BondReserve),
		zap.Uint64("seconds_to_maturity", maturity-now),
		zap.String("drift", drift.String()),
	)
	fmt.Printf("%s: %s\n", label, formatTokens(result))
	return nil
}

// parseTokens converts a whole-token decimal string into base units at the
// default 18-decimal scale.
func parseTokens(input string) (*big.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("amount is required")
	}

	neg := strings.HasPrefix(input, "-")
	if neg {
		input = input[1:]
	}

	whole := input
	frac := ""
	if i := strings.IndexByte(input, '.'); i >= 0 {
		whole, frac = input[:i], input[i+1:]
	}
	if len(frac) > 18 {
		return nil, fmt.Errorf("more than 18 fractional digits: %s", input)
	}
	frac = frac + strings.Repeat("0", 18-len(frac))
	if whole == "" {
		whole = "0"
	}

	value, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", input)
	}
	if neg {
		value.Neg(value)
	}
	return value, nil
}

// formatTokens renders base units as a whole-token decimal string.
func formatTokens(units *big.Int) string {
	if units == nil {
		return "0"
	}
	neg := units.Sign() < 0
	abs := new(big.Int).Abs(units)
	quo, rem := new(big.Int).QuoRem(abs, pool.DefaultScale, new(big.Int))

	out := quo.String()
	if rem.Sign() > 0 {
		fracDigits := fmt.Sprintf("%018s", rem.String())
		fracDigits = strings.TrimRight(fracDigits, "0")
		out = out + "." + fracDigits
	}
	if neg {
		out = "-" + out
	}
	return out
}
