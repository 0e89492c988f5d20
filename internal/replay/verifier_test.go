package replay

import (
	"errors"
	"math/big"
	"testing"

	"bondScope/internal/model"
	"bondScope/internal/pool"
)

const (
	oneYear   = uint64(31556952)
	fourYears = uint64(126144000)
	testTS    = uint64(1_700_000_000)
	poolAddr  = "0x1111111111111111111111111111111111111111"
)

func wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), pool.DefaultScale)
}

func newVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(VerifierConfig{DecayPeriod: fourYears})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	return v
}

func poolEvent(seq uint64, name string, decoded interface{}) *model.PoolEvent {
	return &model.PoolEvent{
		ChainID:     1,
		BlockNumber: 100 + seq,
		TxHash:      "0xdef",
		LogIndex:    seq,
		Address:     poolAddr,
		EventName:   name,
		Timestamp:   testTS,
		Decoded:     decoded,
		PoolMeta:    model.PoolMeta{Maturity: testTS + oneYear},
	}
}

func genesisEvent(seq uint64) *model.PoolEvent {
	return poolEvent(seq, "Liquidity", model.LiquidityEventData{
		Maturity:   testTS + oneYear,
		BaseTokens: new(big.Int).Neg(wad(1000)).String(),
		BondTokens: new(big.Int).Neg(wad(1100)).String(),
		PoolTokens: wad(1000).String(),
	})
}

// consistentTradeOut runs the trade against a reference pool so the event
// amounts match what the curve allows.
func consistentTradeOut(t *testing.T, baseIn *big.Int) *big.Int {
	t.Helper()
	p, err := pool.New(pool.Config{
		BaseAsset:   "DAI",
		BondAsset:   "fyDAI",
		Maturity:    testTS + oneYear,
		DecayPeriod: fourYears,
	})
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if _, _, _, err := p.Mint(testTS, wad(1000), wad(1100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	out, err := p.SellBase(testTS, baseIn, nil)
	if err != nil {
		t.Fatalf("sell base: %v", err)
	}
	return out
}

func TestVerifierAcceptsConsistentTrade(t *testing.T) {
	v := newVerifier(t)

	record, err := v.Apply(genesisEvent(0))
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if record.Op != model.OpMint {
		t.Fatalf("op mismatch: %s", record.Op)
	}
	if record.BaseReserve != wad(1000).String() {
		t.Fatalf("base reserve mismatch: %s", record.BaseReserve)
	}

	bondOut := consistentTradeOut(t, wad(10))
	trade := poolEvent(1, "Trade", model.TradeEventData{
		Maturity:   testTS + oneYear,
		BaseTokens: new(big.Int).Neg(wad(10)).String(),
		BondTokens: bondOut.String(),
	})

	record, err = v.Apply(trade)
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	if record.Op != model.OpSellBase {
		t.Fatalf("op mismatch: %s", record.Op)
	}
	if record.Err != "" {
		t.Fatalf("unexpected record error: %s", record.Err)
	}
}

func TestVerifierRejectsInflatedOutput(t *testing.T) {
	v := newVerifier(t)
	if _, err := v.Apply(genesisEvent(0)); err != nil {
		t.Fatalf("genesis: %v", err)
	}

	// Trader pays 10 base but takes 50 bonds, far beyond the curve price.
	trade := poolEvent(1, "Trade", model.TradeEventData{
		Maturity:   testTS + oneYear,
		BaseTokens: new(big.Int).Neg(wad(10)).String(),
		BondTokens: wad(50).String(),
	})

	record, err := v.Apply(trade)
	if !errors.Is(err, ErrVerification) {
		t.Fatalf("expected verification failure, got %v", err)
	}
	if record.Err == "" {
		t.Fatalf("record should carry the failure detail")
	}
}

func TestVerifierRejectsDrain(t *testing.T) {
	v := newVerifier(t)
	if _, err := v.Apply(genesisEvent(0)); err != nil {
		t.Fatalf("genesis: %v", err)
	}

	trade := poolEvent(1, "Trade", model.TradeEventData{
		Maturity:   testTS + oneYear,
		BaseTokens: wad(1000).String(),
		BondTokens: new(big.Int).Neg(wad(5000)).String(),
	})

	if _, err := v.Apply(trade); !errors.Is(err, ErrVerification) {
		t.Fatalf("expected drain rejection, got %v", err)
	}
}

func TestVerifierTradeBeforeLiquidity(t *testing.T) {
	v := newVerifier(t)
	trade := poolEvent(0, "Trade", model.TradeEventData{
		Maturity:   testTS + oneYear,
		BaseTokens: "-1",
		BondTokens: "1",
	})
	if _, err := v.Apply(trade); err == nil {
		t.Fatalf("expected error for unknown pool")
	}
}

func TestVerifierProportionalBurn(t *testing.T) {
	v := newVerifier(t)
	if _, err := v.Apply(genesisEvent(0)); err != nil {
		t.Fatalf("genesis: %v", err)
	}

	burn := poolEvent(1, "Liquidity", model.LiquidityEventData{
		Maturity:   testTS + oneYear,
		BaseTokens: wad(100).String(),
		BondTokens: wad(110).String(),
		PoolTokens: new(big.Int).Neg(wad(100)).String(),
	})

	record, err := v.Apply(burn)
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if record.Op != model.OpBurn {
		t.Fatalf("op mismatch: %s", record.Op)
	}
	if record.TotalShares != wad(900).String() {
		t.Fatalf("shares mismatch: %s", record.TotalShares)
	}
}
