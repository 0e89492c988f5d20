// Package replay streams bond pool events from a chain, mirrors each pool's
// reserves in memory and checks that every on-chain trade respects the
// trading curve.
package replay

import (
	"errors"
	"fmt"
	"math/big"

	"bondScope/internal/curve"
	"bondScope/internal/fixed"
	"bondScope/internal/model"
	"bondScope/internal/pool"
	"bondScope/internal/sim"
)

// ErrVerification marks an event whose effect on the reserves moved the
// invariant beyond the tolerance.
var ErrVerification = errors.New("replay: curve verification failed")

// poolState mirrors one pool's reserves and share supply.
type poolState struct {
	base     *big.Int
	bond     *big.Int
	shares   *big.Int
	maturity uint64
	k        fixed.Fixed
}

// VerifierConfig configures the shadow replay.
type VerifierConfig struct {
	DecayPeriod uint64
	Scale       *big.Int // base units per whole token; pool.DefaultScale when nil
	Tolerance   *big.Int // raw 64.64; sim.DefaultTolerance when nil
}

// Verifier applies decoded pool events to shadow reserves and flags
// invariant violations. It is not safe for concurrent use.
type Verifier struct {
	cfg       VerifierConfig
	scale     *big.Int
	tolerance *big.Int
	states    map[string]*poolState
	pending   []model.BondPool
	seq       uint64
}

func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.DecayPeriod == 0 {
		return nil, fmt.Errorf("replay: decay period is required")
	}
	scale := cfg.Scale
	if scale == nil {
		scale = pool.DefaultScale
	}
	tolerance := cfg.Tolerance
	if tolerance == nil {
		tolerance = sim.DefaultTolerance
	}
	return &Verifier{
		cfg:       cfg,
		scale:     new(big.Int).Set(scale),
		tolerance: new(big.Int).Set(tolerance),
		states:    make(map[string]*poolState),
	}, nil
}

// Apply folds one decoded event into the shadow state and returns the op
// record describing it. Verification failures are returned both in the
// record's Err field and as an error wrapping ErrVerification; state is
// still advanced so later events stay comparable.
func (v *Verifier) Apply(event *model.PoolEvent) (model.OpRecord, error) {
	record := model.OpRecord{
		RunID:       fmt.Sprintf("replay-%d", event.ChainID),
		Seq:         v.seq,
		Timestamp:   event.Timestamp,
		Drift:       "0",
		PoolAddress: event.Address,
		BlockNumber: event.BlockNumber,
		TxHash:      event.TxHash,
		LogIndex:    event.LogIndex,
	}
	v.seq++

	switch data := event.Decoded.(type) {
	case model.TradeEventData:
		return v.applyTrade(record, event, data)
	case model.LiquidityEventData:
		return v.applyLiquidity(record, event, data)
	default:
		record.Err = fmt.Sprintf("unsupported event payload %T", event.Decoded)
		return record, fmt.Errorf("replay: %s", record.Err)
	}
}

func (v *Verifier) applyTrade(record model.OpRecord, event *model.PoolEvent, data model.TradeEventData) (model.OpRecord, error) {
	baseDelta, err := parseSigned(data.BaseTokens)
	if err != nil {
		record.Err = err.Error()
		return record, fmt.Errorf("replay: base tokens: %w", err)
	}
	bondDelta, err := parseSigned(data.BondTokens)
	if err != nil {
		record.Err = err.Error()
		return record, fmt.Errorf("replay: bond tokens: %w", err)
	}

	st, ok := v.states[event.Address]
	if !ok {
		record.Err = "trade before first liquidity event"
		return record, fmt.Errorf("replay: %s for %s", record.Err, event.Address)
	}

	// Event amounts are trader-side; the pool balance moves the other way.
	if bondDelta.Sign() > 0 {
		record.Op = model.OpSellBase
		record.AmountIn = new(big.Int).Neg(baseDelta).String()
		record.AmountOut = bondDelta.String()
	} else {
		record.Op = model.OpSellBond
		record.AmountIn = new(big.Int).Neg(bondDelta).String()
		record.AmountOut = baseDelta.String()
	}

	before, beforeErr := v.metric(st, event.Timestamp)

	st.base.Sub(st.base, baseDelta)
	st.bond.Sub(st.bond, bondDelta)
	v.fillState(&record, st)

	if st.base.Sign() <= 0 || st.bond.Sign() <= 0 {
		record.Err = "trade drained a reserve"
		return record, fmt.Errorf("replay: %s at block %d: %w", record.Err, event.BlockNumber, ErrVerification)
	}
	if beforeErr != nil {
		record.Err = beforeErr.Error()
		return record, fmt.Errorf("replay: metric before trade: %w", beforeErr)
	}

	after, err := v.metric(st, event.Timestamp)
	if err != nil {
		record.Err = err.Error()
		return record, fmt.Errorf("replay: metric after trade: %w", err)
	}

	drift := new(big.Int).Sub(after.Raw(), before.Raw())
	record.Drift = drift.String()
	if new(big.Int).Abs(drift).Cmp(v.tolerance) > 0 {
		record.Err = fmt.Sprintf("invariant drift %s exceeds tolerance %s", drift, v.tolerance)
		return record, fmt.Errorf("replay: block %d tx %s: %s: %w", event.BlockNumber, event.TxHash, record.Err, ErrVerification)
	}
	return record, nil
}

func (v *Verifier) applyLiquidity(record model.OpRecord, event *model.PoolEvent, data model.LiquidityEventData) (model.OpRecord, error) {
	baseDelta, err := parseSigned(data.BaseTokens)
	if err != nil {
		record.Err = err.Error()
		return record, fmt.Errorf("replay: base tokens: %w", err)
	}
	bondDelta, err := parseSigned(data.BondTokens)
	if err != nil {
		record.Err = err.Error()
		return record, fmt.Errorf("replay: bond tokens: %w", err)
	}
	poolDelta, err := parseSigned(data.PoolTokens)
	if err != nil {
		record.Err = err.Error()
		return record, fmt.Errorf("replay: pool tokens: %w", err)
	}

	if poolDelta.Sign() > 0 {
		record.Op = model.OpMint
		record.AmountIn = fmt.Sprintf("%s/%s", new(big.Int).Neg(baseDelta), new(big.Int).Neg(bondDelta))
		record.AmountOut = poolDelta.String()
	} else {
		record.Op = model.OpBurn
		record.AmountIn = new(big.Int).Neg(poolDelta).String()
		record.AmountOut = fmt.Sprintf("%s/%s", baseDelta, bondDelta)
	}

	st, ok := v.states[event.Address]
	if !ok {
		st = &poolState{
			base:     big.NewInt(0),
			bond:     big.NewInt(0),
			shares:   big.NewInt(0),
			maturity: event.PoolMeta.Maturity,
		}
		st.k, err = fixed.FromFraction(1, int64(v.cfg.DecayPeriod))
		if err != nil {
			record.Err = err.Error()
			return record, fmt.Errorf("replay: decay constant: %w", err)
		}
		v.states[event.Address] = st
		v.pending = append(v.pending, model.BondPool{
			ChainID:        event.ChainID,
			Address:        event.Address,
			BaseToken:      event.PoolMeta.BaseToken,
			BondToken:      event.PoolMeta.BondToken,
			Maturity:       event.PoolMeta.Maturity,
			FirstSeenBlock: event.BlockNumber,
		})
	}

	hadShares := st.shares.Sign() > 0
	var before fixed.Fixed
	if hadShares {
		before, err = v.metric(st, event.Timestamp)
		if err != nil {
			record.Err = err.Error()
			return record, fmt.Errorf("replay: metric before liquidity: %w", err)
		}
	}

	st.base.Sub(st.base, baseDelta)
	st.bond.Sub(st.bond, bondDelta)
	st.shares.Add(st.shares, poolDelta)
	v.fillState(&record, st)

	if st.base.Sign() < 0 || st.bond.Sign() < 0 || st.shares.Sign() < 0 {
		record.Err = "liquidity event produced negative state"
		return record, fmt.Errorf("replay: %s at block %d: %w", record.Err, event.BlockNumber, ErrVerification)
	}
	if !hadShares || st.shares.Sign() == 0 {
		return record, nil
	}

	// Proportional mints and burns leave the per-share metric unchanged.
	after, err := v.metric(st, event.Timestamp)
	if err != nil {
		record.Err = err.Error()
		return record, fmt.Errorf("replay: metric after liquidity: %w", err)
	}
	drift := new(big.Int).Sub(after.Raw(), before.Raw())
	record.Drift = drift.String()
	if new(big.Int).Abs(drift).Cmp(v.tolerance) > 0 {
		record.Err = fmt.Sprintf("invariant drift %s exceeds tolerance %s", drift, v.tolerance)
		return record, fmt.Errorf("replay: block %d tx %s: %s: %w", event.BlockNumber, event.TxHash, record.Err, ErrVerification)
	}
	return record, nil
}

// DrainNewPools returns pools first seen since the previous call.
func (v *Verifier) DrainNewPools() []model.BondPool {
	pools := v.pending
	v.pending = nil
	return pools
}

func (v *Verifier) metric(st *poolState, now uint64) (fixed.Fixed, error) {
	a, err := curve.Exponent(now, st.maturity, st.k)
	if err != nil {
		return fixed.Fixed{}, err
	}
	base, err := fixed.FromUnits(st.base, v.scale)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("base reserve: %w", err)
	}
	bond, err := fixed.FromUnits(st.bond, v.scale)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("bond reserve: %w", err)
	}
	inv, err := curve.Invariant(base, bond, a)
	if err != nil {
		return fixed.Fixed{}, err
	}
	shares, err := fixed.FromUnits(st.shares, v.scale)
	if err != nil {
		return fixed.Fixed{}, fmt.Errorf("shares: %w", err)
	}
	return fixed.Div(inv, shares)
}

func (v *Verifier) fillState(record *model.OpRecord, st *poolState) {
	record.BaseReserve = st.base.String()
	record.BondReserve = st.bond.String()
	record.TotalShares = st.shares.String()
}

func parseSigned(s string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return value, nil
}
