package sim

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"

	"go.uber.org/zap"

	"bondScope/internal/curve"
	"bondScope/internal/model"
	"bondScope/internal/pool"
	"bondScope/internal/storage"
)

// RunnerConfig configures a simulation run.
type RunnerConfig struct {
	RunID     string
	Seed      int64
	Ops       int
	Start     uint64 // first operation timestamp
	TimeStep  uint64 // max seconds advanced between operations
	MaxTrade  int64  // max whole tokens per trade
	BatchSize int
	Tolerance *big.Int
}

// Runner feeds a pool a seeded pseudo-random operation sequence, checks the
// invariant after every step and writes op records to storage.
type Runner struct {
	cfg     RunnerConfig
	pool    *pool.Pool
	store   storage.Storage
	logger  *zap.Logger
	checker *Checker
	rng     *rand.Rand
	stats   Stats
}

// NewRunner builds a runner. The store may be nil to run without
// persistence.
func NewRunner(cfg RunnerConfig, p *pool.Pool, store storage.Storage, logger *zap.Logger) (*Runner, error) {
	if p == nil {
		return nil, fmt.Errorf("sim: pool is required")
	}
	if cfg.Ops <= 0 {
		return nil, fmt.Errorf("sim: ops must be positive")
	}
	if cfg.RunID == "" {
		return nil, fmt.Errorf("sim: run id is required")
	}
	if cfg.MaxTrade <= 0 {
		cfg.MaxTrade = 50
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		pool:    p,
		store:   store,
		logger:  logger,
		checker: NewChecker(cfg.Tolerance),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Run executes the configured number of operations. The sequence is fully
// determined by the seed. Rejected operations (slippage, drained reserves,
// maturity) are recorded with their error and do not stop the run; an
// invariant violation does.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	now := r.cfg.Start
	if now == 0 {
		now = 1
	}

	if _, err := r.checker.Observe(r.pool, now); err != nil {
		return r.stats, fmt.Errorf("sim: initial observation: %w", err)
	}

	batch := make([]model.OpRecord, 0, r.cfg.BatchSize)
	for seq := 0; seq < r.cfg.Ops; seq++ {
		if err := ctx.Err(); err != nil {
			return r.stats, err
		}

		if r.cfg.TimeStep > 0 {
			now += uint64(r.rng.Int63n(int64(r.cfg.TimeStep))) + 1
			// Time alone moves the metric; rebaseline before the op.
			r.checker.Reset()
			if _, err := r.checker.Observe(r.pool, now); err != nil {
				if errors.Is(err, curve.ErrPastMaturity) {
					break
				}
				return r.stats, fmt.Errorf("sim: rebaseline: %w", err)
			}
		}

		record := r.step(uint64(seq), now)
		r.stats.observe(record)
		batch = append(batch, record)

		if record.Err == "" {
			drift, err := r.checker.Observe(r.pool, now)
			if err != nil {
				r.stats.Violations++
				return r.stats, fmt.Errorf("sim: op %d (%s): %w", seq, record.Op, err)
			}
			record.Drift = drift.String()
			batch[len(batch)-1] = record
			r.stats.recordDrift(drift)
		}

		if len(batch) >= r.cfg.BatchSize {
			if err := r.flush(ctx, batch); err != nil {
				return r.stats, err
			}
			batch = batch[:0]
		}
	}

	if err := r.flush(ctx, batch); err != nil {
		return r.stats, err
	}

	r.logger.Info("simulation finished",
		zap.String("run_id", r.cfg.RunID),
		zap.Uint64("ops", r.stats.Total),
		zap.Uint64("rejected", r.stats.Rejected),
		zap.String("max_drift", r.stats.MaxDrift.String()),
	)
	return r.stats, nil
}

func (r *Runner) flush(ctx context.Context, batch []model.OpRecord) error {
	if r.store == nil || len(batch) == 0 {
		return nil
	}
	if err := r.store.PutOpBatch(ctx, batch); err != nil {
		return fmt.Errorf("sim: store batch: %w", err)
	}
	return nil
}

// step applies one random operation and returns its record. Errors from the
// pool are captured in the record rather than returned.
func (r *Runner) step(seq, now uint64) model.OpRecord {
	record := model.OpRecord{
		RunID:     r.cfg.RunID,
		Seq:       seq,
		Timestamp: now,
		Drift:     "0",
	}

	amount := r.randAmount()
	record.AmountIn = amount.String()

	var out *big.Int
	var err error
	switch r.rng.Intn(8) {
	case 0:
		record.Op = model.OpMint
		bondIn := r.randAmount()
		var shares, baseUsed, bondUsed *big.Int
		shares, baseUsed, bondUsed, err = r.pool.Mint(now, amount, bondIn)
		if err == nil {
			record.AmountIn = fmt.Sprintf("%s/%s", baseUsed, bondUsed)
			out = shares
		}
		// Proportional fills rebase the per-share metric within tolerance,
		// no reset needed.
	case 1:
		record.Op = model.OpBurn
		shares := r.randShares()
		record.AmountIn = shares.String()
		var baseOut, bondOut *big.Int
		baseOut, bondOut, err = r.pool.Burn(now, shares)
		if err == nil {
			out = new(big.Int).Add(baseOut, bondOut)
		}
	case 2, 3:
		record.Op = model.OpSellBase
		out, err = r.pool.SellBase(now, amount, nil)
	case 4, 5:
		record.Op = model.OpSellBond
		out, err = r.pool.SellBond(now, amount, nil)
	case 6:
		record.Op = model.OpBuyBase
		out, err = r.pool.BuyBase(now, amount, nil)
	default:
		record.Op = model.OpBuyBond
		out, err = r.pool.BuyBond(now, amount, nil)
	}

	if err != nil {
		record.Err = err.Error()
	} else {
		record.AmountOut = out.String()
	}

	record.BaseReserve = r.pool.BaseReserve().String()
	record.BondReserve = r.pool.BondReserve().String()
	record.TotalShares = r.pool.TotalShares().String()
	return record
}

func (r *Runner) randAmount() *big.Int {
	scale := r.pool.Config().Scale
	if scale == nil {
		scale = pool.DefaultScale
	}
	whole := r.rng.Int63n(r.cfg.MaxTrade) + 1
	amount := new(big.Int).Mul(big.NewInt(whole), scale)
	// Jitter below a whole token so rounding paths get exercised.
	amount.Add(amount, new(big.Int).SetInt64(r.rng.Int63n(1_000_000_000)))
	return amount
}

func (r *Runner) randShares() *big.Int {
	total := r.pool.TotalShares()
	if total.Sign() == 0 {
		return big.NewInt(1)
	}
	// Up to a tenth of the supply per burn.
	part := new(big.Int).Quo(total, big.NewInt(10))
	if part.Sign() == 0 {
		return big.NewInt(1)
	}
	n := new(big.Int).Rand(r.rng, part)
	return n.Add(n, big.NewInt(1))
}
