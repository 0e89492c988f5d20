package sim

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bondScope/internal/model"
	"bondScope/internal/pool"
)

const (
	oneYear   = uint64(31556952)
	fourYears = uint64(126144000)
	startTS   = uint64(1_700_000_000)
)

func wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), pool.DefaultScale)
}

func seededPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.New(pool.Config{
		BaseAsset:   "DAI",
		BondAsset:   "fyDAI",
		Maturity:    startTS + oneYear,
		DecayPeriod: fourYears,
	})
	require.NoError(t, err)
	_, _, _, err = p.Mint(startTS, wad(100000), wad(110000))
	require.NoError(t, err)
	return p
}

type memStore struct {
	mu  sync.Mutex
	ops []model.OpRecord
}

func (m *memStore) PutOpBatch(ctx context.Context, ops []model.OpRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, ops...)
	return nil
}

func TestCheckerStableUnderTrades(t *testing.T) {
	p := seededPool(t)
	c := NewChecker(nil)

	_, err := c.Observe(p, startTS)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := p.SellBase(startTS, wad(25), nil)
		require.NoError(t, err)
		drift, err := c.Observe(p, startTS)
		require.NoError(t, err)
		require.LessOrEqual(t, new(big.Int).Abs(drift).Cmp(DefaultTolerance), 0)
	}
}

func TestCheckerFlagsManipulatedReserves(t *testing.T) {
	p := seededPool(t)
	c := NewChecker(nil)

	m1, err := c.Metric(p, startTS)
	require.NoError(t, err)

	// A second pool with the same shares but fewer reserves stands in for a
	// corrupted state; its metric must differ by far more than the tolerance.
	q, err := pool.New(pool.Config{
		BaseAsset:   "DAI",
		BondAsset:   "fyDAI",
		Maturity:    startTS + oneYear,
		DecayPeriod: fourYears,
	})
	require.NoError(t, err)
	_, _, _, err = q.Mint(startTS, wad(100000), wad(90000))
	require.NoError(t, err)

	m2, err := c.Metric(q, startTS)
	require.NoError(t, err)

	diff := new(big.Int).Sub(m1.Raw(), m2.Raw())
	require.Positive(t, diff.Abs(diff).Cmp(DefaultTolerance))
}

func TestRunnerDeterministic(t *testing.T) {
	run := func() (Stats, []model.OpRecord) {
		p := seededPool(t)
		store := &memStore{}
		r, err := NewRunner(RunnerConfig{
			RunID:    "det",
			Seed:     42,
			Ops:      300,
			Start:    startTS,
			TimeStep: 3600,
			MaxTrade: 100,
		}, p, store, zap.NewNop())
		require.NoError(t, err)
		stats, err := r.Run(context.Background())
		require.NoError(t, err)
		return stats, store.ops
	}

	stats1, ops1 := run()
	stats2, ops2 := run()

	require.Equal(t, stats1.Total, stats2.Total)
	require.Equal(t, stats1.Rejected, stats2.Rejected)
	require.Equal(t, ops1, ops2)
	require.Zero(t, stats1.Violations)
}

func TestRunnerHoldsInvariant(t *testing.T) {
	p := seededPool(t)
	r, err := NewRunner(RunnerConfig{
		RunID:    "hold",
		Seed:     7,
		Ops:      1000,
		Start:    startTS,
		TimeStep: 600,
		MaxTrade: 200,
	}, p, nil, zap.NewNop())
	require.NoError(t, err)

	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Positive(t, stats.Total)
	require.Zero(t, stats.Violations)
	require.LessOrEqual(t, stats.MaxDrift.Cmp(DefaultTolerance), 0)
}

func TestRunnerStopsAtMaturity(t *testing.T) {
	p := seededPool(t)
	// Steps large enough to cross maturity mid-run.
	r, err := NewRunner(RunnerConfig{
		RunID:    "maturity",
		Seed:     1,
		Ops:      100000,
		Start:    startTS,
		TimeStep: oneYear / 16,
		MaxTrade: 10,
	}, p, nil, zap.NewNop())
	require.NoError(t, err)

	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Less(t, stats.Total, uint64(100000))
}

func TestRunnerValidation(t *testing.T) {
	p := seededPool(t)
	_, err := NewRunner(RunnerConfig{RunID: "x", Ops: 0}, p, nil, nil)
	require.Error(t, err)
	_, err = NewRunner(RunnerConfig{Ops: 10}, p, nil, nil)
	require.Error(t, err)
	_, err = NewRunner(RunnerConfig{RunID: "x", Ops: 10}, nil, nil, nil)
	require.Error(t, err)
}
