package sim

import (
	"math/big"

	"bondScope/internal/model"
)

// Stats summarizes a simulation run. MaxDrift is the largest absolute
// per-operation drift seen, in raw 64.64 units.
type Stats struct {
	Total      uint64
	Rejected   uint64
	Violations uint64
	ByOp       map[string]uint64
	MaxDrift   *big.Int
}

func (s *Stats) observe(record model.OpRecord) {
	if s.ByOp == nil {
		s.ByOp = make(map[string]uint64)
	}
	if s.MaxDrift == nil {
		s.MaxDrift = big.NewInt(0)
	}
	s.Total++
	s.ByOp[record.Op]++
	if record.Err != "" {
		s.Rejected++
	}
}

func (s *Stats) recordDrift(drift *big.Int) {
	abs := new(big.Int).Abs(drift)
	if s.MaxDrift == nil || abs.Cmp(s.MaxDrift) > 0 {
		s.MaxDrift = abs
	}
}
