package model

// Op names for OpRecord.
const (
	OpMint     = "mint"
	OpBurn     = "burn"
	OpSellBase = "sell_base"
	OpSellBond = "sell_bond"
	OpBuyBase  = "buy_base"
	OpBuyBond  = "buy_bond"
)

// OpRecord is one applied pool operation with the resulting state, the unit
// every sink persists. Amounts are decimal strings in base units so values
// above 2^63 survive JSON and SQL unchanged. Drift is the signed change of
// the invariant-per-share metric across the operation, in raw 64.64 units.
type OpRecord struct {
	RunID       string `json:"run_id"`
	Seq         uint64 `json:"seq"`
	Op          string `json:"op"`
	Timestamp   uint64 `json:"timestamp"`
	AmountIn    string `json:"amount_in"`
	AmountOut   string `json:"amount_out"`
	BaseReserve string `json:"base_reserve"`
	BondReserve string `json:"bond_reserve"`
	TotalShares string `json:"total_shares"`
	Drift       string `json:"drift"`
	Err         string `json:"err,omitempty"`

	// Set on replay records only.
	PoolAddress string `json:"pool_address,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"`
	LogIndex    uint64 `json:"log_index,omitempty"`
}
