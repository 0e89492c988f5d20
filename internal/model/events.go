package model

// TradeEventData is the decoded Trade event payload. Token amounts are
// signed decimal strings in base units from the trader's perspective:
// positive values flowed to the trader, negative values into the pool.
type TradeEventData struct {
	Maturity   uint64 `json:"maturity"`
	From       string `json:"from"`
	To         string `json:"to"`
	BaseTokens string `json:"base_tokens"`
	BondTokens string `json:"bond_tokens"`
}

// LiquidityEventData is the decoded Liquidity event payload. Signs follow
// the same provider-side convention: on mint base and bond tokens are
// negative and PoolTokens is positive, on burn the reverse.
type LiquidityEventData struct {
	Maturity   uint64 `json:"maturity"`
	From       string `json:"from"`
	To         string `json:"to"`
	BaseTokens string `json:"base_tokens"`
	BondTokens string `json:"bond_tokens"`
	PoolTokens string `json:"pool_tokens"`
}
