package model

// BondPool represents a bond pool metadata record for storage.
type BondPool struct {
	ChainID        uint64 `json:"chain_id"`
	Address        string `json:"address"`
	BaseToken      string `json:"base_token"`
	BondToken      string `json:"bond_token"`
	Maturity       uint64 `json:"maturity"`
	FirstSeenBlock uint64 `json:"first_seen_block"`
}

// PoolMeta captures immutable pool metadata attached to decoded events.
type PoolMeta struct {
	BaseToken  string `json:"base_token"`
	BondToken  string `json:"bond_token"`
	BaseSymbol string `json:"base_symbol,omitempty"`
	BondSymbol string `json:"bond_symbol,omitempty"`
	Maturity   uint64 `json:"maturity"`
}

// TokenMeta captures ERC20 metadata.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}
