package bondpool

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"bondScope/internal/model"
)

func TestPoolDecoderTrade(t *testing.T) {
	poolABI, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	poolMetaCache := NewPoolMetaCache()
	poolMetaCache.Set(pool, model.PoolMeta{
		BaseToken: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		BondToken: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Maturity:  1735689600,
	})

	decoder, err := NewPoolDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	ctx := DecodeContext{
		PoolMetaCache: poolMetaCache,
		Logger:        zap.NewNop(),
	}

	from := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data, err := poolABI.Events["Trade"].Inputs.NonIndexed().Pack(
		uint32(1735689600),
		big.NewInt(10000),
		big.NewInt(-10241),
	)
	if err != nil {
		t.Fatalf("pack trade: %v", err)
	}

	logRecord := buildLogRecord(pool, poolABI.Events["Trade"].ID, data, []common.Hash{
		topicFromAddress(from),
		topicFromAddress(to),
	})

	event, err := decoder.Decode(logRecord, ctx)
	if err != nil {
		t.Fatalf("decode trade: %v", err)
	}

	trade, ok := event.Decoded.(model.TradeEventData)
	if !ok {
		t.Fatalf("decoded type mismatch")
	}

	if trade.BaseTokens != "10000" || trade.BondTokens != "-10241" {
		t.Fatalf("amounts mismatch: %+v", trade)
	}
	if trade.Maturity != 1735689600 {
		t.Fatalf("maturity mismatch: %d", trade.Maturity)
	}
	if trade.From != from.Hex() || trade.To != to.Hex() {
		t.Fatalf("address mismatch")
	}
	if event.PoolMeta.Maturity != 1735689600 {
		t.Fatalf("pool meta mismatch")
	}
}

func TestPoolDecoderLiquidity(t *testing.T) {
	poolABI, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	pool := common.HexToAddress("0x9999999999999999999999999999999999999999")
	poolMetaCache := NewPoolMetaCache()
	poolMetaCache.Set(pool, model.PoolMeta{
		BaseToken: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		BondToken: "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Maturity:  1735689600,
	})

	decoder, err := NewPoolDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	ctx := DecodeContext{
		PoolMetaCache: poolMetaCache,
		Logger:        zap.NewNop(),
	}

	from := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	to := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	mintData, err := poolABI.Events["Liquidity"].Inputs.NonIndexed().Pack(
		uint32(1735689600),
		big.NewInt(-1000),
		big.NewInt(-1100),
		big.NewInt(1000),
	)
	if err != nil {
		t.Fatalf("pack liquidity: %v", err)
	}

	mintLog := buildLogRecord(pool, poolABI.Events["Liquidity"].ID, mintData, []common.Hash{
		topicFromAddress(from),
		topicFromAddress(to),
	})

	event, err := decoder.Decode(mintLog, ctx)
	if err != nil {
		t.Fatalf("decode liquidity: %v", err)
	}

	liq, ok := event.Decoded.(model.LiquidityEventData)
	if !ok {
		t.Fatalf("liquidity type mismatch")
	}
	if liq.PoolTokens != "1000" {
		t.Fatalf("pool tokens mismatch: %+v", liq)
	}
	if liq.BaseTokens != "-1000" || liq.BondTokens != "-1100" {
		t.Fatalf("amounts mismatch: %+v", liq)
	}

	burnLog := buildLogRecord(pool, poolABI.Events["Trade"].ID, nil, []common.Hash{
		topicFromAddress(from),
	})
	if _, err := decoder.Decode(burnLog, ctx); err == nil {
		t.Fatalf("expected topic count error")
	}
}

func TestPoolDecoderUnsupportedTopic(t *testing.T) {
	decoder, err := NewPoolDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if decoder.CanDecode("0x0000000000000000000000000000000000000000000000000000000000000001") {
		t.Fatalf("unknown topic should not decode")
	}
	if decoder.CanDecode("") {
		t.Fatalf("empty topic should not decode")
	}
}

func buildLogRecord(pool common.Address, topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     1,
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		LogIndex:    1,
		Address:     pool.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
