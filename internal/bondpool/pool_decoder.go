package bondpool

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"bondScope/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	Topic0Map map[string]string
}

// PoolDecoder decodes bond pool Trade and Liquidity events.
type PoolDecoder struct {
	poolABI     abi.ABI
	topicToName map[string]string
}

// NewPoolDecoder builds a bond pool decoder.
func NewPoolDecoder(cfg DecoderConfig) (*PoolDecoder, error) {
	poolABI, err := PoolABI()
	if err != nil {
		return nil, err
	}

	topicToName := map[string]string{
		strings.ToLower(poolABI.Events["Trade"].ID.Hex()):     "Trade",
		strings.ToLower(poolABI.Events["Liquidity"].ID.Hex()): "Liquidity",
	}

	for topic0, name := range cfg.Topic0Map {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", original)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &PoolDecoder{
		poolABI:     poolABI,
		topicToName: topicToName,
	}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *PoolDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a PoolEvent.
func (d *PoolDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.PoolEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address: %s", log.Address)
	}
	pool := common.HexToAddress(log.Address)

	poolMeta, err := getPoolMeta(ctx, pool)
	if err != nil {
		return nil, err
	}

	switch name {
	case "Trade":
		decoded, err := d.decodeTrade(log)
		if err != nil {
			return nil, err
		}
		return buildPoolEvent(log, name, decoded, poolMeta), nil
	case "Liquidity":
		decoded, err := d.decodeLiquidity(log)
		if err != nil {
			return nil, err
		}
		return buildPoolEvent(log, name, decoded, poolMeta), nil
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
}

func normalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trade":
		return "Trade"
	case "liquidity":
		return "Liquidity"
	default:
		return ""
	}
}

func getPoolMeta(ctx DecodeContext, pool common.Address) (model.PoolMeta, error) {
	var meta model.PoolMeta
	var ok bool
	if ctx.PoolMetaCache != nil {
		meta, ok = ctx.PoolMetaCache.Get(pool)
	}
	if ok {
		return meta, nil
	}
	if ctx.Chain == nil {
		return model.PoolMeta{}, fmt.Errorf("chain client is nil")
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}

	meta, err := FetchPoolMeta(callCtx, ctx.Chain, pool, ctx.TokenMetaCache, ctx.Logger)
	if err != nil {
		return model.PoolMeta{}, err
	}
	if ctx.PoolMetaCache != nil {
		ctx.PoolMetaCache.Set(pool, meta)
	}
	return meta, nil
}

func buildPoolEvent(log model.LogRecord, name string, decoded interface{}, meta model.PoolMeta) *model.PoolEvent {
	raw := &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data}
	return &model.PoolEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		PoolMeta:    meta,
		Raw:         raw,
	}
}

func (d *PoolDecoder) decodeTrade(log model.LogRecord) (model.TradeEventData, error) {
	event := d.poolABI.Events["Trade"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.TradeEventData{}, err
	}

	var indexed struct {
		From common.Address
		To   common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.TradeEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.TradeEventData{}, err
	}
	if len(values) != 3 {
		return model.TradeEventData{}, fmt.Errorf("unexpected trade values: %d", len(values))
	}

	maturity, err := asBigInt(values[0])
	if err != nil {
		return model.TradeEventData{}, err
	}
	baseTokens, err := asBigInt(values[1])
	if err != nil {
		return model.TradeEventData{}, err
	}
	bondTokens, err := asBigInt(values[2])
	if err != nil {
		return model.TradeEventData{}, err
	}

	return model.TradeEventData{
		Maturity:   maturity.Uint64(),
		From:       indexed.From.Hex(),
		To:         indexed.To.Hex(),
		BaseTokens: baseTokens.String(),
		BondTokens: bondTokens.String(),
	}, nil
}

func (d *PoolDecoder) decodeLiquidity(log model.LogRecord) (model.LiquidityEventData, error) {
	event := d.poolABI.Events["Liquidity"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.LiquidityEventData{}, err
	}

	var indexed struct {
		From common.Address
		To   common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.LiquidityEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.LiquidityEventData{}, err
	}
	if len(values) != 4 {
		return model.LiquidityEventData{}, fmt.Errorf("unexpected liquidity values: %d", len(values))
	}

	maturity, err := asBigInt(values[0])
	if err != nil {
		return model.LiquidityEventData{}, err
	}
	baseTokens, err := asBigInt(values[1])
	if err != nil {
		return model.LiquidityEventData{}, err
	}
	bondTokens, err := asBigInt(values[2])
	if err != nil {
		return model.LiquidityEventData{}, err
	}
	poolTokens, err := asBigInt(values[3])
	if err != nil {
		return model.LiquidityEventData{}, err
	}

	return model.LiquidityEventData{
		Maturity:   maturity.Uint64(),
		From:       indexed.From.Hex(),
		To:         indexed.To.Hex(),
		BaseTokens: baseTokens.String(),
		BondTokens: bondTokens.String(),
		PoolTokens: poolTokens.String(),
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
