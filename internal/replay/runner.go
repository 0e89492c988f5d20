package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"bondScope/internal/bondpool"
	"bondScope/internal/chain"
	"bondScope/internal/model"
	"bondScope/internal/storage"
)

// RunConfig holds runtime settings for the replay loop.
type RunConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	Addresses         []common.Address
	Topic0            []common.Hash
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration

	// Strict stops the run on the first verification failure instead of
	// recording it and continuing.
	Strict bool
}

// DecodeErrorSink receives logs the decoder rejected.
type DecodeErrorSink func(model.DecodeError)

// PoolSink persists metadata for pools discovered during replay.
type PoolSink interface {
	UpsertPools(ctx context.Context, pools []model.BondPool) error
}

// Runner streams pool logs from the chain, decodes them and feeds the
// verifier, persisting one op record per event.
type Runner struct {
	cfg      RunConfig
	chain    *chain.Client
	decoder  bondpool.Decoder
	verifier *Verifier
	storage  storage.Storage
	pools    PoolSink
	logger   *zap.Logger
	onDecode DecodeErrorSink
	seen     map[string]struct{}
	cursor   Cursor
}

// NewRunner builds a Runner with its dependencies. poolSink, cursor and
// onDecode may be nil; a nil cursor falls back to the file checkpoint
// named in cfg.
func NewRunner(cfg RunConfig, chainClient *chain.Client, decoder bondpool.Decoder, verifier *Verifier, storageSink storage.Storage, poolSink PoolSink, cursor Cursor, logger *zap.Logger, onDecode DecodeErrorSink) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cursor == nil {
		cursor = NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled)
	}
	return &Runner{
		cfg:      cfg,
		chain:    chainClient,
		decoder:  decoder,
		verifier: verifier,
		storage:  storageSink,
		pools:    poolSink,
		logger:   logger,
		onDecode: onDecode,
		seen:     make(map[string]struct{}),
		cursor:   cursor,
	}
}

// Run executes the replay loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.decoder == nil {
		return fmt.Errorf("decoder is nil")
	}
	if r.verifier == nil {
		return fmt.Errorf("verifier is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}

	chainID, err := r.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	decodeCtx := bondpool.DecodeContext{
		Context:        ctx,
		Chain:          r.chain,
		PoolMetaCache:  bondpool.NewPoolMetaCache(),
		TokenMetaCache: bondpool.NewTokenMetaCache(),
		Logger:         r.logger,
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	start, resumed, err := resolveStart(ctx, r.cursor, from)
	if err != nil {
		return err
	}
	if resumed {
		r.logger.Info("resume from cursor", zap.Uint64("last_processed", start-1), zap.Uint64("from", start))
	}
	from = start

	if from > to {
		r.logger.Info("nothing to replay", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	var violations uint64
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		ingestedAt := time.Now().UTC()
		records := make([]model.OpRecord, 0, len(logs))
		for _, log := range logs {
			if r.isDuplicate(log) {
				continue
			}
			if len(log.Topics) == 0 || !r.decoder.CanDecode(log.Topics[0].Hex()) {
				continue
			}

			ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}

			logRecord := buildLogRecord(chainIDValue, log, ts, ingestedAt)
			event, err := r.decoder.Decode(logRecord, decodeCtx)
			if err != nil {
				r.reportDecodeError(logRecord, err)
				continue
			}

			opRecord, err := r.verifier.Apply(event)
			if err != nil && errors.Is(err, ErrVerification) {
				violations++
				r.logger.Warn("curve verification failed",
					zap.Uint64("block", event.BlockNumber),
					zap.String("tx", event.TxHash),
					zap.String("pool", event.Address),
					zap.String("detail", opRecord.Err),
				)
				if r.cfg.Strict {
					records = append(records, opRecord)
					if storeErr := r.storage.PutOpBatch(ctx, records); storeErr != nil {
						return fmt.Errorf("store ops: %w", storeErr)
					}
					return err
				}
			} else if err != nil {
				r.logger.Warn("event skipped", zap.String("tx", event.TxHash), zap.Error(err))
			}
			records = append(records, opRecord)
		}

		if err := r.storage.PutOpBatch(ctx, records); err != nil {
			return fmt.Errorf("store ops: %w", err)
		}

		if r.pools != nil {
			if newPools := r.verifier.DrainNewPools(); len(newPools) > 0 {
				if err := r.pools.UpsertPools(ctx, newPools); err != nil {
					return fmt.Errorf("store pools: %w", err)
				}
			}
		}

		if r.cursor != nil {
			if err := r.cursor.Save(ctx, blockRange.To); err != nil {
				return fmt.Errorf("save cursor: %w", err)
			}
		}

		r.logger.Info("batch complete", zap.Int("ops", len(records)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	r.logger.Info("replay finished", zap.Uint64("violations", violations))
	return nil
}

// resolveStart advances the configured start block past whatever the
// cursor already covered.
func resolveStart(ctx context.Context, cursor Cursor, from uint64) (uint64, bool, error) {
	if cursor == nil {
		return from, false, nil
	}
	last, ok, err := cursor.Load(ctx)
	if err != nil {
		return 0, false, err
	}
	if !ok || last < from {
		return from, false, nil
	}
	return last + 1, true, nil
}

func (r *Runner) reportDecodeError(logRecord model.LogRecord, err error) {
	topic0 := ""
	if len(logRecord.Topics) > 0 {
		topic0 = logRecord.Topics[0]
	}
	r.logger.Warn("decode failed",
		zap.Uint64("block", logRecord.BlockNumber),
		zap.String("tx", logRecord.TxHash),
		zap.Error(err),
	)
	if r.onDecode != nil {
		r.onDecode(model.DecodeError{
			ChainID:     logRecord.ChainID,
			BlockNumber: logRecord.BlockNumber,
			TxHash:      logRecord.TxHash,
			LogIndex:    logRecord.LogIndex,
			Address:     logRecord.Address,
			Topic0:      topic0,
			Error:       err.Error(),
		})
	}
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, r.cfg.Addresses, r.cfg.Topic0)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
