package chain

import (
	"context"
	"encoding/json"
)

// TxResult is the outcome of a submission. A chain that is temporarily
// unavailable is not an error: callers keep their state and retry later.
type TxResult struct {
	Committed              bool
	Height                 int64
	TemporarilyUnavailable bool
}

func Committed(height int64) TxResult {
	return TxResult{Committed: true, Height: height}
}

func Unavailable() TxResult {
	return TxResult{TemporarilyUnavailable: true}
}

// BlockHandler receives every new block. missedBlockCount is nil for the
// first block observed by the subscription.
type BlockHandler func(ctx context.Context, height int64, missedBlockCount *int64)

type Gateway interface {
	// Query runs a read-only method and decodes its JSON result into out.
	// It reports false when the chain returned no value.
	Query(ctx context.Context, method string, params any, out any) (bool, error)
	Transact(ctx context.Context, method string, params any, nonce string) (TxResult, error)
	LatestBlockHeight(ctx context.Context) (int64, error)
	// SubscribeNewBlocks blocks until ctx is done or the subscription fails.
	SubscribeNewBlocks(ctx context.Context, handler BlockHandler) error
}

func decodeResult(data []byte, out any) (bool, error) {
	if len(data) == 0 || string(data) == "null" {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}
