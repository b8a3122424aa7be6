// Package chaintest provides an in-memory Gateway for tests.
package chaintest

import (
	"context"
	"encoding/json"
	"sync"

	"idp-node/internal/app/chain"
)

type QueryFunc func(params json.RawMessage) (any, bool, error)

type RecordedTx struct {
	Method string
	Params json.RawMessage
	Nonce  string
}

func (rt RecordedTx) Decode(out any) error {
	return json.Unmarshal(rt.Params, out)
}

type BlockEvent struct {
	Height int64
	Missed *int64
}

type FakeGateway struct {
	mu sync.Mutex

	height       int64
	queries      map[string]QueryFunc
	queryCounts  map[string]int
	transactions []RecordedTx
	unavailable  bool
	transactErr  error
	commitHeight int64

	Blocks chan BlockEvent
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		queries:      make(map[string]QueryFunc),
		queryCounts:  make(map[string]int),
		commitHeight: 1000,
		Blocks:       make(chan BlockEvent, 16),
	}
}

func (fg *FakeGateway) SetHeight(height int64) {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	fg.height = height
}

func (fg *FakeGateway) SetUnavailable(unavailable bool) {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	fg.unavailable = unavailable
}

func (fg *FakeGateway) SetTransactError(err error) {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	fg.transactErr = err
}

func (fg *FakeGateway) SetCommitHeight(height int64) {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	fg.commitHeight = height
}

// OnQuery registers the handler for method.
func (fg *FakeGateway) OnQuery(method string, fn QueryFunc) {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	fg.queries[method] = fn
}

// Returns registers a fixed result for method.
func (fg *FakeGateway) Returns(method string, result any) {
	fg.OnQuery(method, func(json.RawMessage) (any, bool, error) {
		return result, true, nil
	})
}

func (fg *FakeGateway) QueryCount(method string) int {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	return fg.queryCounts[method]
}

func (fg *FakeGateway) Transactions(method string) []RecordedTx {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	var txs []RecordedTx
	for _, tx := range fg.transactions {
		if method == "" || tx.Method == method {
			txs = append(txs, tx)
		}
	}
	return txs
}

func (fg *FakeGateway) Query(_ context.Context, method string, params any, out any) (bool, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return false, err
	}

	fg.mu.Lock()
	fg.queryCounts[method]++
	fn, ok := fg.queries[method]
	fg.mu.Unlock()
	if !ok {
		return false, nil
	}

	result, found, err := fn(encoded)
	if err != nil || !found {
		return false, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, out)
}

func (fg *FakeGateway) Transact(_ context.Context, method string, params any, nonce string) (chain.TxResult, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return chain.TxResult{}, err
	}

	fg.mu.Lock()
	defer fg.mu.Unlock()
	if fg.unavailable {
		return chain.Unavailable(), nil
	}
	if fg.transactErr != nil {
		return chain.TxResult{}, fg.transactErr
	}

	fg.transactions = append(fg.transactions, RecordedTx{Method: method, Params: encoded, Nonce: nonce})
	return chain.Committed(fg.commitHeight), nil
}

func (fg *FakeGateway) LatestBlockHeight(context.Context) (int64, error) {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	return fg.height, nil
}

func (fg *FakeGateway) SubscribeNewBlocks(ctx context.Context, handler chain.BlockHandler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-fg.Blocks:
			fg.SetHeight(event.Height)
			handler(ctx, event.Height, event.Missed)
		}
	}
}
