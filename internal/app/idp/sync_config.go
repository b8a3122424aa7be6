package idp

type SyncConfigJson struct {
	BlockLag             *int64 `json:"block_lag"`
	ReconcileConcurrency int    `json:"reconcile_concurrency"`
	DispatchConcurrency  int    `json:"dispatch_concurrency"`
}

// SyncConfig tunes block reconciliation. BlockLag is how far the safely
// confirmed frontier trails the announced block height. DispatchConcurrency
// bounds messages dispatched straight from the queue.
type SyncConfig struct {
	BlockLag             int64
	ReconcileConcurrency int
	DispatchConcurrency  int
}

func (scj SyncConfigJson) ConvertToDomain() SyncConfig {
	cfg := SyncConfig{
		BlockLag:             1,
		ReconcileConcurrency: 8,
		DispatchConcurrency:  16,
	}
	if scj.BlockLag != nil && *scj.BlockLag >= 0 {
		cfg.BlockLag = *scj.BlockLag
	}
	if scj.ReconcileConcurrency > 0 {
		cfg.ReconcileConcurrency = scj.ReconcileConcurrency
	}
	if scj.DispatchConcurrency > 0 {
		cfg.DispatchConcurrency = scj.DispatchConcurrency
	}
	return cfg
}
