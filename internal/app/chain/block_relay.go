package chain

import (
	"context"
	"sync"
)

type blockEvent struct {
	height int64
	missed *int64
}

// blockRelay decouples a subscription's receive loop from a slow handler.
// Events that arrive while the handler is busy are merged into one, whose
// missed count spans every block the handler did not see.
type blockRelay struct {
	handler BlockHandler

	mu      sync.Mutex
	pending *blockEvent
	wake    chan struct{}
}

func newBlockRelay(handler BlockHandler) *blockRelay {
	return &blockRelay{handler: handler, wake: make(chan struct{}, 1)}
}

// push never blocks.
func (br *blockRelay) push(height int64, missed *int64) {
	br.mu.Lock()
	if br.pending == nil {
		br.pending = &blockEvent{height: height, missed: missed}
	} else {
		// The handler last saw the block before pending.height - pending.missed.
		if br.pending.missed != nil {
			count := height - br.pending.height + *br.pending.missed
			br.pending.missed = &count
		}
		br.pending.height = height
	}
	br.mu.Unlock()

	select {
	case br.wake <- struct{}{}:
	default:
	}
}

func (br *blockRelay) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-br.wake:
		}

		br.mu.Lock()
		event := br.pending
		br.pending = nil
		br.mu.Unlock()

		if event != nil {
			br.handler(ctx, event.height, event.missed)
		}
	}
}
