package workers

import (
	"context"
	"time"

	"idp-node/internal/app/chain"
	"idp-node/pkg/logger"
	"idp-node/pkg/rabbitmq"

	"github.com/cenkalti/backoff/v4"
)

const (
	blockSubscriberName = "BlockSubscriber"
	// healthySubscription is how long a subscription has to live before a
	// failure starts the reconnect backoff from scratch.
	healthySubscription = time.Minute
)

type BlockSource interface {
	SubscribeNewBlocks(ctx context.Context, handler chain.BlockHandler) error
}

// BlockSubscriberWorker keeps a new block subscription open and reconnects
// with backoff when it drops.
type BlockSubscriberWorker struct {
	source     BlockSource
	handler    chain.BlockHandler
	newBackOff func() backoff.BackOff
	log        *logger.Logger
}

func NewBlockSubscriberWorker(source BlockSource, handler chain.BlockHandler, log *logger.Logger) rabbitmq.WorkerService {
	return &BlockSubscriberWorker{
		source:  source,
		handler: handler,
		newBackOff: func() backoff.BackOff {
			policy := backoff.NewExponentialBackOff()
			policy.MaxInterval = 30 * time.Second
			policy.MaxElapsedTime = 0
			return policy
		},
		log: log.WithStr("worker", blockSubscriberName),
	}
}

func (bsw *BlockSubscriberWorker) GetServiceName() string {
	return blockSubscriberName
}

func (bsw *BlockSubscriberWorker) StartService(ctx context.Context) error {
	policy := bsw.newBackOff()

	for {
		started := time.Now()
		err := bsw.source.SubscribeNewBlocks(ctx, bsw.handler)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > healthySubscription {
			policy.Reset()
		}

		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		bsw.log.Errorf(err, "Block subscription ended, reconnecting in %s", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}
