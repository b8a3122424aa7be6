package workers

import (
	"context"
	"fmt"

	"idp-node/pkg/logger"
	"idp-node/pkg/rabbitmq"
	reasoncodes "idp-node/pkg/reason_codes"

	amqp "github.com/rabbitmq/amqp091-go"
)

const queueConsumerName = "IdpIncomingConsumer"

type MessageHandler interface {
	OnQueueMessage(ctx context.Context, raw []byte) error
	ResumeDispatches(ctx context.Context) error
}

// QueueConsumerWorker feeds messages from other nodes into the pipeline,
// after resuming the dispatches a previous run left unfinished.
type QueueConsumerWorker struct {
	consumer rabbitmq.IRabbitmqConsumer
	handler  MessageHandler
	log      *logger.Logger
}

func NewQueueConsumerWorker(consumer rabbitmq.IRabbitmqConsumer, handler MessageHandler, log *logger.Logger) rabbitmq.WorkerService {
	return &QueueConsumerWorker{
		consumer: consumer,
		handler:  handler,
		log:      log.WithStr("worker", queueConsumerName),
	}
}

func (qcw *QueueConsumerWorker) GetServiceName() string {
	return queueConsumerName
}

func (qcw *QueueConsumerWorker) StartService(ctx context.Context) error {
	if err := qcw.handler.ResumeDispatches(ctx); err != nil {
		return fmt.Errorf("resume pending dispatches: %w", err)
	}

	err := qcw.consumer.StartConsuming(ctx, qcw.handle)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (qcw *QueueConsumerWorker) handle(ctx context.Context, d amqp.Delivery) error {
	err := qcw.handler.OnQueueMessage(ctx, d.Body)
	if err == nil {
		return nil
	}

	if code, ok := reasoncodes.CodeOf(err); ok &&
		(code == reasoncodes.ErrUnmarshal || code == reasoncodes.ErrInvalidMessage) {
		return fmt.Errorf("%w: %w", rabbitmq.ErrPoisonMessage, err)
	}
	return err
}
