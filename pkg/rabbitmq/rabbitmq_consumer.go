package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	"idp-node/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

type ConsumerAlias string

// ErrPoisonMessage tells the consumer to drop a delivery instead of requeueing it.
var ErrPoisonMessage = errors.New("poison message")

type IRabbitmqConsumer interface {
	StartConsuming(ctx context.Context, handler func(context.Context, amqp.Delivery) error) error
}

type RabbitmqConsumer struct {
	Channel     *amqp.Channel
	QueueName   string
	ConsumerTag string
	Prefetch    int
	logger      *logger.Logger
}

func NewConsumer(ch *amqp.Channel, queueName, consumerTag string, prefetch int, log *logger.Logger) *RabbitmqConsumer {
	return &RabbitmqConsumer{
		Channel:     ch,
		QueueName:   queueName,
		ConsumerTag: consumerTag,
		Prefetch:    prefetch,
		logger:      log,
	}
}

// StartConsuming blocks until ctx is done or the delivery channel closes.
// A delivery is acked only after handler returned nil, so a message is
// redelivered when the node dies before it was persisted.
func (rc *RabbitmqConsumer) StartConsuming(
	ctx context.Context,
	handler func(context.Context, amqp.Delivery) error,
) error {
	if rc.Prefetch > 0 {
		if err := rc.Channel.Qos(rc.Prefetch, 0, false); err != nil {
			return fmt.Errorf("set prefetch for %s: %w", rc.QueueName, err)
		}
	}

	msgs, err := rc.Channel.Consume(
		rc.QueueName,   // queue
		rc.ConsumerTag, // consumer
		false,          // auto-ack
		false,          // exclusive
		false,          // no-local
		false,          // no-wait
		nil,            // args
	)
	if err != nil {
		return fmt.Errorf("register consumer on %s: %w", rc.QueueName, err)
	}

	rc.logger.Infof("Waiting for messages in queue: %s", rc.QueueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", rc.QueueName)
			}
			rc.handleDelivery(ctx, d, handler)
		}
	}
}

func (rc *RabbitmqConsumer) handleDelivery(
	ctx context.Context,
	d amqp.Delivery,
	handler func(context.Context, amqp.Delivery) error,
) {
	defer func() {
		if r := recover(); r != nil {
			rc.logger.Errorf(
				nil,
				"[%s] Recovered from panic for consumer: %s, %v",
				rc.QueueName,
				rc.ConsumerTag,
				r,
			)
			_ = d.Nack(false, false)
		}
	}()

	rc.logger.Debugf("[%s] %s", rc.QueueName, d.Body)

	err := handler(ctx, d)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			rc.logger.Error(ackErr, "Failed to ack delivery")
		}
	case errors.Is(err, ErrPoisonMessage):
		rc.logger.Errorf(err, "[%s] Dropping unprocessable message", rc.QueueName)
		_ = d.Nack(false, false)
	default:
		rc.logger.Errorf(err, "[%s] Message handling failed, requeueing", rc.QueueName)
		_ = d.Nack(false, true)
	}
}
