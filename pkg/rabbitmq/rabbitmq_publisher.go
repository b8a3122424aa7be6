package rabbitmq

import (
	"context"
	"sync"
	"time"

	"idp-node/pkg/utilities"

	amqp "github.com/rabbitmq/amqp091-go"
)

type PublisherAlias string

type IRabbitmqPublisher interface {
	Publish(ctx context.Context, body utilities.Serializable) error
	PublishTo(ctx context.Context, routingKey string, body utilities.Serializable) error
}

type RabbitmqPublisher struct {
	mu         sync.Mutex
	Channel    *amqp.Channel
	Exchange   string
	RoutingKey string
}

func NewPublisher(ch *amqp.Channel, exchange, routingKey string) *RabbitmqPublisher {
	return &RabbitmqPublisher{
		Channel:    ch,
		Exchange:   exchange,
		RoutingKey: routingKey,
	}
}

// Publish sends body with the routing key configured for this publisher.
func (rp *RabbitmqPublisher) Publish(ctx context.Context, body utilities.Serializable) error {
	return rp.PublishTo(ctx, rp.RoutingKey, body)
}

// PublishTo sends body to the publisher's exchange with an explicit routing key.
func (rp *RabbitmqPublisher) PublishTo(ctx context.Context, routingKey string, body utilities.Serializable) error {
	json, err := body.Serialize()
	if err != nil {
		return err
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	return rp.Channel.PublishWithContext(
		ctx,
		rp.Exchange,
		routingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         json,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
}
