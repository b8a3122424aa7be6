package rabbitmq

import (
	"fmt"

	"idp-node/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Registry owns one channel per configured publisher and consumer.
type Registry struct {
	publishers map[PublisherAlias]IRabbitmqPublisher
	consumers  map[ConsumerAlias]IRabbitmqConsumer
}

func NewRegistry(conn *amqp.Connection, cfg RabbitmqConfig, log *logger.Logger) (*Registry, error) {
	registry := &Registry{
		publishers: make(map[PublisherAlias]IRabbitmqPublisher),
		consumers:  make(map[ConsumerAlias]IRabbitmqConsumer),
	}

	for _, publisher := range cfg.PublishersConfig {
		channel, err := conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("open channel for publisher %s: %w", publisher.PublisherAlias, err)
		}

		registry.publishers[publisher.PublisherAlias] = NewPublisher(
			channel,
			publisher.Exchange,
			publisher.RoutingKey,
		)
	}

	for _, consumer := range cfg.ConsumersConfig {
		channel, err := conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("open channel for consumer %s: %w", consumer.ConsumerAlias, err)
		}

		registry.consumers[consumer.ConsumerAlias] = NewConsumer(
			channel,
			consumer.QueueName,
			consumer.ConsumerTag,
			consumer.Prefetch,
			log,
		)
	}

	return registry, nil
}

func (r *Registry) GetPublisher(alias PublisherAlias) (IRabbitmqPublisher, bool) {
	publisher, ok := r.publishers[alias]
	return publisher, ok
}

func (r *Registry) GetConsumer(alias ConsumerAlias) (IRabbitmqConsumer, bool) {
	consumer, ok := r.consumers[alias]
	return consumer, ok
}
