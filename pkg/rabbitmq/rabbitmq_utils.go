package rabbitmq

import (
	"fmt"
	"math"
	"time"

	"idp-node/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const maxConnectRetries = 7

// ConnectToRabbitmq dials the broker, backing off exponentially between attempts.
func ConnectToRabbitmq(cfg RabbitmqConfig) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	waitTime := 1 * time.Second

	queueLogger := logger.Default()

	connectionString := fmt.Sprintf("amqp://%s:%s@%s:%d/", cfg.User, cfg.Password, cfg.Host, cfg.Port)
	for i := 0; i < maxConnectRetries; i++ {
		conn, err = amqp.Dial(connectionString)
		if err == nil {
			return conn, nil
		}
		queueLogger.Warnf("Attempt %d failed: %v. Retrying in %v...", i+1, err, waitTime)
		time.Sleep(waitTime)
		waitTime = time.Duration(math.Pow(2, float64(i+1))) * time.Second
	}
	return nil, err
}

// CreateNewExchange declares a durable exchange
func CreateNewExchange(ch *amqp.Channel, exchangeConfig RabbitmqExchangeConfig) error {
	return ch.ExchangeDeclare(
		exchangeConfig.ExchangeName,          // name
		exchangeConfig.ExchangeType.String(), // type
		true,                                 // durable
		false,                                // auto-deleted
		false,                                // internal
		false,                                // no-wait
		nil,                                  // arguments
	)
}

// CreateNewQueue declares a queue with given durability/exclusivity
func CreateNewQueue(ch *amqp.Channel, queueConfig RabbitmqQueueConfig) (amqp.Queue, error) {
	return ch.QueueDeclare(
		queueConfig.QueueName, // name
		queueConfig.Durable,   // durable
		false,                 // delete when unused
		queueConfig.Exclusive, // exclusive
		false,                 // no-wait
		nil,                   // arguments
	)
}

// BindQueueToExchange binds a queue to an exchange with a routing key
func BindQueueToExchange(ch *amqp.Channel, queueConfig RabbitmqQueueConfig) error {
	return ch.QueueBind(
		queueConfig.QueueName,       // queue name
		queueConfig.RoutingKey,      // routing key
		queueConfig.ExchangeBinding, // exchange
		false,
		nil,
	)
}

// SetupTopology declares every configured exchange and queue and binds them.
func SetupTopology(conn *amqp.Connection, rabbitmqConfig RabbitmqConfig) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	for _, exchangeConf := range rabbitmqConfig.Exchanges {
		if err := CreateNewExchange(ch, exchangeConf); err != nil {
			return fmt.Errorf("declare exchange %s: %w", exchangeConf.ExchangeName, err)
		}
	}

	for _, queueConf := range rabbitmqConfig.Queues {
		if _, err := CreateNewQueue(ch, queueConf); err != nil {
			return fmt.Errorf("declare queue %s: %w", queueConf.QueueName, err)
		}

		if queueConf.ExchangeBinding == "" {
			continue
		}
		if err := BindQueueToExchange(ch, queueConf); err != nil {
			return fmt.Errorf("bind queue %s: %w", queueConf.QueueName, err)
		}
	}

	return nil
}
