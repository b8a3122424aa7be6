package rabbitmq

import (
	"context"
	"fmt"
	"time"

	logger_message "idp-node/pkg/utilities/logger"
	"idp-node/pkg/utilities/timeutil"

	"github.com/rs/zerolog"
)

const logPublishTimeout = 2 * time.Second

func CreateRabbitmqLoggerSink(publisher IRabbitmqPublisher, nodeID string) func(string, zerolog.Level, timeutil.TimeUTC) {
	return func(msg string, level zerolog.Level, timestamp timeutil.TimeUTC) {
		loggerMessage := logger_message.LoggerMessage{
			NodeID:    nodeID,
			Level:     level.String(),
			Message:   msg,
			Timestamp: timestamp,
		}

		ctx, cancel := context.WithTimeout(context.Background(), logPublishTimeout)
		defer cancel()

		err := publisher.Publish(ctx, loggerMessage)
		if err != nil {
			// Avoid infinite recursion by not using the logger here
			fmt.Printf("Failed to publish log message to RabbitMQ: %v\n", err)
		}
	}
}
