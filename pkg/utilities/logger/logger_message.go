package logger_message

import (
	"idp-node/pkg/utilities"
	"idp-node/pkg/utilities/timeutil"
)

type LoggerMessage struct {
	NodeID    string           `json:"node_id"`
	Level     string           `json:"level"`
	Message   string           `json:"message"`
	Timestamp timeutil.TimeUTC `json:"timestamp"`
}

func (lm LoggerMessage) Serialize() ([]byte, error) {
	return utilities.Serialize[LoggerMessage](lm)
}
