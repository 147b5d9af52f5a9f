package events

import "errors"

var (
	ErrConsumerDisabled = errors.New("event consumer disabled, AMQP_URL is empty")
	ErrConnectFailed    = errors.New("failed to connect to message broker")
	ErrTopologyFailed   = errors.New("failed to declare broker topology")
	ErrDecodeFailed     = errors.New("failed to decode message body")
)
