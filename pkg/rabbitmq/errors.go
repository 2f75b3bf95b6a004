package rabbitmq

import "errors"

var (
	ErrNotConnected       = errors.New("rabbitmq connection is not available")
	ErrPublishNacked      = errors.New("rabbitmq broker rejected the publish")
	ErrDeliveriesClosed   = errors.New("rabbitmq delivery channel closed")
	errUnknownDisposition = errors.New("unknown delivery disposition")
)
