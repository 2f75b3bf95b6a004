package worker

import (
	"errors"
	"fmt"

	"medbook/pkg/rabbitmq"
)

// PoisonMessageError marks a work item that can never be processed.
type PoisonMessageError struct {
	Reason string
	Err    error
}

func (e *PoisonMessageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("poison message: %s: %v", e.Reason, e.Err)
	}
	return "poison message: " + e.Reason
}

func (e *PoisonMessageError) Unwrap() error {
	return e.Err
}

// TransientError marks a failure that may succeed on redelivery.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func poison(reason string, err error) error {
	return &PoisonMessageError{Reason: reason, Err: err}
}

func transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// dispositionFor maps a processing result to what happens to the delivery.
// Unclassified errors are retried.
func dispositionFor(err error) rabbitmq.Disposition {
	if err == nil {
		return rabbitmq.Ack
	}
	var poisonErr *PoisonMessageError
	if errors.As(err, &poisonErr) {
		return rabbitmq.Reject
	}
	return rabbitmq.Requeue
}
