package bus

import "errors"

var (
	// ErrOversizedMessage indicates a message body exceeded the queue's
	// configured MaxMessageBytes and was rejected: Send first shortens long
	// string fields, and returns this error when the body is still too large
	// or is not JSON and cannot be shortened.
	ErrOversizedMessage = errors.New("bus: message exceeds max size")

	// ErrPriorityNotEnabled indicates SendPriority was called against a
	// queue that has not opted into priority ordering.
	ErrPriorityNotEnabled = errors.New("bus: priority not enabled for queue")

	// ErrCapacityDenied is not returned by the Bus; a Send against a queue at
	// its configured MaxQueueSize fails with ErrQueueFull.
	ErrCapacityDenied = errors.New("bus: queue at capacity")

	// ErrDuplicateAssignment indicates a message with the same dedupe key
	// was already enqueued and has not yet expired.
	ErrDuplicateAssignment = errors.New("bus: duplicate assignment")

	// ErrQueueNotFound is not returned by the Bus; Receive reports an unknown
	// queue and an empty one alike with ErrNoMessage.
	ErrQueueNotFound = errors.New("bus: queue not found")

	// ErrQueueFull indicates a queue is at its configured MaxQueueSize and
	// the enqueue was rejected rather than silently dropping data.
	ErrQueueFull = errors.New("bus: queue at max size")

	// ErrNoMessage indicates Receive was called against an empty queue.
	ErrNoMessage = errors.New("bus: no message available")

	// ErrClosed indicates an operation was attempted on a closed Bus.
	ErrClosed = errors.New("bus: closed")

	// ErrInvalidQueueName indicates a queue name failed ValidateQueueName:
	// it doesn't match [A-Za-z0-9._-]+, or it carries a reserved prefix or
	// suffix that this package's Naming component composes itself.
	ErrInvalidQueueName = errors.New("bus: invalid queue name")
)
