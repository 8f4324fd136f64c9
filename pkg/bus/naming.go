// Package bus implements the Message Bus (C1): typed durable priority
// queues and pub/sub channels over a pluggable backing store, with TTL,
// oversized-message truncation, retry/DLQ, and at-least-once delivery.
//
// Grounded on the teacher's pkg/queue (poll/claim worker loop style,
// config shape) generalized from session-claiming to generic named
// queues, plus redis/go-redis/v9 (sourced from jordigilh-kubernaut's
// go.mod) for the real backing store.
package bus

import (
	"fmt"
	"regexp"
	"strings"
)

// Naming is the single place that composes every Redis key the bus touches.
// Every Store method receives names built here — by construction this
// rules out the sender/consumer key-mismatch bug class: nothing outside
// this file ever formats a "maestro:..." string by hand.
type Naming struct{}

// QueueKey is the FIFO/priority list key for a named queue.
func (Naming) QueueKey(queue string) string {
	return fmt.Sprintf("maestro:queue:%s", queue)
}

// PriorityKey is the sorted-set key used when a queue has priority enabled.
func (Naming) PriorityKey(queue string) string {
	return fmt.Sprintf("maestro:queue:%s:priority", queue)
}

// DLQKey is the dead-letter queue key for a named queue.
func (Naming) DLQKey(queue string) string {
	return fmt.Sprintf("maestro:queue:%s:dlq", queue)
}

// ConfigKey is the per-queue config override key.
func (Naming) ConfigKey(queue string) string {
	return fmt.Sprintf("maestro:config:queue:%s", queue)
}

// StatsKey is the per-queue stats hash key.
func (Naming) StatsKey(queue string) string {
	return fmt.Sprintf("maestro:stats:%s:stats", queue)
}

// ChannelKey is the pub/sub channel key for a named channel.
func (Naming) ChannelKey(channel string) string {
	return fmt.Sprintf("maestro:channel:%s", channel)
}

// Keys is the package-wide Naming instance; it carries no state so a
// single shared value is sufficient.
var Keys = Naming{}

// queueNamePattern is spec.md §4.1's normative charset for queue names.
var queueNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// reservedQueueSuffixes mirror the suffixes this package appends itself
// (PriorityKey, DLQKey, StatsKey) when composing a Redis key from a queue
// name. The bare colon forms can never appear in a valid queue name (the
// charset excludes ':'), but the dotted forms are reachable and would read
// as though they named the derived key rather than the queue itself.
var reservedQueueSuffixes = []string{".priority", ".dlq", ".stats", ".config"}

// reservedQueuePrefixes are the key-space prefixes this package composes;
// a queue name starting with one would read as a fully-qualified key
// rather than a queue name.
var reservedQueuePrefixes = []string{"maestro."}

// ValidateQueueName reports whether queue is an acceptable name per
// spec.md §4.1: it must match [A-Za-z0-9._-]+ and must not contain a
// reserved prefix or suffix. This is the only place that decides a queue
// name is well-formed; Send, SendPriority, and Receive all call it before
// the name reaches the store.
func ValidateQueueName(queue string) error {
	if queue == "" || !queueNamePattern.MatchString(queue) {
		return fmt.Errorf("%w: %q", ErrInvalidQueueName, queue)
	}
	lower := strings.ToLower(queue)
	for _, prefix := range reservedQueuePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return fmt.Errorf("%w: %q has reserved prefix %q", ErrInvalidQueueName, queue, prefix)
		}
	}
	for _, suffix := range reservedQueueSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return fmt.Errorf("%w: %q has reserved suffix %q", ErrInvalidQueueName, queue, suffix)
		}
	}
	return nil
}
