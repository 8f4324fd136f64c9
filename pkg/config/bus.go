package config

import (
	"time"

	"github.com/ensemble-maestro/swarm/pkg/swarmtypes"
)

// BusConfig configures the Message Bus's backing store and default queue
// behavior (TTL, truncation, DLQ). Per-queue overrides live in
// QueueOverride entries keyed by queue name.
type BusConfig struct {
	// Backend selects redis or memory.
	Backend BusBackend `yaml:"backend" validate:"required"`

	// RedisAddr is the host:port of the backing Redis instance, used when
	// Backend is redis.
	RedisAddr string `yaml:"redis_addr,omitempty"`
	RedisDB   int    `yaml:"redis_db,omitempty"`

	// DefaultTTL is how long an undelivered message stays queued; Receive
	// drops expired messages (they do not go to the DLQ). Zero means no
	// expiry; a negative value expires a message as soon as it is sent.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// MaxMessageBytes messages over this size are truncated per spec's
	// oversized-message handling; zero means no limit.
	MaxMessageBytes int `yaml:"max_message_bytes,omitempty"`

	// MaxQueueSize caps the number of items a queue (FIFO + priority
	// combined) will hold; Send fails with ErrQueueFull once reached.
	// Zero means unbounded.
	MaxQueueSize int `yaml:"max_queue_size,omitempty"`

	// MaxDeliveryAttempts is the number of deliveries after which a Nack
	// routes the message to the dead-letter queue.
	MaxDeliveryAttempts int `yaml:"max_delivery_attempts"`

	// PriorityEnabled queues default to priority ordering when true; a
	// queue that hasn't opted in rejects SendPriority with
	// ErrPriorityNotEnabled unless overridden per-queue.
	PriorityEnabled bool `yaml:"priority_enabled"`

	// Overrides is a per-queue-name map of field overrides.
	Overrides map[string]QueueOverride `yaml:"overrides,omitempty"`
}

// QueueOverride customizes bus behavior for one named queue.
type QueueOverride struct {
	TTL                 *time.Duration `yaml:"ttl,omitempty"`
	MaxMessageBytes     *int           `yaml:"max_message_bytes,omitempty"`
	MaxQueueSize        *int           `yaml:"max_queue_size,omitempty"`
	MaxDeliveryAttempts *int           `yaml:"max_delivery_attempts,omitempty"`
	PriorityEnabled     *bool          `yaml:"priority_enabled,omitempty"`
}

// DefaultBusConfig returns the built-in bus defaults: in-memory backend,
// a one hour TTL, a 2048 byte message cap, three delivery attempts, and
// priority ordering disabled except on the queues whose producers call
// SendPriority (enabled per-queue via Overrides).
func DefaultBusConfig() *BusConfig {
	return &BusConfig{
		Backend:             BusBackendMemory,
		RedisAddr:           "localhost:6379",
		DefaultTTL:          time.Hour,
		MaxMessageBytes:     2048,
		MaxQueueSize:        10000,
		MaxDeliveryAttempts: 3,
		PriorityEnabled:     false,
		Overrides: map[string]QueueOverride{
			swarmtypes.QueueCodeUnitAssignments:  {PriorityEnabled: boolPtr(true)},
			swarmtypes.QueueFunctionAssignments:  {PriorityEnabled: boolPtr(true)},
			swarmtypes.QueueBuilderNotifications: {PriorityEnabled: boolPtr(true)},
			swarmtypes.QueueBuilderErrors:        {PriorityEnabled: boolPtr(true)},
		},
	}
}

func boolPtr(b bool) *bool { return &b }
