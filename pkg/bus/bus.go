package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ensemble-maestro/swarm/pkg/config"
)

// Bus is the typed durable queue + pub/sub surface described in spec.md
// §4.1, built on top of a pluggable Store. All policy (TTL, truncation,
// DLQ routing, priority gating) lives here so RedisStore and MemoryStore
// only need to implement the raw push/pop/publish primitives in types.go.
type Bus struct {
	store  Store
	cfg    *config.BusConfig
	log    *slog.Logger
	mu     sync.Mutex
	dedupe map[string]time.Time // dedupeKey -> expiry, for ErrDuplicateAssignment
	queues map[string]struct{}  // registered queue names, for GetQueueNames
}

// New builds a Bus over an already-constructed Store.
func New(store Store, cfg *config.BusConfig) *Bus {
	if cfg == nil {
		cfg = config.DefaultBusConfig()
	}
	return &Bus{
		store:  store,
		cfg:    cfg,
		log:    slog.With("component", "bus"),
		dedupe: make(map[string]time.Time),
		queues: make(map[string]struct{}),
	}
}

func (b *Bus) register(queue string) {
	b.mu.Lock()
	b.queues[queue] = struct{}{}
	b.mu.Unlock()
}

// queueOverride resolves per-queue config, falling back to bus defaults.
func (b *Bus) queueOverride(queue string) config.QueueOverride {
	if b.cfg.Overrides == nil {
		return config.QueueOverride{}
	}
	return b.cfg.Overrides[queue]
}

func (b *Bus) ttl(queue string) time.Duration {
	if o := b.queueOverride(queue); o.TTL != nil {
		return *o.TTL
	}
	return b.cfg.DefaultTTL
}

func (b *Bus) maxBytes(queue string) int {
	if o := b.queueOverride(queue); o.MaxMessageBytes != nil {
		return *o.MaxMessageBytes
	}
	return b.cfg.MaxMessageBytes
}

func (b *Bus) maxQueueSize(queue string) int {
	if o := b.queueOverride(queue); o.MaxQueueSize != nil {
		return *o.MaxQueueSize
	}
	return b.cfg.MaxQueueSize
}

func (b *Bus) maxAttempts(queue string) int {
	if o := b.queueOverride(queue); o.MaxDeliveryAttempts != nil {
		return *o.MaxDeliveryAttempts
	}
	return b.cfg.MaxDeliveryAttempts
}

func (b *Bus) priorityEnabled(queue string) bool {
	if o := b.queueOverride(queue); o.PriorityEnabled != nil {
		return *o.PriorityEnabled
	}
	return b.cfg.PriorityEnabled
}

// envelope is the wire format stored in the backing store; it carries the
// bookkeeping fields the Bus's policy layer needs (attempts, dedupe key,
// enqueue time) alongside the caller's opaque payload.
type envelope struct {
	ID         string    `json:"id"`
	Payload    []byte    `json:"payload"`
	Priority   int       `json:"priority"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
	DedupeKey  string    `json:"dedupe_key,omitempty"`
	Truncated  bool      `json:"truncated,omitempty"`
}

// SendResult reports what Send actually did to the payload, so callers can
// detect truncation per spec.md's OversizedMessage handling.
type SendResult struct {
	ID        string
	SizeBytes int
	Truncated bool
}

// Send enqueues payload onto queue in FIFO order. Oversized JSON payloads
// are truncated (every string field over 100 chars clipped to 97+"...")
// and re-checked; if still too big, or the payload isn't a JSON object/array
// that can be truncated, Send fails with ErrOversizedMessage.
func (b *Bus) Send(ctx context.Context, queue string, payload []byte) (string, error) {
	res, err := b.SendResult(ctx, queue, payload)
	if err != nil {
		return "", err
	}
	return res.ID, nil
}

// SendResult is Send but returns the full SendResult (size, truncation)
// spec.md's Send operation specifies.
func (b *Bus) SendResult(ctx context.Context, queue string, payload []byte) (SendResult, error) {
	return b.send(ctx, queue, payload, 0, "")
}

// SendPriority enqueues payload onto queue ordered by score (higher first).
// Returns ErrPriorityNotEnabled if the queue hasn't opted into priority
// ordering.
func (b *Bus) SendPriority(ctx context.Context, queue string, payload []byte, priority int) (string, error) {
	if err := ValidateQueueName(queue); err != nil {
		return "", err
	}
	if !b.priorityEnabled(queue) {
		return "", fmt.Errorf("%w: %s", ErrPriorityNotEnabled, queue)
	}
	res, err := b.send(ctx, queue, payload, priority, "")
	if err != nil {
		return "", err
	}
	return res.ID, nil
}

// SendDeduped behaves like Send but rejects a second message sharing
// dedupeKey with one still within the queue's TTL window.
func (b *Bus) SendDeduped(ctx context.Context, queue string, payload []byte, dedupeKey string) (string, error) {
	if err := ValidateQueueName(queue); err != nil {
		return "", err
	}
	b.mu.Lock()
	if expiry, exists := b.dedupe[dedupeKey]; exists && time.Now().Before(expiry) {
		b.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateAssignment, dedupeKey)
	}
	b.dedupe[dedupeKey] = time.Now().Add(b.ttl(queue))
	b.mu.Unlock()

	res, err := b.send(ctx, queue, payload, 0, dedupeKey)
	if err != nil {
		return "", err
	}
	return res.ID, nil
}

// SendPriorityDeduped combines SendPriority and SendDeduped: it rejects a
// second message sharing dedupeKey within the queue's TTL window, and
// otherwise enqueues at priority like SendPriority. Used where a message may
// be re-emitted after the original was already delivered and dequeued — the
// dedupe map, not the in-flight set, is what catches that case.
func (b *Bus) SendPriorityDeduped(ctx context.Context, queue string, payload []byte, priority int, dedupeKey string) (string, error) {
	if err := ValidateQueueName(queue); err != nil {
		return "", err
	}
	if !b.priorityEnabled(queue) {
		return "", fmt.Errorf("%w: %s", ErrPriorityNotEnabled, queue)
	}

	b.mu.Lock()
	if expiry, exists := b.dedupe[dedupeKey]; exists && time.Now().Before(expiry) {
		b.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateAssignment, dedupeKey)
	}
	b.dedupe[dedupeKey] = time.Now().Add(b.ttl(queue))
	b.mu.Unlock()

	res, err := b.send(ctx, queue, payload, priority, dedupeKey)
	if err != nil {
		return "", err
	}
	return res.ID, nil
}

func (b *Bus) send(ctx context.Context, queue string, payload []byte, priority int, dedupeKey string) (SendResult, error) {
	if err := ValidateQueueName(queue); err != nil {
		return SendResult{}, err
	}
	b.register(queue)

	if size := b.maxQueueSize(queue); size > 0 {
		depth, err := b.store.Len(ctx, Keys.QueueKey(queue))
		if err != nil {
			return SendResult{}, fmt.Errorf("queue len: %w", err)
		}
		priDepth, err := b.store.Len(ctx, Keys.PriorityKey(queue))
		if err != nil {
			return SendResult{}, fmt.Errorf("priority queue len: %w", err)
		}
		if int(depth+priDepth) >= size {
			return SendResult{}, fmt.Errorf("%w: %s", ErrQueueFull, queue)
		}
	}

	truncated := false
	maxBytes := b.maxBytes(queue)
	if maxBytes > 0 && len(payload) > maxBytes {
		clipped, ok := truncateStrings(payload)
		if !ok || len(clipped) > maxBytes {
			return SendResult{}, fmt.Errorf("%w: %d bytes > limit %d for queue %s", ErrOversizedMessage, len(payload), maxBytes, queue)
		}
		payload = clipped
		truncated = true
	}

	now := time.Now()
	env := envelope{
		ID:         uuid.NewString(),
		Payload:    payload,
		Priority:   priority,
		EnqueuedAt: now,
		DedupeKey:  dedupeKey,
		Truncated:  truncated,
	}
	if ttl := b.ttl(queue); ttl != 0 {
		env.ExpiresAt = now.Add(ttl)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return SendResult{}, fmt.Errorf("marshal envelope: %w", err)
	}

	key := Keys.QueueKey(queue)
	if priority != 0 || b.priorityEnabled(queue) {
		score := priorityScore(priority, env.EnqueuedAt)
		if err := b.store.PushPriority(ctx, Keys.PriorityKey(queue), data, score); err != nil {
			return SendResult{}, fmt.Errorf("push priority: %w", err)
		}
	} else {
		if err := b.store.Push(ctx, key, data); err != nil {
			return SendResult{}, fmt.Errorf("push: %w", err)
		}
	}

	return SendResult{ID: env.ID, SizeBytes: len(payload), Truncated: truncated}, nil
}

// truncateStrings decodes payload as a JSON value and clips every string
// over 100 characters to 97 chars + "...", matching spec.md §4.1's
// truncation rule. Returns ok=false if payload isn't valid JSON (nothing
// to truncate).
func truncateStrings(payload []byte) ([]byte, bool) {
	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, false
	}
	clipped := clipStringsDeep(v)
	out, err := json.Marshal(clipped)
	if err != nil {
		return nil, false
	}
	return out, true
}

func clipStringsDeep(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		if len(val) > 100 {
			return val[:97] + "..."
		}
		return val
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = clipStringsDeep(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = clipStringsDeep(e)
		}
		return out
	default:
		return val
	}
}

// priorityScore combines priority (dominant) and enqueue order (tiebreak,
// earlier first) into one float64 sortable score for a Redis-style sorted
// set, matching spec.md's "priority desc, enqueuedAt asc" ordering.
func priorityScore(priority int, enqueuedAt time.Time) float64 {
	return float64(priority)*1e15 - float64(enqueuedAt.UnixNano())/1e6
}

// Receive dequeues and returns the next message for queue — the priority
// queue if the queue has priority enabled and has entries, otherwise FIFO.
// Returns ErrNoMessage if the queue is empty. Items whose ExpiresAt has
// passed are silently dropped and never delivered (spec.md §4.1); Receive
// keeps popping until it finds a live item or the queue is drained.
// On success, the message's attempt counter is incremented and it is the
// caller's responsibility to call Ack or Nack.
func (b *Bus) Receive(ctx context.Context, queue string) (*Message, error) {
	if err := ValidateQueueName(queue); err != nil {
		return nil, err
	}
	for {
		env, err := b.popOne(ctx, queue)
		if err != nil {
			return nil, err
		}
		if !env.ExpiresAt.IsZero() && time.Now().After(env.ExpiresAt) {
			b.log.Debug("dropping expired message", "queue", queue, "message_id", env.ID)
			continue
		}
		env.Attempts++
		return &Message{
			ID:         env.ID,
			Queue:      queue,
			Payload:    env.Payload,
			Priority:   env.Priority,
			Attempts:   env.Attempts,
			EnqueuedAt: env.EnqueuedAt,
			ExpiresAt:  env.ExpiresAt,
			DedupeKey:  env.DedupeKey,
			Truncated:  env.Truncated,
		}, nil
	}
}

// popOne pops a single envelope off queue's priority set (if enabled) or
// FIFO list, unmarshaling it. Returns ErrNoMessage when both are empty.
func (b *Bus) popOne(ctx context.Context, queue string) (envelope, error) {
	var data []byte
	var err error

	if b.priorityEnabled(queue) {
		data, err = b.store.PopPriority(ctx, Keys.PriorityKey(queue))
		if err != nil && err != ErrNoMessage {
			return envelope{}, fmt.Errorf("pop priority: %w", err)
		}
	}
	if data == nil {
		data, err = b.store.Pop(ctx, Keys.QueueKey(queue))
		if err != nil {
			return envelope{}, err
		}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}

// Nack requeues msg for redelivery, or routes it to the dead-letter queue
// if it has exhausted the queue's MaxDeliveryAttempts — spec.md's retry/DLQ
// handling for at-least-once delivery.
func (b *Bus) Nack(ctx context.Context, msg *Message) error {
	if msg.Attempts >= b.maxAttempts(msg.Queue) {
		b.log.Warn("message exhausted delivery attempts, routing to DLQ",
			"queue", msg.Queue, "message_id", msg.ID, "attempts", msg.Attempts)
		return b.toDLQ(ctx, msg)
	}

	env := envelope{
		ID:         msg.ID,
		Payload:    msg.Payload,
		Priority:   msg.Priority,
		Attempts:   msg.Attempts,
		EnqueuedAt: msg.EnqueuedAt,
		ExpiresAt:  msg.ExpiresAt,
		DedupeKey:  msg.DedupeKey,
		Truncated:  msg.Truncated,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if b.priorityEnabled(msg.Queue) {
		return b.store.PushPriority(ctx, Keys.PriorityKey(msg.Queue), data, priorityScore(msg.Priority, msg.EnqueuedAt))
	}
	return b.store.Push(ctx, Keys.QueueKey(msg.Queue), data)
}

func (b *Bus) toDLQ(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal dlq message: %w", err)
	}
	return b.store.Push(ctx, Keys.DLQKey(msg.Queue), data)
}

// Ack is a no-op for the current backends (Pop already removed the
// message); it exists so callers have a symmetric Ack/Nack contract and
// future backends with a visibility-timeout model have somewhere to hook in.
func (b *Bus) Ack(_ context.Context, _ *Message) error {
	return nil
}

// Publish broadcasts payload to every current subscriber of channel.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.store.Publish(ctx, Keys.ChannelKey(channel), payload)
}

// Subscribe returns a channel of payloads published to channel, and a
// cancel func the caller must invoke to unsubscribe.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	return b.store.Subscribe(ctx, Keys.ChannelKey(channel))
}

// Stats reports the queue's depth (FIFO plus priority) and its DLQ depth.
// In-flight messages are not tracked; InFlight is always zero.
func (b *Bus) Stats(ctx context.Context, queue string) (Stats, error) {
	depth, err := b.store.Len(ctx, Keys.QueueKey(queue))
	if err != nil {
		return Stats{}, fmt.Errorf("queue len: %w", err)
	}
	priDepth, err := b.store.Len(ctx, Keys.PriorityKey(queue))
	if err != nil {
		return Stats{}, fmt.Errorf("priority queue len: %w", err)
	}
	dlqDepth, err := b.store.Len(ctx, Keys.DLQKey(queue))
	if err != nil {
		return Stats{}, fmt.Errorf("dlq len: %w", err)
	}

	return Stats{
		Queue:    queue,
		Depth:    depth + priDepth,
		DLQDepth: dlqDepth,
	}, nil
}

// GetStats is Stats under the name spec.md §4.1 gives the operation.
func (b *Bus) GetStats(ctx context.Context, queue string) (Stats, error) {
	return b.Stats(ctx, queue)
}

// CreateQueue registers queue so it appears in GetQueueNames, optionally
// applying an override for its configuration. Queues are also
// auto-registered on first Send, so this is only required for a queue a
// caller wants to see listed before anything is ever sent to it.
func (b *Bus) CreateQueue(queue string, override config.QueueOverride) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues[queue] = struct{}{}
	if b.cfg.Overrides == nil {
		b.cfg.Overrides = make(map[string]config.QueueOverride)
	}
	b.cfg.Overrides[queue] = override
}

// DeleteQueue removes a queue's FIFO list, priority set, and DLQ, and
// unregisters it from GetQueueNames.
func (b *Bus) DeleteQueue(ctx context.Context, queue string) error {
	if err := b.ClearQueue(ctx, queue); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.queues, queue)
	delete(b.cfg.Overrides, queue)
	b.mu.Unlock()
	return nil
}

// ClearQueue drops every message currently queued for queue (FIFO,
// priority, and DLQ) without unregistering the queue name.
func (b *Bus) ClearQueue(ctx context.Context, queue string) error {
	if err := b.store.Delete(ctx, Keys.QueueKey(queue)); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	if err := b.store.Delete(ctx, Keys.PriorityKey(queue)); err != nil {
		return fmt.Errorf("clear priority queue: %w", err)
	}
	if err := b.store.Delete(ctx, Keys.DLQKey(queue)); err != nil {
		return fmt.Errorf("clear dlq: %w", err)
	}
	return nil
}

// GetQueueNames lists every queue name seen by CreateQueue or Send/SendPriority
// since the Bus was constructed.
func (b *Bus) GetQueueNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.queues))
	for name := range b.queues {
		names = append(names, name)
	}
	return names
}

// Close releases the backing store's resources.
func (b *Bus) Close() error {
	return b.store.Close()
}
