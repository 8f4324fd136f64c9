package bus

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ensemble-maestro/swarm/pkg/config"
)

func intPtr(i int) *int    { return &i }
func boolPtr(b bool) *bool { return &b }

func TestSendReceiveFIFO(t *testing.T) {
	ctx := context.Background()

	cfg := config.DefaultBusConfig()
	cfg.PriorityEnabled = false
	b := New(NewMemoryStore(), cfg)

	id, err := b.Send(ctx, "jobs", []byte("first"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = b.Send(ctx, "jobs", []byte("second"))
	require.NoError(t, err)

	msg, err := b.Receive(ctx, "jobs")
	require.NoError(t, err)
	require.Equal(t, "first", string(msg.Payload))
	require.Equal(t, 1, msg.Attempts)

	msg2, err := b.Receive(ctx, "jobs")
	require.NoError(t, err)
	require.Equal(t, "second", string(msg2.Payload))

	_, err = b.Receive(ctx, "jobs")
	require.ErrorIs(t, err, ErrNoMessage)
}

func TestSendPriorityOrdering(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultBusConfig()
	cfg.PriorityEnabled = true
	b := New(NewMemoryStore(), cfg)

	_, err := b.SendPriority(ctx, "swarm", []byte("low"), 1)
	require.NoError(t, err)
	_, err = b.SendPriority(ctx, "swarm", []byte("high"), 10)
	require.NoError(t, err)
	_, err = b.SendPriority(ctx, "swarm", []byte("mid"), 5)
	require.NoError(t, err)

	first, err := b.Receive(ctx, "swarm")
	require.NoError(t, err)
	require.Equal(t, "high", string(first.Payload))

	second, err := b.Receive(ctx, "swarm")
	require.NoError(t, err)
	require.Equal(t, "mid", string(second.Payload))

	third, err := b.Receive(ctx, "swarm")
	require.NoError(t, err)
	require.Equal(t, "low", string(third.Payload))
}

func TestSendPriorityRejectedWhenDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultBusConfig()
	cfg.PriorityEnabled = false
	b := New(NewMemoryStore(), cfg)

	_, err := b.SendPriority(ctx, "plain", []byte("x"), 5)
	require.ErrorIs(t, err, ErrPriorityNotEnabled)
}

func TestOversizedMessageRejected(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultBusConfig()
	cfg.Overrides = map[string]config.QueueOverride{
		"tiny": {MaxMessageBytes: intPtr(4)},
	}
	b := New(NewMemoryStore(), cfg)

	_, err := b.Send(ctx, "tiny", []byte("way too big"))
	require.ErrorIs(t, err, ErrOversizedMessage)
}

func TestSendDedupedRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	b := New(NewMemoryStore(), config.DefaultBusConfig())

	_, err := b.SendDeduped(ctx, "jobs", []byte("a"), "dedupe-1")
	require.NoError(t, err)

	_, err = b.SendDeduped(ctx, "jobs", []byte("a-again"), "dedupe-1")
	require.ErrorIs(t, err, ErrDuplicateAssignment)
}

func TestSendPriorityDedupedRejectsDuplicateAfterDrain(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultBusConfig()
	cfg.Overrides = map[string]config.QueueOverride{
		"swarm.codeunit.assignments": {PriorityEnabled: boolPtr(true)},
	}
	b := New(NewMemoryStore(), cfg)

	_, err := b.SendPriorityDeduped(ctx, "swarm.codeunit.assignments", []byte("first"), 8, "pipeline-1:UserController")
	require.NoError(t, err)

	msg, err := b.Receive(ctx, "swarm.codeunit.assignments")
	require.NoError(t, err)
	require.Equal(t, "first", string(msg.Payload))

	_, err = b.SendPriorityDeduped(ctx, "swarm.codeunit.assignments", []byte("second"), 8, "pipeline-1:UserController")
	require.ErrorIs(t, err, ErrDuplicateAssignment, "a re-emission sharing the dedupe key is rejected even after the first message drained")

	_, err = b.Receive(ctx, "swarm.codeunit.assignments")
	require.ErrorIs(t, err, ErrNoMessage)
}

func TestSendPriorityDedupedRejectedWhenPriorityDisabled(t *testing.T) {
	ctx := context.Background()
	b := New(NewMemoryStore(), config.DefaultBusConfig())

	_, err := b.SendPriorityDeduped(ctx, "plain", []byte("x"), 5, "dedupe-1")
	require.ErrorIs(t, err, ErrPriorityNotEnabled)
}

func TestNackRequeuesUntilMaxAttemptsThenDLQ(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultBusConfig()
	cfg.PriorityEnabled = false
	cfg.MaxDeliveryAttempts = 2
	b := New(NewMemoryStore(), cfg)

	_, err := b.Send(ctx, "retry", []byte("payload"))
	require.NoError(t, err)

	msg, err := b.Receive(ctx, "retry")
	require.NoError(t, err)
	require.Equal(t, 1, msg.Attempts)
	require.NoError(t, b.Nack(ctx, msg))

	msg, err = b.Receive(ctx, "retry")
	require.NoError(t, err)
	require.Equal(t, 2, msg.Attempts)
	require.NoError(t, b.Nack(ctx, msg))

	_, err = b.Receive(ctx, "retry")
	require.ErrorIs(t, err, ErrNoMessage)

	dlqDepth, err := b.store.Len(ctx, Keys.DLQKey("retry"))
	require.NoError(t, err)
	require.Equal(t, int64(1), dlqDepth)
}

func TestPublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := New(NewMemoryStore(), config.DefaultBusConfig())

	ch, unsub, err := b.Subscribe(ctx, "events")
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, b.Publish(ctx, "events", []byte("hello")))

	select {
	case msg := <-ch:
		require.Equal(t, "hello", string(msg))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestStatsReportsDepth(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultBusConfig()
	cfg.PriorityEnabled = false
	b := New(NewMemoryStore(), cfg)

	_, err := b.Send(ctx, "jobs", []byte("one"))
	require.NoError(t, err)
	_, err = b.Send(ctx, "jobs", []byte("two"))
	require.NoError(t, err)

	stats, err := b.Stats(ctx, "jobs")
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Depth)
}

func TestSendTruncatesOversizedJSONPayload(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultBusConfig()
	cfg.Overrides = map[string]config.QueueOverride{
		"assignments": {MaxMessageBytes: intPtr(2048)},
	}
	b := New(NewMemoryStore(), cfg)

	longDesc := make([]byte, 4096)
	for i := range longDesc {
		longDesc[i] = 'x'
	}
	payload, err := json.Marshal(map[string]string{
		"assignmentId": "a1",
		"description":  string(longDesc),
	})
	require.NoError(t, err)

	res, err := b.SendResult(ctx, "assignments", payload)
	require.NoError(t, err)
	require.True(t, res.Truncated)

	msg, err := b.Receive(ctx, "assignments")
	require.NoError(t, err)
	require.True(t, msg.Truncated)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	require.True(t, strings.HasSuffix(decoded["description"], "..."))
	require.Equal(t, "a1", decoded["assignmentId"])
}

func TestSendRejectsNonJSONOversizedPayload(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultBusConfig()
	cfg.Overrides = map[string]config.QueueOverride{
		"tiny": {MaxMessageBytes: intPtr(4)},
	}
	b := New(NewMemoryStore(), cfg)

	_, err := b.Send(ctx, "tiny", []byte("not json and way too big"))
	require.ErrorIs(t, err, ErrOversizedMessage)
}

func TestReceiveDropsExpiredMessages(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultBusConfig()
	cfg.PriorityEnabled = false
	cfg.DefaultTTL = -time.Second // already expired the instant it's sent
	b := New(NewMemoryStore(), cfg)

	_, err := b.Send(ctx, "jobs", []byte("stale"))
	require.NoError(t, err)

	_, err = b.Receive(ctx, "jobs")
	require.ErrorIs(t, err, ErrNoMessage)
}

func TestQueueFullRejectsSend(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultBusConfig()
	cfg.Overrides = map[string]config.QueueOverride{
		"capped": {MaxQueueSize: intPtr(1)},
	}
	b := New(NewMemoryStore(), cfg)

	_, err := b.Send(ctx, "capped", []byte("one"))
	require.NoError(t, err)

	_, err = b.Send(ctx, "capped", []byte("two"))
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestQueueAdministration(t *testing.T) {
	ctx := context.Background()
	b := New(NewMemoryStore(), config.DefaultBusConfig())

	b.CreateQueue("reserved", config.QueueOverride{})
	_, err := b.Send(ctx, "jobs", []byte("x"))
	require.NoError(t, err)

	names := b.GetQueueNames()
	require.Contains(t, names, "reserved")
	require.Contains(t, names, "jobs")

	require.NoError(t, b.ClearQueue(ctx, "jobs"))
	_, err = b.Receive(ctx, "jobs")
	require.ErrorIs(t, err, ErrNoMessage)

	require.NoError(t, b.DeleteQueue(ctx, "jobs"))
	require.NotContains(t, b.GetQueueNames(), "jobs")
}

func TestPriorityScoreOrdersByPriorityThenRecency(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Minute)

	highLater := priorityScore(10, now)
	highEarlier := priorityScore(10, earlier)
	low := priorityScore(1, earlier)

	require.Greater(t, highEarlier, highLater, "earlier enqueue at same priority should score higher")
	require.Greater(t, highLater, low, "higher priority should dominate recency")
}
