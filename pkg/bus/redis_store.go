package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the production Store implementation: Redis lists back
// FIFO queues, sorted sets back priority queues (ZADD/ZPOPMIN), and native
// PUBLISH/SUBSCRIBE back channels.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-constructed go-redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// DialRedisStore opens a new client against addr/db; pass a
// *miniredis.Miniredis address in tests.
func DialRedisStore(addr string, db int) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr, DB: db})}
}

func (s *RedisStore) Push(ctx context.Context, key string, msg []byte) error {
	return s.client.RPush(ctx, key, msg).Err()
}

func (s *RedisStore) PushPriority(ctx context.Context, key string, msg []byte, score float64) error {
	return s.client.ZAdd(ctx, key, redis.Z{Score: -score, Member: msg}).Err()
}

func (s *RedisStore) Pop(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.LPop(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoMessage
		}
		return nil, err
	}
	return val, nil
}

// PopPriority pops the lowest-scored member. Scores are stored negated in
// PushPriority so ZPOPMIN (which Redis only offers in the ascending
// direction) returns the highest-priority, earliest-enqueued member first.
func (s *RedisStore) PopPriority(ctx context.Context, key string) ([]byte, error) {
	res, err := s.client.ZPopMin(ctx, key, 1).Result()
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, ErrNoMessage
	}
	member, ok := res[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("bus: unexpected redis member type %T", res[0].Member)
	}
	return []byte(member), nil
}

func (s *RedisStore) Len(ctx context.Context, key string) (int64, error) {
	kind, err := s.client.Type(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	switch kind {
	case "list":
		return s.client.LLen(ctx, key).Result()
	case "zset":
		return s.client.ZCard(ctx, key).Result()
	default:
		return 0, nil
	}
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Publish(ctx context.Context, key string, msg []byte) error {
	return s.client.Publish(ctx, key, msg).Err()
}

func (s *RedisStore) Subscribe(ctx context.Context, key string) (<-chan []byte, func(), error) {
	pubsub := s.client.Subscribe(ctx, key)
	out := make(chan []byte, 16)

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
				}
			}
		}
	}()

	cancel := func() {
		_ = pubsub.Close()
	}
	return out, cancel, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
