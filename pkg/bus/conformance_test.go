package bus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// storeConformanceCases exercises both Store implementations against the
// identical contract so RedisStore and MemoryStore stay interchangeable.
func storeConformanceCases(t *testing.T, newStore func() Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("fifo push pop", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		require.NoError(t, s.Push(ctx, "q1", []byte("a")))
		require.NoError(t, s.Push(ctx, "q1", []byte("b")))

		v, err := s.Pop(ctx, "q1")
		require.NoError(t, err)
		require.Equal(t, "a", string(v))

		v, err = s.Pop(ctx, "q1")
		require.NoError(t, err)
		require.Equal(t, "b", string(v))

		_, err = s.Pop(ctx, "q1")
		require.ErrorIs(t, err, ErrNoMessage)
	})

	t.Run("priority pop returns highest score first", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		require.NoError(t, s.PushPriority(ctx, "p1", []byte("low"), 1))
		require.NoError(t, s.PushPriority(ctx, "p1", []byte("high"), 100))
		require.NoError(t, s.PushPriority(ctx, "p1", []byte("mid"), 50))

		v, err := s.PopPriority(ctx, "p1")
		require.NoError(t, err)
		require.Equal(t, "high", string(v))

		v, err = s.PopPriority(ctx, "p1")
		require.NoError(t, err)
		require.Equal(t, "mid", string(v))

		v, err = s.PopPriority(ctx, "p1")
		require.NoError(t, err)
		require.Equal(t, "low", string(v))
	})

	t.Run("len reports queue depth", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		require.NoError(t, s.Push(ctx, "q2", []byte("x")))
		require.NoError(t, s.Push(ctx, "q2", []byte("y")))

		n, err := s.Len(ctx, "q2")
		require.NoError(t, err)
		require.Equal(t, int64(2), n)
	})

	t.Run("delete removes list and set contents", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		require.NoError(t, s.Push(ctx, "q3", []byte("a")))
		require.NoError(t, s.PushPriority(ctx, "q3:priority", []byte("b"), 1))

		require.NoError(t, s.Delete(ctx, "q3"))
		require.NoError(t, s.Delete(ctx, "q3:priority"))

		n, err := s.Len(ctx, "q3")
		require.NoError(t, err)
		require.Equal(t, int64(0), n)
		n, err = s.Len(ctx, "q3:priority")
		require.NoError(t, err)
		require.Equal(t, int64(0), n)
	})

	t.Run("publish subscribe delivers to subscriber", func(t *testing.T) {
		s := newStore()
		defer s.Close()

		subCtx, cancelSub := context.WithCancel(ctx)
		defer cancelSub()

		ch, unsub, err := s.Subscribe(subCtx, "chan1")
		require.NoError(t, err)
		defer unsub()

		// Give the subscription a moment to register before publishing,
		// matching real Redis pub/sub's async SUBSCRIBE ack.
		time.Sleep(50 * time.Millisecond)
		require.NoError(t, s.Publish(ctx, "chan1", []byte("hi")))

		select {
		case msg := <-ch:
			require.Equal(t, "hi", string(msg))
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for published message")
		}
	})
}

func TestMemoryStoreConformance(t *testing.T) {
	storeConformanceCases(t, func() Store {
		return NewMemoryStore()
	})
}

func TestRedisStoreConformance(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	storeConformanceCases(t, func() Store {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return NewRedisStore(client)
	})
}
