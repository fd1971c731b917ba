package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: "a", Body: []byte(`1`)}))
	require.NoError(t, q.Publish(ctx, Message{Type: "b", Body: []byte(`2`)}))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	first := <-msgs
	second := <-msgs
	assert.Equal(t, "a", first.Type)
	assert.Equal(t, "b", second.Type)
	assert.JSONEq(t, `2`, string(second.Body))
}

func TestInMemoryPublishHonoursContext(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Message{Type: "fill"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, Message{Type: "blocked"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInMemoryConsumeClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := NewInMemory(1).Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer channel was not closed")
	}
}
