package tuition

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuition/internal/queue"
)

func TestReminderWorkerDrainsQueue(t *testing.T) {
	env := newTestEnv(t, nov2023)
	ctx, cancel := context.WithCancel(context.Background())
	b := env.batch(t, "B", 100)
	env.student(t, b.ID, "Asha")
	env.student(t, b.ID, "Ravi")

	// Noise the worker must ignore.
	require.NoError(t, env.queue.Publish(ctx, queue.Message{Type: "other"}))
	require.NoError(t, env.queue.Publish(ctx, queue.Message{Type: ReminderMessageType, Body: []byte(`{}`)}))

	_, err := env.svc.SendReminders(ctx, teacher, b.ID, "")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- env.svc.RunReminderWorker(ctx, env.queue) }()

	assert.Eventually(t, func() bool {
		listed, err := env.svc.ListReminders(context.Background(), teacher, 10)
		if err != nil || len(listed) != 2 {
			return false
		}
		for _, r := range listed {
			if r.Status != ReminderSent {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
