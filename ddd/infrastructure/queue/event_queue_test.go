package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/errno"
)

func TestMemoryEventQueue_FIFOAndFull(t *testing.T) {
	q := NewMemoryEventQueue(2)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, vo.NewSourceReadyEvent("v1", "alice")))
	require.NoError(t, q.Enqueue(ctx, vo.NewVariantReadyEvent("v1", vo.PlatformTikTok)))
	assert.ErrorIs(t, q.Enqueue(ctx, vo.NewSourceReadyEvent("v2", "alice")), errno.ErrQueueFull)
	assert.ErrorIs(t, q.Enqueue(ctx, vo.PipelineEvent{}), errno.ErrVideoUUIDRequired)

	e, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, vo.EventSourceReady, e.Type)
	e, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, vo.PlatformTikTok, e.Platform)

	m := q.GetMetrics()
	assert.Equal(t, uint64(2), m.EnqueueCount)
	assert.Equal(t, uint64(2), m.DequeueCount)
	assert.Equal(t, uint64(1), m.DroppedCount)
}

func TestMemoryEventQueue_CloseDrains(t *testing.T) {
	q := NewMemoryEventQueue(4)
	p := NewQueuePublisher(q)
	require.NoError(t, p.Publish(context.Background(), vo.NewSourceReadyEvent("v1", "alice")))
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	assert.True(t, q.IsClosed())
	assert.ErrorIs(t, q.Enqueue(context.Background(), vo.NewSourceReadyEvent("v2", "a")), ErrQueueClosed)

	e, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1", e.VideoID)
	_, err = q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestMemoryEventQueue_DequeueHonoursContext(t *testing.T) {
	q := NewMemoryEventQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
