package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSyncBusDeliversInline(t *testing.T) {
	bus := NewSyncBus(zap.NewNop())

	var got []Envelope
	require.NoError(t, bus.Subscribe(TopicMessageCreated, "recorder", func(_ context.Context, env Envelope) error {
		got = append(got, env)
		return nil
	}))
	require.NoError(t, bus.Subscribe(TopicMessageCreated, "failing", func(context.Context, Envelope) error {
		return errors.New("boom")
	}))
	require.NoError(t, bus.Subscribe(TopicMessageCreated, "panicking", func(context.Context, Envelope) error {
		panic("nope")
	}))

	bus.Publish(context.Background(), MessageCreated{MessageID: snowflake.ID(7), Body: "hi"})
	bus.Publish(context.Background(), TaskStatusChanged{TaskID: 1})

	require.Len(t, got, 1)
	msg, ok := got[0].Event.(MessageCreated)
	require.True(t, ok)
	assert.Equal(t, snowflake.ID(7), msg.MessageID)
	assert.NotEmpty(t, got[0].ID)
	assert.NotEmpty(t, got[0].CorrelationID)
}

func TestAsyncBusDrainsOnStop(t *testing.T) {
	bus := NewBus(zap.NewNop(), true)

	var (
		mu    sync.Mutex
		count int
	)
	require.NoError(t, bus.Subscribe(TopicTaskStatusChanged, "counter", func(context.Context, Envelope) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))
	bus.Start()

	for i := 0; i < 10; i++ {
		bus.Publish(context.Background(), TaskStatusChanged{TaskID: snowflake.ID(i)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(ctx))

	mu.Lock()
	assert.Equal(t, 10, count)
	mu.Unlock()

	assert.ErrorIs(t, bus.Subscribe(TopicTaskStatusChanged, "late", nil), ErrBusClosed)
	bus.Publish(context.Background(), TaskStatusChanged{})
}
