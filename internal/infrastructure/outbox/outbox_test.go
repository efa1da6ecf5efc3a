package outbox

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	domoutbox "github.com/Zhima-Mochi/kitchen-ops/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct{ n int }

func (ping) EventName() string { return "test.ping" }

func TestBusFansOutToEverySubscriber(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil, Options{})
	var a, b atomic.Int64
	bus.Subscribe("test.ping", func(_ context.Context, e domoutbox.Event) error {
		a.Add(int64(e.(ping).n))
		return nil
	})
	bus.Subscribe("test.ping", func(context.Context, domoutbox.Event) error {
		b.Add(1)
		return errors.New("ignored")
	})
	bus.Start(ctx)
	defer bus.Stop(ctx)

	for i := 1; i <= 3; i++ {
		require.NoError(t, bus.Publish(ctx, ping{n: i}))
	}
	bus.Wait()

	assert.Equal(t, int64(6), a.Load())
	assert.Equal(t, int64(3), b.Load())
}

func TestBusRecoversFromHandlerPanic(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil, Options{Concurrency: 1})
	var after atomic.Bool
	bus.Subscribe("test.ping", func(context.Context, domoutbox.Event) error { panic("boom") })
	bus.Subscribe("test.ping", func(context.Context, domoutbox.Event) error {
		after.Store(true)
		return nil
	})
	bus.Start(ctx)
	defer bus.Stop(ctx)

	require.NoError(t, bus.Publish(ctx, ping{}))
	bus.Wait()
	assert.True(t, after.Load())
}

func TestBusUsesEventContext(t *testing.T) {
	ctx := context.Background()
	var decorated atomic.Bool
	bus := NewBus(nil, Options{EventContext: func(ctx context.Context, _ observability.Logger, e domoutbox.Event) context.Context {
		decorated.Store(e.EventName() == "test.ping")
		return ctx
	}})
	bus.Subscribe("test.ping", func(context.Context, domoutbox.Event) error { return nil })
	bus.Start(ctx)
	defer bus.Stop(ctx)

	require.NoError(t, bus.Publish(ctx, ping{}))
	bus.Wait()
	assert.True(t, decorated.Load())
}

func TestPublishAfterStopFails(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil, Options{})
	bus.Start(ctx)
	bus.Stop(ctx)

	assert.ErrorIs(t, bus.Publish(ctx, ping{}), ErrBusStopped)
}
