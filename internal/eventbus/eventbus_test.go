package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []*Envelope
}

func (c *collector) handle(_ context.Context, ev *Envelope) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.EventType)
	}
	return out
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func mustEnvelope(t *testing.T, eventType, matchID string, prio int) *Envelope {
	t.Helper()
	ev, err := NewEnvelope("test", eventType, matchID, prio, map[string]int{"n": 1})
	require.NoError(t, err)
	return ev
}

func TestNewEnvelope_Decode(t *testing.T) {
	ev, err := NewEnvelope("game", "match.point", "m1", 5, map[string]int{"left": 1, "right": 0})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "match.point", ev.EventType)
	assert.Equal(t, "m1", ev.MatchID)
	assert.Equal(t, 1, ev.Version)

	var score map[string]int
	require.NoError(t, ev.Decode(&score))
	assert.Equal(t, 1, score["left"])
}

func TestMemoryBus_DeliversInOrder(t *testing.T) {
	bus := NewMemoryBus(64)
	defer bus.Close()

	var c collector
	_, err := bus.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)

	want := []string{"match.started", "ball.impact", "match.point", "match.finished"}
	for _, typ := range want {
		require.NoError(t, bus.Publish(context.Background(), mustEnvelope(t, typ, "m1", 5)))
	}

	require.Eventually(t, func() bool { return c.count() == len(want) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, c.types(), "порядок событий должен сохраняться")
}

func TestMemoryBus_Filter(t *testing.T) {
	bus := NewMemoryBus(64)
	defer bus.Close()

	var byType, byMatch collector
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{"match.point"}}, byType.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(context.Background(), Filter{Matches: []string{"m2"}}, byMatch.handle)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, "match.point", "m1", 5)))
	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, "ball.impact", "m2", 5)))
	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, "match.point", "m2", 5)))

	require.Eventually(t, func() bool {
		return byType.count() == 2 && byMatch.count() == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"match.point", "match.point"}, byType.types())
	assert.Equal(t, []string{"ball.impact", "match.point"}, byMatch.types())
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()

	var c collector
	sub, err := bus.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)
	sub.Unsubscribe()
	sub.Unsubscribe() // повторная отписка безопасна

	require.NoError(t, bus.Publish(context.Background(), mustEnvelope(t, "match.point", "m1", 5)))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, c.count())
}

func TestMemoryBus_DropsLowPriorityWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)
	defer bus.Close()

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-block:
		case <-ctx.Done():
		}
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, "ball.impact", "m1", 1)))
	<-started // первое событие в обработчике, очередь пуста
	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, "ball.impact", "m1", 1)))
	require.NoError(t, bus.Publish(ctx, mustEnvelope(t, "ball.impact", "m1", 1)))

	stats := bus.Metrics()
	assert.Equal(t, uint64(3), stats.Published)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 1, stats.InFlight)
	close(block)
}

func TestMemoryBus_HighPriorityRespectsContext(t *testing.T) {
	bus := NewMemoryBus(1)
	defer bus.Close()

	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{}, 1)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-block:
		case <-ctx.Done():
		}
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), mustEnvelope(t, "match.point", "m1", 9)))
	<-started
	require.NoError(t, bus.Publish(context.Background(), mustEnvelope(t, "match.point", "m1", 9)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = bus.Publish(ctx, mustEnvelope(t, "match.point", "m1", 9))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryBus_Close(t *testing.T) {
	bus := NewMemoryBus(8)

	var c collector
	_, err := bus.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), mustEnvelope(t, "match.point", "m1", 5)), ErrClosed)
	_, err = bus.Subscribe(context.Background(), Filter{}, c.handle)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMetricsExporter_Collect(t *testing.T) {
	bus := NewMemoryBus(8)
	defer bus.Close()

	var c collector
	_, err := bus.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	exp := NewMetricsExporter(bus, reg)

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), mustEnvelope(t, "ball.impact", "m1", 5)))
	}
	require.Eventually(t, func() bool { return c.count() == 3 }, time.Second, 5*time.Millisecond)

	prev := exp.collect(Stats{})
	assert.Equal(t, 3.0, testutil.ToFloat64(exp.published))
	assert.Equal(t, 3.0, testutil.ToFloat64(exp.consumed))

	// повторный сбор без новых событий счётчики не меняет
	exp.collect(prev)
	assert.Equal(t, 3.0, testutil.ToFloat64(exp.published))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
