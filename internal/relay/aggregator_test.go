package relay

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/peppasd/fog-relay/internal/protocol"
	"github.com/peppasd/fog-relay/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	uidA = "aaaaaaaa-1111-2222-3333-444444444444"
	uidB = "bbbbbbbb-1111-2222-3333-444444444444"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAggregatorTickAveragesRecentReadings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddReading(ctx, uidA, 1.0, 1000))
	require.NoError(t, store.AddReading(ctx, uidA, 2.0, 1001))
	require.NoError(t, store.AddReading(ctx, uidA, 3.0, 1002))

	agg := NewAggregator(store, testLogger(), DefaultAggregateInterval, 5)
	agg.tick(ctx)

	pending, err := store.PendingMessages(ctx, uidB)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	frame, err := protocol.Decode(pending[0].Payload)
	require.NoError(t, err)

	avg, ok := frame.(protocol.Average)
	require.True(t, ok)
	assert.Equal(t, 2.0, avg.Value)
	assert.NotZero(t, avg.Timestamp)
}

func TestAggregatorSkipsEmptyTick(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	agg := NewAggregator(store, testLogger(), DefaultAggregateInterval, 5)
	agg.tick(ctx)

	count, err := store.QueuedMessageCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAggregatorUsesOnlyNewestSamples(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Seven readings; only the newest five (30..70) should be averaged.
	for i := 1; i <= 7; i++ {
		require.NoError(t, store.AddReading(ctx, uidA, float64(i*10), int64(1000+i)))
	}

	agg := NewAggregator(store, testLogger(), DefaultAggregateInterval, 5)
	agg.tick(ctx)

	pending, err := store.PendingMessages(ctx, uidA)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	frame, err := protocol.Decode(pending[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, 50.0, frame.(protocol.Average).Value)
}

func TestAggregatorProducesOneBroadcastPerTick(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddReading(ctx, uidA, 4.0, 1000))

	agg := NewAggregator(store, testLogger(), DefaultAggregateInterval, 5)
	agg.tick(ctx)
	agg.tick(ctx)

	count, err := store.QueuedMessageCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
