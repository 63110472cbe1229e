package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/peppasd/fog-relay/internal/protocol"
	"github.com/peppasd/fog-relay/internal/storage"
)

// Defaults for the aggregator.
const (
	DefaultAggregateInterval = 10 * time.Second
	DefaultSampleSize        = 5
)

// Aggregator periodically averages the most recent readings and enqueues
// the result as an AVG broadcast. It is the sole producer of broadcast
// content and has no awareness of connected clients; fan-out is the
// session writers' job. One aggregator runs per process.
type Aggregator struct {
	store    storage.Store
	log      *slog.Logger
	interval time.Duration
	sample   int
}

// NewAggregator creates an aggregator. Non-positive interval or sample
// size fall back to the defaults.
func NewAggregator(store storage.Store, log *slog.Logger, interval time.Duration, sample int) *Aggregator {
	if interval <= 0 {
		interval = DefaultAggregateInterval
	}
	if sample <= 0 {
		sample = DefaultSampleSize
	}
	return &Aggregator{
		store:    store,
		log:      log,
		interval: interval,
		sample:   sample,
	}
}

// Run ticks until ctx is cancelled. A failed tick is skipped; the next
// one retries, so a storage hiccup costs at most a delayed broadcast.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Aggregator) tick(ctx context.Context) {
	readings, err := a.store.RecentReadings(ctx, a.sample)
	if err != nil {
		a.log.Error("aggregator: failed to fetch readings", "error", err)
		return
	}
	if len(readings) == 0 {
		a.log.Debug("aggregator: no readings, skipping tick")
		return
	}

	var sum float64
	for _, r := range readings {
		sum += r.Value
	}

	frame := protocol.Average{
		Timestamp: time.Now().Unix(),
		Value:     sum / float64(len(readings)),
	}
	if _, err := a.store.EnqueueMessage(ctx, frame.Encode()); err != nil {
		a.log.Error("aggregator: failed to enqueue broadcast", "error", err)
		return
	}
	a.log.Debug("aggregator: broadcast queued", "value", frame.Value, "samples", len(readings))
}
