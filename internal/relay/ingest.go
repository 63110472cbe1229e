package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/peppasd/fog-relay/internal/protocol"
	"github.com/peppasd/fog-relay/internal/storage"
)

// Defaults for the ingest pool.
const (
	DefaultIngestWorkers = 4
	DefaultIngestQueue   = 256
)

// IngestPool persists accepted readings off the session reader path. A
// fixed set of workers drains a bounded queue, so a slow store cannot
// stall frame intake and goroutine growth stays capped under bursty
// ingestion. When the queue is full the reading is dropped; ingestion is
// best-effort.
type IngestPool struct {
	store storage.Store
	log   *slog.Logger
	queue chan protocol.Sensor
	wg    sync.WaitGroup

	workers int
}

// NewIngestPool creates a pool with the given worker count and queue
// depth. Non-positive values fall back to the defaults.
func NewIngestPool(store storage.Store, log *slog.Logger, workers, depth int) *IngestPool {
	if workers <= 0 {
		workers = DefaultIngestWorkers
	}
	if depth <= 0 {
		depth = DefaultIngestQueue
	}
	return &IngestPool{
		store:   store,
		log:     log,
		queue:   make(chan protocol.Sensor, depth),
		workers: workers,
	}
}

// Start launches the workers. They run until ctx is cancelled.
func (p *IngestPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker(ctx)
		}()
	}
}

// Submit queues a reading for persistence without blocking. It reports
// whether the reading was accepted; a full queue drops it.
func (p *IngestPool) Submit(frame protocol.Sensor) bool {
	select {
	case p.queue <- frame:
		return true
	default:
		p.log.Warn("ingest queue full, dropping reading", "uid", frame.UID)
		return false
	}
}

// Wait blocks until all workers have exited. Call after cancelling the
// context passed to Start.
func (p *IngestPool) Wait() {
	p.wg.Wait()
}

func (p *IngestPool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-p.queue:
			p.persist(ctx, frame)
		}
	}
}

func (p *IngestPool) persist(ctx context.Context, frame protocol.Sensor) {
	if err := p.store.AddReading(ctx, frame.UID, frame.Value, frame.Timestamp); err != nil {
		p.log.Error("failed to persist reading", "uid", frame.UID, "error", err)
	}
	if err := p.store.TouchConnection(ctx, frame.UID); err != nil {
		p.log.Error("failed to update last seen", "uid", frame.UID, "error", err)
	}
}
