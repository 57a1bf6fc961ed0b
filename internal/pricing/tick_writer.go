package pricing

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/observability"
)

const flushTimeout = 5 * time.Second

// TickSink persists batches of price ticks.
type TickSink interface {
	InsertBulk(ctx context.Context, ticks []*domain.PriceTick) error
}

// NamedSink labels a sink for logs and metrics.
type NamedSink struct {
	Name string
	Sink TickSink
}

// TickWriter buffers ticks off the processing path and writes them in batches.
// Enqueue never blocks; ticks are dropped when the queue is full.
type TickWriter struct {
	sinks         []NamedSink
	queue         chan domain.PriceTick
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger
	metrics       *observability.Metrics
	dropped       atomic.Uint64
}

// NewTickWriter creates a writer. A writer without sinks discards everything.
func NewTickWriter(sinks []NamedSink, queueSize, batchSize int, flushInterval time.Duration,
	logger *zap.Logger, metrics *observability.Metrics) *TickWriter {
	if queueSize <= 0 {
		queueSize = 4096
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TickWriter{
		sinks:         sinks,
		queue:         make(chan domain.PriceTick, queueSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger.Named("ticks"),
		metrics:       metrics,
	}
}

// Enqueue schedules a tick for persistence.
func (w *TickWriter) Enqueue(tick domain.PriceTick) {
	if len(w.sinks) == 0 {
		return
	}
	select {
	case w.queue <- tick:
	default:
		if w.dropped.Add(1) == 1 {
			w.logger.Warn("tick queue full, dropping ticks")
		}
		w.metrics.RecordTickDropped()
	}
}

// Dropped returns the number of ticks dropped so far.
func (w *TickWriter) Dropped() uint64 {
	return w.dropped.Load()
}

// Run writes batches until ctx is cancelled, then flushes what is left.
func (w *TickWriter) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	batch := make([]*domain.PriceTick, 0, w.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		w.write(ctx, batch)
		batch = make([]*domain.PriceTick, 0, w.batchSize)
	}

	for {
		select {
		case <-ctx.Done():
			// Drain without blocking, then flush on a fresh context.
		drain:
			for {
				select {
				case t := <-w.queue:
					tick := t
					batch = append(batch, &tick)
				default:
					break drain
				}
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			flush(flushCtx)
			cancel()
			return nil

		case t := <-w.queue:
			tick := t
			batch = append(batch, &tick)
			if len(batch) >= w.batchSize {
				flush(ctx)
			}

		case <-ticker.C:
			flush(ctx)
		}
	}
}

func (w *TickWriter) write(ctx context.Context, batch []*domain.PriceTick) {
	for _, s := range w.sinks {
		if err := s.Sink.InsertBulk(ctx, batch); err != nil {
			w.metrics.RecordSinkError(s.Name)
			w.logger.Warn("tick batch write failed",
				zap.String("sink", s.Name), zap.Int("ticks", len(batch)), zap.Error(err))
		}
	}
}
