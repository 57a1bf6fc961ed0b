package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/observability"
)

const (
	defaultOutboxSize = 256
	sendTimeout       = 10 * time.Second
)

// Sender delivers events to an external system.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

type namedSender struct {
	name   string
	sender Sender
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSender adds an external sender. Senders run on the Run goroutine.
func WithSender(name string, s Sender) Option {
	return func(d *Dispatcher) { d.senders = append(d.senders, namedSender{name, s}) }
}

// WithEvents limits external senders to the named event types.
// Empty means all types.
func WithEvents(types []string) Option {
	return func(d *Dispatcher) {
		if len(types) == 0 {
			return
		}
		d.filter = make(map[EventType]bool, len(types))
		for _, t := range types {
			d.filter[EventType(t)] = true
		}
	}
}

// WithMetrics records sender failures.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatcher turns position and execution callbacks into events. Every
// event is logged and offered to subscribers synchronously; external
// senders are served from an outbox by Run so a slow sender never blocks
// the caller. A full outbox or subscriber drops the event.
type Dispatcher struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	senders []namedSender
	filter  map[EventType]bool
	now     func() time.Time
	outbox  chan Event

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		logger: logger.Named("notify"),
		now:    time.Now,
		outbox: make(chan Event, defaultOutboxSize),
		subs:   make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// PositionOpened implements position.Listener.
func (d *Dispatcher) PositionOpened(pos *domain.Position) {
	d.Publish(Event{Type: EventPositionOpened, Mint: pos.Mint, Strategy: pos.Strategy, Position: pos.Clone()})
}

// PositionClosed implements position.Listener.
func (d *Dispatcher) PositionClosed(pos *domain.Position) {
	d.Publish(Event{Type: EventPositionClosed, Mint: pos.Mint, Strategy: pos.Strategy, Position: pos.Clone()})
}

// SignalRejected implements execution.Notifier.
func (d *Dispatcher) SignalRejected(sig domain.TradeSignal, err error) {
	ev := Event{Type: EventSignalRejected, Mint: sig.Mint, Strategy: sig.Strategy, Signal: signalInfo(sig)}
	if err != nil {
		ev.Error = err.Error()
	}
	d.Publish(ev)
}

// ExecutionFailed implements execution.Notifier.
func (d *Dispatcher) ExecutionFailed(sig domain.TradeSignal, res domain.TradeResult) {
	d.Publish(Event{
		Type:     EventExecutionFailed,
		Mint:     sig.Mint,
		Strategy: sig.Strategy,
		Signal:   signalInfo(sig),
		Error:    res.Error,
	})
}

// FeedError reports an undecodable feed message.
func (d *Dispatcher) FeedError(kind, detail string) {
	d.Publish(Event{Type: EventFeedError, Error: kind + ": " + detail})
}

// Publish logs ev, hands it to subscribers and queues it for senders.
func (d *Dispatcher) Publish(ev Event) {
	if ev.Time == 0 {
		ev.Time = d.now().UnixMilli()
	}
	d.log(ev)

	d.mu.Lock()
	for _, ch := range d.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	d.mu.Unlock()

	if len(d.senders) == 0 || (d.filter != nil && !d.filter[ev.Type]) {
		return
	}
	select {
	case d.outbox <- ev:
	default:
		d.logger.Warn("notification outbox full, dropping event", zap.String("type", string(ev.Type)))
	}
}

func (d *Dispatcher) log(ev Event) {
	fields := []zap.Field{zap.String("type", string(ev.Type))}
	if ev.Mint != "" {
		fields = append(fields, zap.String("mint", ev.Mint))
	}
	if ev.Strategy != "" {
		fields = append(fields, zap.String("strategy", ev.Strategy))
	}
	if ev.Error != "" {
		fields = append(fields, zap.String("error", ev.Error))
	}

	switch ev.Type {
	case EventExecutionFailed, EventFeedError:
		d.logger.Warn("notification", fields...)
	case EventSignalRejected:
		d.logger.Debug("notification", fields...)
	default:
		d.logger.Info("notification", fields...)
	}
}

// Subscribe returns a channel receiving every event and a function that
// ends the subscription.
func (d *Dispatcher) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.subs[id] = ch
	d.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, id)
			d.mu.Unlock()
			close(ch)
		})
	}
}

// Run delivers queued events to senders until ctx is canceled, then
// flushes what is left within one send timeout.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-d.outbox:
			d.deliver(ctx, ev)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
			defer cancel()
			for {
				select {
				case ev := <-d.outbox:
					d.deliver(flushCtx, ev)
				default:
					return nil
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, s := range d.senders {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := s.sender.Send(sendCtx, ev)
		cancel()
		if err != nil {
			d.metrics.RecordSinkError(s.name)
			d.logger.Warn("notification send failed",
				zap.String("sender", s.name),
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
		}
	}
}
