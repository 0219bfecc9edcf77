// services/billing-service/internal/events/bus.events.go
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tanmoy095/ClinicLedger/shared/kafka"
)

// Bus publishes billing events after the ledger has committed.
// Publishing is best-effort: the ledger is the source of truth and a lost event never rolls anything back.
// Emit only queues; a single worker drains the queue so a slow broker never holds up a request.
type Bus struct {
	pub     kafka.Publisher
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan envelope
	done   chan struct{}
}

type envelope struct {
	ctx   context.Context
	key   string
	event any
}

const defaultQueueSize = 1024

func NewBus(pub kafka.Publisher, logger *slog.Logger) *Bus {
	return NewBusWithQueue(pub, defaultQueueSize, logger)
}

// NewBusWithQueue is NewBus with an explicit queue capacity.
func NewBusWithQueue(pub kafka.Publisher, size int, logger *slog.Logger) *Bus {
	if pub == nil {
		pub = Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if size < 1 {
		size = 1
	}
	b := &Bus{
		pub:     pub,
		timeout: 5 * time.Second,
		logger:  logger.With(slog.String("component", "EventBus")),
		queue:   make(chan envelope, size),
		done:    make(chan struct{}),
	}
	go b.run()
	return b
}

// Emit queues event under key and returns immediately. The request context may already be
// finishing, so the event keeps its values but not its cancellation. A full queue drops the event.
func (b *Bus) Emit(ctx context.Context, key string, event any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.logger.WarnContext(ctx, "event emitted after close, dropping", slog.String("key", key))
		return
	}
	select {
	case b.queue <- envelope{ctx: context.WithoutCancel(ctx), key: key, event: event}:
	default:
		b.logger.WarnContext(ctx, "event queue full, dropping event", slog.String("key", key))
	}
}

func (b *Bus) run() {
	defer close(b.done)
	for env := range b.queue {
		b.publish(env)
	}
}

func (b *Bus) publish(env envelope) {
	ctx, cancel := context.WithTimeout(env.ctx, b.timeout)
	defer cancel()
	if err := b.pub.Publish(ctx, env.key, env.event); err != nil {
		b.logger.WarnContext(ctx, "event publish failed", slog.String("key", env.key), slog.Any("error", err))
	}
}

// Close stops accepting events, publishes what is already queued and closes the publisher.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	<-b.done
	return b.pub.Close()
}

// Nop discards events. Used when EVENTS_BACKEND=none.
type Nop struct{}

func (Nop) Publish(ctx context.Context, key string, value interface{}) error { return nil }
func (Nop) Close() error                                                   { return nil }
