package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/glitchidea/glichflow/internal/observability/logger"
	"github.com/glitchidea/glichflow/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const DefaultSubscriberBuffer = 64

// Handler reacts to one delivered event. Errors are logged and never reach
// the publisher.
type Handler func(ctx context.Context, env Envelope) error

// Publisher is the side of the bus producers depend on.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Subscriber is the side of the bus consumers depend on.
type Subscriber interface {
	Subscribe(topic Topic, name string, handler Handler) error
}

type subscription struct {
	name    string
	topic   Topic
	handler Handler
	ch      chan Envelope
}

// Bus fans events out to subscribers. In async mode every subscriber owns a
// buffered channel drained by its own goroutine; a full buffer drops the
// event. In sync mode handlers run inline on Publish.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]*subscription
	log    *zap.Logger
	async  bool
	buffer int
	now    func() time.Time

	wg      sync.WaitGroup
	started bool
	closed  bool
}

var ErrBusClosed = errors.New("bus_closed")

func NewBus(log *zap.Logger, async bool) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		subs:   make(map[Topic][]*subscription),
		log:    log.Named("events.bus"),
		async:  async,
		buffer: DefaultSubscriberBuffer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewSyncBus delivers inline. Tests use it so assertions can follow Publish.
func NewSyncBus(log *zap.Logger) *Bus {
	return NewBus(log, false)
}

func (b *Bus) Subscribe(topic Topic, name string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}

	sub := &subscription{name: name, topic: topic, handler: handler}
	if b.async {
		sub.ch = make(chan Envelope, b.buffer)
		if b.started {
			b.run(sub)
		}
	}
	b.subs[topic] = append(b.subs[topic], sub)
	return nil
}

func (b *Bus) Publish(ctx context.Context, event Event) {
	if b == nil || event == nil {
		return
	}
	_, cid := correlation.EnsureCorrelationID(ctx)
	env := Envelope{
		ID:            correlation.NewID(),
		CorrelationID: cid,
		PublishedAt:   b.now(),
		Event:         event,
	}

	if !b.async {
		b.mu.RLock()
		subs := append([]*subscription(nil), b.subs[event.Topic()]...)
		closed := b.closed
		b.mu.RUnlock()
		if closed {
			return
		}
		for _, sub := range subs {
			b.deliver(ctx, sub, env)
		}
		return
	}

	// Sends are non-blocking, so holding the read lock keeps Stop from
	// closing a channel mid-send without stalling publishers.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs[event.Topic()] {
		select {
		case sub.ch <- env:
		default:
			b.log.Warn("subscriber buffer full, event dropped",
				zap.String("topic", string(env.Event.Topic())),
				zap.String("subscriber", sub.name),
				zap.String("event_id", env.ID),
			)
		}
	}
}

// Start launches the subscriber goroutines of an async bus.
func (b *Bus) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.async || b.started {
		return
	}
	b.started = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			b.run(sub)
		}
	}
}

// Stop closes subscriber channels and waits until queued events are handled
// or ctx expires.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	if b.async {
		for _, subs := range b.subs {
			for _, sub := range subs {
				close(sub.ch)
			}
		}
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) run(sub *subscription) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for env := range sub.ch {
			ctx := correlation.ContextWithCorrelationID(context.Background(), env.CorrelationID)
			b.deliver(ctx, sub, env)
		}
	}()
}

func (b *Bus) deliver(ctx context.Context, sub *subscription, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				zap.String("subscriber", sub.name),
				zap.Any("panic", r),
			)
		}
	}()
	if err := sub.handler(ctx, env); err != nil {
		logger.WithContext(ctx, b.log).Warn("event handler failed",
			zap.String("topic", string(env.Event.Topic())),
			zap.String("subscriber", sub.name),
			zap.String("event_id", env.ID),
			zap.Error(err),
		)
	}
}

func newFxBus(lc fx.Lifecycle, log *zap.Logger) *Bus {
	bus := NewBus(log, true)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			bus.Start()
			return nil
		},
		OnStop: bus.Stop,
	})
	return bus
}

var Module = fx.Module("events",
	fx.Provide(
		newFxBus,
		func(b *Bus) Publisher { return b },
		func(b *Bus) Subscriber { return b },
	),
)
