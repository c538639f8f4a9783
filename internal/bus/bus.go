// Package bus is the typed message bus at the center of the runtime: two
// FIFO queues for inbound/outbound messages, a fan-out dispatcher for system
// events, and a per-run_id monotonic sequence counter.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kaivyy/agentd/pkg/models"
)

// OutboundSubscriber receives outbound messages for a specific channel.
type OutboundSubscriber func(msg models.OutboundMessage)

// SystemEventSubscriber receives every system event published on the bus.
type SystemEventSubscriber func(event models.SystemEvent)

// defaultQueueSize bounds the inbound/outbound queues. A full queue applies
// backpressure to publishers rather than growing unbounded.
const defaultQueueSize = 256

// Bus is the shared message bus. It is safe for concurrent use by any number
// of channel adapters, the agent loop, and the heartbeat injector.
type Bus struct {
	log *slog.Logger

	inbound  chan models.InboundMessage
	outbound chan models.OutboundMessage
	events   chan models.SystemEvent

	mu                sync.RWMutex
	outboundSubs      map[string][]OutboundSubscriber
	systemEventSubs   []SystemEventSubscriber
	seqByRun          map[string]*int64
	seqMu             sync.Mutex

	running atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates a Bus with bounded inbound/outbound/event queues.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	b := &Bus{
		log:             log.With("component", "bus"),
		inbound:         make(chan models.InboundMessage, defaultQueueSize),
		outbound:        make(chan models.OutboundMessage, defaultQueueSize),
		events:          make(chan models.SystemEvent, defaultQueueSize),
		outboundSubs:    make(map[string][]OutboundSubscriber),
		seqByRun:        make(map[string]*int64),
		stop:            make(chan struct{}),
	}
	b.running.Store(true)
	return b
}

// PublishInbound enqueues an inbound message. Blocks if the queue is full.
func (b *Bus) PublishInbound(ctx context.Context, msg models.InboundMessage) error {
	select {
	case b.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConsumeInbound blocks until an inbound message is available, the context
// is cancelled, or the bus is shut down.
func (b *Bus) ConsumeInbound(ctx context.Context) (models.InboundMessage, bool) {
	select {
	case msg, ok := <-b.inbound:
		return msg, ok
	case <-ctx.Done():
		return models.InboundMessage{}, false
	case <-b.stop:
		return models.InboundMessage{}, false
	}
}

// PublishOutbound enqueues an outbound message and fans it out to every
// subscriber registered for msg.Channel. A slow or failing subscriber never
// blocks delivery to the others.
func (b *Bus) PublishOutbound(ctx context.Context, msg models.OutboundMessage) error {
	select {
	case b.outbound <- msg:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.dispatchOutbound(msg)
	return nil
}

// ConsumeOutbound drains one outbound message, for collectors/tests that
// don't use subscriptions.
func (b *Bus) ConsumeOutbound(ctx context.Context) (models.OutboundMessage, bool) {
	select {
	case msg, ok := <-b.outbound:
		return msg, ok
	case <-ctx.Done():
		return models.OutboundMessage{}, false
	}
}

// SubscribeOutbound registers a callback for outbound messages on a channel.
func (b *Bus) SubscribeOutbound(channel string, sub OutboundSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outboundSubs[channel] = append(b.outboundSubs[channel], sub)
}

func (b *Bus) dispatchOutbound(msg models.OutboundMessage) {
	b.mu.RLock()
	subs := append([]OutboundSubscriber(nil), b.outboundSubs[msg.Channel]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		b.safeDeliver(sub, msg)
	}
}

func (b *Bus) safeDeliver(sub OutboundSubscriber, msg models.OutboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("outbound subscriber panicked", "channel", msg.Channel, "panic", r)
		}
	}()
	sub(msg)
}

// NextSeq returns the next monotonic sequence number for run_id, starting at 1.
func (b *Bus) NextSeq(runID string) int64 {
	b.seqMu.Lock()
	defer b.seqMu.Unlock()
	counter, ok := b.seqByRun[runID]
	if !ok {
		var zero int64
		counter = &zero
		b.seqByRun[runID] = counter
	}
	*counter++
	return *counter
}

// EmitSystemEvent publishes event to the queue and synchronously fans it out
// to every registered subscriber, tolerating per-subscriber panics/errors so
// one bad subscriber never blocks delivery to the rest.
func (b *Bus) EmitSystemEvent(event models.SystemEvent) {
	select {
	case b.events <- event:
	default:
		// Queue is full: drop the oldest rather than block the emitter.
		select {
		case <-b.events:
		default:
		}
		select {
		case b.events <- event:
		default:
		}
	}

	b.mu.RLock()
	subs := append([]SystemEventSubscriber(nil), b.systemEventSubs...)
	b.mu.RUnlock()

	for _, sub := range subs {
		b.safeDeliverEvent(sub, event)
	}
}

func (b *Bus) safeDeliverEvent(sub SystemEventSubscriber, event models.SystemEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("system event subscriber panicked", "run_id", event.RunID, "panic", r)
		}
	}()
	sub(event)
}

// SubscribeSystemEvents registers a callback invoked for every system event.
func (b *Bus) SubscribeSystemEvents(sub SystemEventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.systemEventSubs = append(b.systemEventSubs, sub)
}

// Stop marks the bus as shut down and unblocks any pending ConsumeInbound
// calls. Already-queued messages are left in place; in-flight turns are
// expected to complete before the process exits.
func (b *Bus) Stop() {
	if b.running.CompareAndSwap(true, false) {
		close(b.stop)
	}
}

// Running reports whether the bus is still accepting work.
func (b *Bus) Running() bool {
	return b.running.Load()
}

// InboundSize, OutboundSize, and SystemEventsSize report queue depth, mostly
// for diagnostics commands.
func (b *Bus) InboundSize() int      { return len(b.inbound) }
func (b *Bus) OutboundSize() int     { return len(b.outbound) }
func (b *Bus) SystemEventsSize() int { return len(b.events) }
