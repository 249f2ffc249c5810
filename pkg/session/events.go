package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type EventType string

const (
	EventCreated EventType = "created"
	EventDeleted EventType = "deleted"
	EventExpired EventType = "expired"
)

// Event reports a session lifecycle transition. Source is the repository
// that produced it.
type Event struct {
	Type      EventType
	Source    any
	Session   *Session
	Timestamp time.Time
}

func (e Event) String() string {
	id := ""
	if e.Session != nil {
		id = e.Session.ID()
	}
	return fmt.Sprintf("session %s event for %s", e.Type, id)
}

// Publisher receives lifecycle events. Errors it returns are logged by the
// repository and never fail the data operation.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// NoopPublisher drops events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// ErrEventBufferFull is returned by ChannelPublisher when nobody drains the
// channel fast enough.
var ErrEventBufferFull = errors.New("session event buffer full")

// ChannelPublisher writes events into a buffered channel. A full buffer drops
// the event and reports ErrEventBufferFull instead of waiting for a reader.
type ChannelPublisher struct {
	events chan Event
}

func NewChannelPublisher(buffer int) *ChannelPublisher {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelPublisher{
		events: make(chan Event, buffer),
	}
}

func (p *ChannelPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.events <- event:
		return nil
	default:
		return fmt.Errorf("drop %s: %w", event, ErrEventBufferFull)
	}
}

func (p *ChannelPublisher) Events() <-chan Event {
	return p.events
}

// LogPublisher records every event through a slog.Logger.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, event Event) error {
	id := ""
	if event.Session != nil {
		id = event.Session.ID()
	}
	p.Logger.InfoContext(ctx, "session event", "type", string(event.Type), "session", id)
	return nil
}

// DispatcherConfig controls Dispatcher buffering.
type DispatcherConfig struct {
	BufferSize int
	DropIfFull bool
}

// Dispatcher forwards events to another Publisher from a background
// goroutine so slow sinks do not hold up repository calls.
type Dispatcher struct {
	cfg       DispatcherConfig
	next      Publisher
	logger    *slog.Logger
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

var _ Publisher = (*Dispatcher)(nil)

func NewDispatcher(cfg DispatcherConfig, next Publisher, logger *slog.Logger) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if next == nil {
		next = NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		cfg:    cfg,
		next:   next,
		logger: logger,
		ch:     make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.forward(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.forward(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) forward(event Event) {
	safePublish(context.Background(), d.next, d.logger, event)
}

// Publish queues the event. With DropIfFull a full buffer drops the event
// instead of blocking.
func (d *Dispatcher) Publish(ctx context.Context, event Event) error {
	if d.closed.Load() {
		return nil
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return nil
	}

	select {
	case d.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return nil
	}
}

// Close stops accepting events and waits until queued ones are delivered.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// safePublish isolates the caller from publisher errors and panics.
func safePublish(ctx context.Context, p Publisher, logger *slog.Logger, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "publishing session event panicked", "event", event.String(), "panic", r)
		}
	}()
	if err := p.Publish(ctx, event); err != nil {
		logger.ErrorContext(ctx, "error publishing session event", "event", event.String(), "error", err)
	}
}
