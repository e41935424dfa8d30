package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/apexline/simcore/pkg/protocol"
)

// HandlerFunc processes an inbound protocol message.
type HandlerFunc func(protocol.Message) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*handlerConfig)

type handlerConfig struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *handlerConfig) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *handlerConfig) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *handlerConfig) {
		c.logged = true
	}
}

// Dispatcher routes inbound protocol messages to registered handlers.
// Handlers registered without Buffered run synchronously on the caller's
// goroutine, which keeps the roster single-writer when the caller is the
// session read loop.
type Dispatcher struct {
	handlers map[protocol.Kind]HandlerFunc
	logger   Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	// Track buffers for gauge callback
	mu      sync.RWMutex
	buffers map[protocol.Kind]chan protocol.Message
}

// NewDispatcher creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewDispatcher(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[protocol.Kind]HandlerFunc),
		buffers:  make(map[protocol.Kind]chan protocol.Message),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"session.inbound.queue.size",
		metric.WithDescription("Current number of inbound messages queued per kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for kind, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("kind", string(kind))))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"session.inbound.processed",
		metric.WithDescription("Total inbound messages processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"session.inbound.dropped",
		metric.WithDescription("Total inbound messages dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given message kind with optional configuration.
func (d *Dispatcher) Register(kind protocol.Kind, h HandlerFunc, opts ...Option) {
	cfg := &handlerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(kind, cfg.bufferSize, cfg.blocking, handler)
	}

	if cfg.logged {
		handler = d.withLogging(kind, handler)
	}

	d.handlers[kind] = handler
}

// Dispatch routes a message to its handler.
func (d *Dispatcher) Dispatch(msg protocol.Message) error {
	h, ok := d.handlers[msg.Kind()]
	if !ok {
		return fmt.Errorf("no handler for message kind: %s", msg.Kind())
	}
	err := h(msg)
	if err == nil {
		d.processed.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("kind", string(msg.Kind()))))
	}
	return err
}

// HasHandler returns true if a handler is registered for the kind.
func (d *Dispatcher) HasHandler(kind protocol.Kind) bool {
	_, ok := d.handlers[kind]
	return ok
}

func (d *Dispatcher) withBuffer(kind protocol.Kind, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan protocol.Message, size)

	d.mu.Lock()
	d.buffers[kind] = buffer
	d.mu.Unlock()

	kindAttr := attribute.String("kind", string(kind))

	go func() {
		for msg := range buffer {
			if err := h(msg); err != nil && d.logger != nil {
				d.logger.Error("buffered handler failed", "kind", kind, "error", err)
			}
		}
	}()

	if blocking {
		return func(msg protocol.Message) error {
			buffer <- msg
			return nil
		}
	}

	return func(msg protocol.Message) error {
		select {
		case buffer <- msg:
			return nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(kindAttr))
			return fmt.Errorf("queue full: %s", kind)
		}
	}
}

func (d *Dispatcher) withLogging(kind protocol.Kind, h HandlerFunc) HandlerFunc {
	return func(msg protocol.Message) error {
		start := time.Now()
		d.logger.Debug("handling message", "kind", kind)

		err := h(msg)

		if err != nil {
			d.logger.Error("message failed", "kind", kind, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("message complete", "kind", kind, "duration", time.Since(start))
		}

		return err
	}
}
