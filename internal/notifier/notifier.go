package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Notifier delivers a text message to one chat channel.
type Notifier interface {
	Send(ctx context.Context, text string) error
	Name() string
}

// Multi fans a message out to every sink. A failing sink does not stop the
// others.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Send(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, text); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// defaultQueueSize bounds the messages waiting for delivery.
const defaultQueueSize = 100

// Dispatcher is the best-effort, fire-and-forget front of a Notifier. Notify
// only queues the message; one background worker delivers it, retrying with
// exponential backoff. A message that still fails, or that finds the queue
// full, is logged and dropped.
type Dispatcher struct {
	sink       Notifier
	log        *zap.Logger
	maxRetries uint64
	newBackOff func() backoff.BackOff

	queue   chan string
	done    chan struct{}
	mu      sync.Mutex
	started bool
	closed  bool
}

// NewDispatcher wraps sink. maxRetries bounds the attempts after the first.
// Call Start to begin delivery and Close to flush on shutdown.
func NewDispatcher(sink Notifier, maxRetries int, log *zap.Logger) *Dispatcher {
	return newDispatcher(sink, maxRetries, defaultQueueSize, log)
}

func newDispatcher(sink Notifier, maxRetries, queueSize int, log *zap.Logger) *Dispatcher {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Dispatcher{
		sink:       sink,
		log:        log,
		maxRetries: uint64(maxRetries),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			return b
		},
		queue: make(chan string, queueSize),
		done:  make(chan struct{}),
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	go d.run()
}

// Close stops accepting messages and waits until the queued ones are
// delivered or dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	started := d.started
	d.mu.Unlock()
	if started {
		<-d.done
	}
}

// Notify queues text and returns immediately. It never reports failure to
// the caller.
func (d *Dispatcher) Notify(_ context.Context, text string) {
	d.log.Info("notify", zap.String("text", text))

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.log.Warn("dispatcher closed, message dropped", zap.String("text", text))
		return
	}
	select {
	case d.queue <- text:
	default:
		d.log.Error("notification queue full, message dropped", zap.String("text", text))
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for text := range d.queue {
		d.deliver(text)
	}
}

func (d *Dispatcher) deliver(text string) {
	attempt := 0
	op := func() error {
		attempt++
		err := d.sink.Send(context.Background(), text)
		if err != nil {
			d.log.Warn("send failed", zap.String("sink", d.sink.Name()), zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithMaxRetries(d.newBackOff(), d.maxRetries)); err != nil {
		d.log.Error("message dropped", zap.String("sink", d.sink.Name()), zap.Int("attempts", attempt), zap.Error(err))
	}
}
