package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DispatcherOptions configures a Dispatcher. Zero fields take defaults.
type DispatcherOptions struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// Dispatcher hands messages to a Gateway from a fixed pool of workers. The
// queue is bounded; when it is full new messages are dropped and logged.
// Delivery failures are logged and never reach the caller.
type Dispatcher struct {
	gw      Gateway
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	wg     sync.WaitGroup
}

// NewDispatcher starts the worker pool.
func NewDispatcher(gw Gateway, log *slog.Logger, opts DispatcherOptions) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}

	d := &Dispatcher{
		gw:      gw,
		log:     log,
		timeout: opts.SendTimeout,
		queue:   make(chan Message, opts.QueueSize),
	}
	for range opts.Workers {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Notify queues msg without blocking.
func (d *Dispatcher) Notify(msg Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn("notification dropped: dispatcher closed", "event", string(msg.Event), "user_id", msg.To.UserID)
		return
	}

	select {
	case d.queue <- msg:
	default:
		d.log.Warn("notification dropped: queue full", "event", string(msg.Event), "user_id", msg.To.UserID)
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.send(msg)
	}
}

func (d *Dispatcher) send(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("notification gateway panicked", "event", string(msg.Event), "panic", r)
		}
	}()

	if err := d.gw.Send(ctx, msg); err != nil {
		d.log.Error("notification failed", "event", string(msg.Event), "user_id", msg.To.UserID, "error", err)
	}
}

// Close stops accepting messages and waits for queued ones to be sent or
// for ctx to end, whichever is first.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
