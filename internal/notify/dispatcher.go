package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"giftcards/internal/logger"
	"giftcards/internal/metrics"
)

const defaultQueueSize = 100

// Dispatcher delivers messages from a background worker. When the queue is
// full, or the dispatcher is closed, the message is sent synchronously.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	queue   chan Message
	done    chan struct{}

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewDispatcher creates a dispatcher. Call Start to run the worker.
func NewDispatcher(sender Sender, queueSize int, timeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		sender:  sender,
		timeout: timeout,
		queue:   make(chan Message, queueSize),
		done:    make(chan struct{}),
	}
}

// Start runs the delivery worker until Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	go d.worker(context.WithoutCancel(ctx))
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer close(d.done)
	for msg := range d.queue {
		d.deliver(ctx, msg)
	}
}

// Notify queues msg (non-blocking).
func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	if msg.To == "" {
		return
	}

	d.mu.RLock()
	queued := false
	if !d.closed {
		select {
		case d.queue <- msg:
			queued = true
		default:
		}
	}
	d.mu.RUnlock()

	if !queued {
		// Queue full or closed, deliver synchronously as fallback
		d.deliver(context.WithoutCancel(ctx), msg)
	}
}

// Close stops accepting messages and waits until queued ones are delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if started {
		<-d.done
		return
	}
	for msg := range d.queue {
		d.deliver(context.Background(), msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sender.SendCardsEmail(ctx, msg); err != nil {
		metrics.Notifications.WithLabelValues(string(msg.Type), "failed").Inc()
		logger.Warn("Failed to send cards email",
			zap.String("type", string(msg.Type)),
			zap.Int("cards", len(msg.Cards)),
			zap.Error(err),
		)
		return
	}
	metrics.Notifications.WithLabelValues(string(msg.Type), "sent").Inc()
}
