package authcore

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher moves sink calls off the request path: Emit enqueues onto
// a bounded channel that a single worker drains.
//
// mu guards closing ch. Emit holds the read lock while sending so Close
// cannot close the channel under it.
type auditDispatcher struct {
	sink       AuditSink
	dropIfFull bool

	mu      sync.RWMutex
	closed  bool
	ch      chan AuditEvent
	stopped chan struct{}
	dropped atomic.Uint64
}

// newAuditDispatcher returns nil when auditing is disabled. All methods
// accept a nil receiver.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		ch:         make(chan AuditEvent, max(cfg.BufferSize, 1)),
		stopped:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.stopped)
	ctx := context.Background()
	for event := range d.ch {
		d.deliver(ctx, event)
	}
}

// deliver keeps a panicking sink from killing the worker.
func (d *auditDispatcher) deliver(ctx context.Context, event AuditEvent) {
	defer func() { _ = recover() }()
	d.sink.Emit(ctx, event)
}

// Emit queues event. When the buffer is full it either drops the event and
// counts it, or blocks until there is room or ctx is done.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.ch <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.ch <- event:
	case <-ctx.Done():
	}
}

// Close stops accepting events, delivers what is queued and waits for the
// worker. Repeated calls are no-ops.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()
	<-d.stopped
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
