package memoauth

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher hands events to a single goroutine that feeds the sink, so
// a slow sink never sits on the request path. When the buffer is full, Emit
// either drops and counts the event or waits, depending on DropIfFull.
type auditDispatcher struct {
	sink  AuditSink
	queue chan AuditEvent
	wait  bool

	// mu guards closed and the close of queue against in-flight sends.
	mu      sync.RWMutex
	closed  bool
	quit    chan struct{}
	stopped chan struct{}
	stop    sync.Once

	dropped atomic.Uint64
}

// newAuditDispatcher returns nil when audit is disabled. Every method accepts
// a nil receiver.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:    sink,
		queue:   make(chan AuditEvent, max(cfg.BufferSize, 1)),
		wait:    !cfg.DropIfFull,
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *auditDispatcher) loop() {
	defer close(d.stopped)

	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit reports whether the event was queued. A queued event is always handed
// to the sink, even when Close runs concurrently.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) bool {
	if d == nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	if !d.wait {
		select {
		case d.queue <- event:
			return true
		default:
			d.dropped.Add(1)
			return false
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
		return true
	case <-ctx.Done():
	case <-d.quit:
	}
	return false
}

// Close stops accepting events, flushes the queue and waits for the sink.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.stop.Do(func() {
		// Unblock waiting senders before taking the write lock.
		close(d.quit)
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	<-d.stopped
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (m *Manager) emitAudit(ctx context.Context, eventType, email string, err error, metadata map[string]string) {
	if m == nil || m.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: m.now().UTC(),
		EventType: eventType,
		Email:     email,
		RequestID: RequestIDFromContext(ctx),
		Success:   err == nil,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = Classify(err).Code
	}
	m.audit.Emit(ctx, event)
}

// AuditDropped reports events discarded because the audit buffer was full.
func (m *Manager) AuditDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.audit.Dropped()
}
