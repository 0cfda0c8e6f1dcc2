package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Recorder appends audit entries on behalf of the caller. The contract
// is deliberately best-effort: Record never returns an error and never
// blocks the primary operation it describes. A failed business
// operation must still be rejected promptly, and a successful one must
// still complete, even when the audit write itself fails.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Store persists entries. Implemented by the PostgreSQL store and by
// test doubles.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
}

// Dispatcher is the asynchronous Recorder implementation: entries go
// through a buffered channel to a single writer goroutine. When the
// buffer is full the entry is dropped and counted rather than blocking
// the request path. Persistence failures are logged as warnings only.
type Dispatcher struct {
	store  Store
	logger *slog.Logger

	ch        chan Entry
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	onDrop    func()
	closeOnce sync.Once
}

// NewDispatcher starts the writer goroutine. bufferSize bounds the
// number of in-flight entries.
func NewDispatcher(store Store, logger *slog.Logger, bufferSize int) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	d := &Dispatcher{
		store:  store,
		logger: logger,
		ch:     make(chan Entry, bufferSize),
		done:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// OnDrop registers a callback invoked once per dropped entry. Set it
// during startup, before the dispatcher is shared across goroutines.
func (d *Dispatcher) OnDrop(fn func()) {
	d.onDrop = fn
}

func (d *Dispatcher) drop(entry Entry, reason string) {
	d.dropped.Add(1)
	if d.onDrop != nil {
		d.onDrop()
	}
	d.logger.Warn("audit entry dropped",
		slog.String("action", string(entry.Action)),
		slog.String("reason", reason))
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case entry := <-d.ch:
			d.persist(entry)
		case <-d.done:
			// Drain whatever is left before shutting down.
			for {
				select {
				case entry := <-d.ch:
					d.persist(entry)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) persist(entry Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.store.Insert(ctx, entry); err != nil {
		d.logger.Warn("audit write failed",
			slog.String("action", string(entry.Action)),
			slog.Any("error", err))
	}
}

// Record enqueues the entry without blocking. The entry timestamp is
// stamped here if the caller left it zero, so ordering across entries
// is established by the stored timestamp, not by write order.
func (d *Dispatcher) Record(ctx context.Context, entry Entry) {
	if d == nil {
		return
	}
	if !entry.Ref.Valid() {
		d.drop(entry, "ambiguous entity reference")
		return
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	select {
	case d.ch <- entry:
	case <-d.done:
	default:
		d.drop(entry, "buffer full")
	}
}

// Dropped returns the number of entries lost to a full buffer or an
// invalid entity reference.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close flushes buffered entries and stops the writer goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}

var _ Recorder = (*Dispatcher)(nil)
