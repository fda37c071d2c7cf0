package observability

import (
	"sync"
	"time"
)

const (
	defaultBatchCapacity = 32
	defaultBatchInterval = 5 * time.Second
)

// Sink receives a flushed batch. Production code passes a zap method
// (logger.Debug); tests pass a capture function.
type Sink func(msg string, fields ...Field)

// Batcher coalesces high-frequency records into periodic batched log
// entries so per-chunk debug logging does not flood the sink. A batch is
// flushed when it reaches capacity or when the flush interval elapses,
// whichever comes first.
type Batcher struct {
	mu       sync.Mutex
	name     string
	sink     Sink
	capacity int
	interval time.Duration
	records  []string
	timer    *time.Timer
	closed   bool
}

// BatcherOption customizes a Batcher.
type BatcherOption func(*Batcher)

// WithBatchCapacity sets the record count that triggers a flush.
func WithBatchCapacity(n int) BatcherOption {
	return func(b *Batcher) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// WithBatchInterval sets the maximum time records may sit unflushed.
func WithBatchInterval(d time.Duration) BatcherOption {
	return func(b *Batcher) {
		if d > 0 {
			b.interval = d
		}
	}
}

// NewBatcher creates a batcher that emits batches to sink under the given
// message name.
func NewBatcher(name string, sink Sink, opts ...BatcherOption) *Batcher {
	b := &Batcher{
		name:     name,
		sink:     sink,
		capacity: defaultBatchCapacity,
		interval: defaultBatchInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add appends a record to the current batch. Records added after Close are
// dropped.
func (b *Batcher) Add(record string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.records = append(b.records, record)
	if len(b.records) >= b.capacity {
		b.flushLocked()
		return
	}

	if b.timer == nil {
		b.timer = time.AfterFunc(b.interval, b.Flush)
	}
}

// Flush synchronously emits any buffered records as a single batch.
func (b *Batcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// Close flushes remaining records and stops the timer. Subsequent Add calls
// are no-ops. Safe to call more than once.
func (b *Batcher) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.flushLocked()
}

func (b *Batcher) flushLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}

	if len(b.records) == 0 {
		return
	}

	records := b.records
	b.records = nil
	b.sink(b.name, Int("count", len(records)), Strings("records", records))
}
