// Package streaming provides the producer-side plumbing adapters use to
// emit normalized chunks: a buffered channel, a stall watchdog, and the
// end-of-stream bookkeeping.
package streaming

import (
	"context"
	"errors"
	"time"

	"github.com/davidbz/hearth/internal/domain"
)

const (
	// DefaultStallTimeout is how long a stream may go without any chunk
	// before it is abandoned.
	DefaultStallTimeout = 10 * time.Second

	chunkBuffer = 16
)

// NoResponsePlaceholder is emitted as the only text chunk of a stream that
// ended without producing content.
const NoResponsePlaceholder = "No response generated"

// Pipe owns the adapter side of one chunk stream. Emit, Fail and Close are
// called from a single producer goroutine; consumers only read Out.
//
// The watchdog is armed once the vendor stream opens, so connect-time
// retries are not cut short. From then on the stall window covers the wait
// for the first chunk and every gap after it; when it fires, the
// vendor-request context is cancelled with a stall error that Fail later
// surfaces to the consumer.
type Pipe struct {
	out        chan domain.StreamChunk
	ctx        context.Context
	cancel     context.CancelCauseFunc
	parentDone <-chan struct{}
	timer      *time.Timer
	stall      time.Duration
	provider   string
	sawContent bool
	closed     bool
}

// NewPipe builds a pipe for one stream. Context() must be used for the
// vendor request so the watchdog can abort it.
func NewPipe(parent context.Context, provider string, stall time.Duration) *Pipe {
	if stall <= 0 {
		stall = DefaultStallTimeout
	}

	ctx, cancel := context.WithCancelCause(parent)
	p := &Pipe{
		out:        make(chan domain.StreamChunk, chunkBuffer),
		ctx:        ctx,
		cancel:     cancel,
		parentDone: parent.Done(),
		stall:      stall,
		provider:   provider,
	}
	p.timer = time.AfterFunc(stall, func() {
		cancel(domain.Errorf(domain.ErrCodeStall, provider, "no stream activity for %s", stall))
	})
	p.timer.Stop()
	return p
}

// Arm starts the stall watchdog. Adapters call it after the vendor stream
// opens; before that only the parent context can end the request.
func (p *Pipe) Arm() {
	if p.closed {
		return
	}
	p.timer.Reset(p.stall)
}

// Out returns the receive side handed to consumers.
func (p *Pipe) Out() <-chan domain.StreamChunk { return p.out }

// Context returns the watchdog-guarded context for the vendor request.
func (p *Pipe) Context() context.Context { return p.ctx }

// Stalled reports whether the watchdog ended the stream. Stalls finalize
// gracefully with partial results instead of failing.
func (p *Pipe) Stalled() bool {
	return domain.IsCode(context.Cause(p.ctx), domain.ErrCodeStall)
}

// EmitText sends a text chunk. Empty fragments are dropped. It reports
// false when the stream context is done and the producer should stop.
func (p *Pipe) EmitText(text string) bool {
	if text == "" {
		return true
	}
	p.sawContent = true
	return p.send(domain.TextChunk(text))
}

// EmitReasoning sends a reasoning chunk. Empty fragments are dropped.
func (p *Pipe) EmitReasoning(text string) bool {
	if text == "" {
		return true
	}
	p.sawContent = true
	return p.send(domain.ReasoningChunk(text))
}

// CloseWithUsage finalizes the stream with the vendor's reported usage: a
// stream that produced no content first gets the placeholder text chunk,
// then the usage chunk, then the channel closes. Delivery works even after
// the watchdog cancelled the producer context, so a stalled stream still
// finalizes with the usage accumulated before the stall.
func (p *Pipe) CloseWithUsage(usage domain.Usage) {
	if p.closed {
		return
	}

	p.closed = true
	p.timer.Stop()

	if !p.sawContent {
		p.deliver(domain.TextChunk(NoResponsePlaceholder))
	}
	p.deliver(domain.UsageChunk(usage))

	close(p.out)
	p.cancel(nil)
}

// Fail delivers a terminal error chunk and closes the stream. When the
// watchdog aborted the vendor request, the stall cause replaces the
// transport error it provoked.
func (p *Pipe) Fail(err error) {
	if p.closed {
		return
	}

	if cause := context.Cause(p.ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		err = cause
	}

	p.closed = true
	p.timer.Stop()

	// The producer context is typically already cancelled here, but the
	// consumer may well still be draining; only a vanished consumer
	// (parent cancellation) may drop the terminal chunk.
	select {
	case p.out <- domain.ErrorChunk(err):
	case <-p.parentDone:
	}

	close(p.out)
	p.cancel(nil)
}

// Close ends a stream for which the vendor reported no usage. A stream
// that produced no content gets the placeholder text chunk and a
// zero-value usage chunk. Safe to call after Fail or a second time.
func (p *Pipe) Close() {
	if p.closed {
		return
	}

	p.closed = true
	p.timer.Stop()

	if !p.sawContent {
		p.deliver(domain.TextChunk(NoResponsePlaceholder))
		p.deliver(domain.UsageChunk(domain.Usage{}))
	}

	close(p.out)
	p.cancel(nil)
}

func (p *Pipe) send(chunk domain.StreamChunk) bool {
	if p.closed {
		return false
	}

	p.timer.Reset(p.stall)

	select {
	case p.out <- chunk:
		return true
	case <-p.ctx.Done():
		return false
	}
}

func (p *Pipe) deliver(chunk domain.StreamChunk) {
	select {
	case p.out <- chunk:
	case <-p.parentDone:
	}
}
