// Package channel provides the in-process transport linking ring endpoints.
// It hides the chan type and select statements behind a message passing API,
// so actor code polls with a bounded timeout instead of blocking forever.
package channel

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/fluxorio/ringnet/pkg/work"
)

var (
	// ErrClosed is returned when sending or receiving on a shut-down channel.
	ErrClosed = errors.New("channel: shut down")
)

// DefaultCapacity is used when no explicit capacity is given.
const DefaultCapacity = 1024

// Channel is a FIFO transport between exactly two endpoints: its writer and
// its reader. Receive takes a timeout so callers can re-check their running
// flag at a bounded cadence; a timeout is a normal outcome, not an error.
type Channel interface {
	// Send enqueues item at the tail. It blocks only while the buffer is
	// full, and unblocks on shutdown. Returns ErrClosed after Shutdown.
	Send(item *work.Item) error

	// Receive blocks until an item arrives, timeout elapses, or the channel
	// is shut down. A timeout returns (nil, false, nil). After shutdown it
	// returns ErrClosed instead of blocking.
	Receive(timeout time.Duration) (*work.Item, bool, error)

	// Shutdown stops the channel and discards anything buffered.
	// Idempotent; safe to race with Send and Receive.
	Shutdown()

	// Len returns the number of buffered items.
	Len() int

	// IsShutdown reports whether Shutdown has been called.
	IsShutdown() bool
}

// ringChannel implements Channel. The data channel is never closed; shutdown
// is signalled through done so a send racing Shutdown cannot panic.
type ringChannel struct {
	items  chan *work.Item
	done   chan struct{}
	closed int32 // atomic flag
}

// New creates a Channel with the given buffer capacity.
func New(capacity int) Channel {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &ringChannel{
		items: make(chan *work.Item, capacity),
		done:  make(chan struct{}),
	}
}

func (c *ringChannel) Send(item *work.Item) error {
	if item == nil {
		return nil
	}
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClosed
	}

	select {
	case c.items <- item:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *ringChannel) Receive(timeout time.Duration) (*work.Item, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item := <-c.items:
		return item, true, nil
	case <-c.done:
		return nil, false, ErrClosed
	case <-timer.C:
		// Expected outcome: lets the caller poll its running flag.
		return nil, false, nil
	}
}

func (c *ringChannel) Shutdown() {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return
	}
	close(c.done)

	// Discard anything still buffered; in-flight items are dropped by design
	// during teardown.
	for {
		select {
		case <-c.items:
		default:
			return
		}
	}
}

func (c *ringChannel) Len() int {
	return len(c.items)
}

func (c *ringChannel) IsShutdown() bool {
	return atomic.LoadInt32(&c.closed) == 1
}
