package ring

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxorio/ringnet/pkg/channel"
	"github.com/fluxorio/ringnet/pkg/config"
	"github.com/fluxorio/ringnet/pkg/logging"
	"github.com/fluxorio/ringnet/pkg/metrics"
	"github.com/fluxorio/ringnet/pkg/work"
)

// Client produces work on its own goroutine and submits it over a channel to
// one designated node. Destinations rotate round-robin over the node ids and
// each send is spaced by a fixed delay to emulate variable arrival.
type Client struct {
	ch    channel.Channel
	size  int
	delay time.Duration

	emittedCount atomic.Int64
	emittedSum   atomic.Int64
	emitting     atomic.Int64

	done    chan struct{}
	stopped int32 // atomic flag
	wg      sync.WaitGroup
	log     logging.Logger
	m       *metrics.Metrics
}

func newClient(ch channel.Channel, size int, cfg config.ClientConfig, log logging.Logger, m *metrics.Metrics) *Client {
	return &Client{
		ch:    ch,
		size:  size,
		delay: cfg.SubmitDelay.Std(),
		done:  make(chan struct{}),
		log:   log,
		m:     m,
	}
}

// Emit launches a goroutine submitting amount requests. The n-th item is
// addressed to node n % size with payload n.
func (c *Client) Emit(amount int) {
	c.emitting.Add(1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.emitting.Add(-1)
		c.emit(amount)
	}()
}

func (c *Client) emit(amount int) {
	for i := 0; i < amount; i++ {
		select {
		case <-c.done:
			return
		default:
		}

		dest := i % c.size
		item := work.NewRequest(work.ClientID, dest, int64(i))
		c.log.Debugf("client submitting %s", item)

		if err := c.ch.Send(item); err != nil {
			c.log.Warnf("client stopping early: %v", err)
			return
		}

		c.emittedCount.Add(1)
		c.emittedSum.Add(item.Payload)
		if c.m != nil {
			c.m.ItemsSubmitted.Inc()
			c.m.PayloadEmitted.Add(float64(item.Payload))
		}

		if c.delay > 0 {
			select {
			case <-c.done:
				return
			case <-time.After(c.delay):
			}
		}
	}

	c.log.Infof("client submitted %d work requests", amount)
}

// EmissionDone reports whether no emission goroutine is in flight.
func (c *Client) EmissionDone() bool {
	return c.emitting.Load() == 0
}

// EmittedCount returns the number of items submitted so far.
func (c *Client) EmittedCount() int64 {
	return c.emittedCount.Load()
}

// EmittedSum returns the total payload value submitted so far.
func (c *Client) EmittedSum() int64 {
	return c.emittedSum.Load()
}

// Stop halts any in-flight emission and shuts the client channel. The
// channel is shut before waiting so an emitter blocked on a full buffer
// unblocks. Idempotent.
func (c *Client) Stop() {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.done)
	}
	c.ch.Shutdown()
	c.wg.Wait()
}
