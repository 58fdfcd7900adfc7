// Package node implements a ring server: a relay loop feeding an internal
// completion queue shared by a pool of workers.
package node

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxorio/ringnet/pkg/channel"
	"github.com/fluxorio/ringnet/pkg/clock"
	"github.com/fluxorio/ringnet/pkg/logging"
	"github.com/fluxorio/ringnet/pkg/metrics"
	"github.com/fluxorio/ringnet/pkg/work"
)

var (
	// ErrForwardFailed is returned when an outbound send fails. Fatal to the
	// worker that hit it, not to the node.
	ErrForwardFailed = errors.New("node: forward failed")

	// ErrNotWired is returned by Start when the ring channels are missing.
	ErrNotWired = errors.New("node: ring channels not attached")

	// ErrAlreadyRunning is returned by Start after a successful Start.
	ErrAlreadyRunning = errors.New("node: already running")
)

// Options configures a Node.
type Options struct {
	Workers        int
	QueueCapacity  int
	ReceiveTimeout time.Duration
	Logger         logging.Logger
	Metrics        *metrics.Metrics
	Clock          *clock.Clock

	// OnResponse is invoked when a response addressed to this node is
	// consumed. Bookkeeping only; reserved as a protocol extension hook.
	OnResponse func(item *work.Item)
}

// Node owns one inbound and one outbound ring channel, an optional
// client-facing channel, and a worker pool sharing one internal queue.
// The internal queue decouples arrival from completion so the pool can
// proceed at its own pace.
type Node struct {
	id int

	inbound  channel.Channel
	outbound channel.Channel
	client   channel.Channel

	queue   channel.Channel
	workers []*Worker

	total     atomic.Int64
	responses atomic.Int64

	timeout    time.Duration
	running    int32 // atomic flag
	started    int32 // atomic flag
	shut       int32 // atomic flag
	wg         sync.WaitGroup
	log        logging.Logger
	m          *metrics.Metrics
	clk        *clock.Clock
	onResponse func(item *work.Item)
}

// New creates a node with its worker pool. Ring channels are attached by the
// orchestrator before Start.
func New(id int, opts Options) *Node {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ReceiveTimeout <= 0 {
		opts.ReceiveTimeout = 100 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDefaultLogger()
	}

	n := &Node{
		id:         id,
		queue:      channel.New(opts.QueueCapacity),
		timeout:    opts.ReceiveTimeout,
		log:        opts.Logger,
		m:          opts.Metrics,
		clk:        opts.Clock,
		onResponse: opts.OnResponse,
	}

	for i := 0; i < opts.Workers; i++ {
		n.workers = append(n.workers, newWorker(n, i))
	}

	return n
}

// ID returns the node's ring position.
func (n *Node) ID() int { return n.id }

// AttachInbound wires the channel this node receives ring traffic from.
func (n *Node) AttachInbound(c channel.Channel) { n.inbound = c }

// AttachOutbound wires the channel this node relays ring traffic to.
func (n *Node) AttachOutbound(c channel.Channel) { n.outbound = c }

// AttachClient wires an optional channel carrying externally submitted work.
func (n *Node) AttachClient(c channel.Channel) { n.client = c }

// Start launches the relay loop and the worker pool.
func (n *Node) Start() error {
	if n.inbound == nil || n.outbound == nil {
		return ErrNotWired
	}
	if !atomic.CompareAndSwapInt32(&n.started, 0, 1) {
		return ErrAlreadyRunning
	}
	atomic.StoreInt32(&n.running, 1)

	n.wg.Add(1)
	go n.relay()

	for _, w := range n.workers {
		n.wg.Add(1)
		go w.run()
	}

	n.log.Debugf("node %d started with %d workers", n.id, len(n.workers))
	return nil
}

// relay moves arrivals from the client channel and the inbound ring channel
// into the internal queue. One dedicated goroutine per node, separate from
// the workers.
func (n *Node) relay() {
	defer n.wg.Done()

	clientOpen := n.client != nil
	var iter uint64

	for n.isRunning() {
		iter++
		if iter%16 == 0 && n.clk != nil {
			n.log.Debugf("node %d checking, tick %d", n.id, n.clk.Tick())
		}

		if clientOpen {
			item, ok, err := n.client.Receive(n.timeout)
			if err != nil {
				clientOpen = false
			} else if ok {
				n.enqueue(item)
			}
		}

		item, ok, err := n.inbound.Receive(n.timeout)
		if err != nil {
			// inbound only fails once shut down; the running flag follows
			break
		}
		if ok {
			n.enqueue(item)
		}
	}

	n.log.Infof("node %d relay loop stopped", n.id)
}

func (n *Node) enqueue(item *work.Item) {
	if err := n.queue.Send(item); err != nil {
		n.log.Warnf("node %d dropping %s: %v", n.id, item, err)
		return
	}
	n.log.Debugf("node %d enqueued %s", n.id, item)
	if n.m != nil {
		n.m.QueueDepth.WithLabelValues(metrics.NodeLabel(n.id)).Set(float64(n.queue.Len()))
	}
}

// forward places an item on the outbound ring channel.
func (n *Node) forward(item *work.Item) error {
	if err := n.outbound.Send(item); err != nil {
		return fmt.Errorf("%w: %v", ErrForwardFailed, err)
	}
	return nil
}

// add credits executed payload to the node's running total.
func (n *Node) add(value int64) {
	n.total.Add(value)
}

// Total returns the running total of executed payload.
func (n *Node) Total() int64 {
	return n.total.Load()
}

// Shutdown stops the relay loop, the ring channels, the internal queue, and
// every owned worker. Idempotent; safe to call from any goroutine.
func (n *Node) Shutdown() {
	if !atomic.CompareAndSwapInt32(&n.shut, 0, 1) {
		return
	}
	atomic.StoreInt32(&n.running, 0)

	if n.inbound != nil {
		n.inbound.Shutdown()
	}
	if n.outbound != nil {
		n.outbound.Shutdown()
	}
	n.queue.Shutdown()

	for _, w := range n.workers {
		w.stop()
	}

	n.wg.Wait()
	n.log.Infof("node %d shut down", n.id)
}

func (n *Node) isRunning() bool {
	return atomic.LoadInt32(&n.running) == 1
}

// Stats is a point-in-time snapshot of a node's accounting.
type Stats struct {
	ID        int
	Total     int64
	Responses int64
	Completed []int64
}

// Snapshot returns the node's totals and per-worker completed counts.
func (n *Node) Snapshot() Stats {
	s := Stats{
		ID:        n.id,
		Total:     n.total.Load(),
		Responses: n.responses.Load(),
	}
	for _, w := range n.workers {
		s.Completed = append(s.Completed, w.done())
	}
	return s
}

func (s Stats) String() string {
	out := fmt.Sprintf("node %d, sum: %d, w:", s.ID, s.Total)
	for _, c := range s.Completed {
		out += fmt.Sprintf(" %d", c)
	}
	return out
}
