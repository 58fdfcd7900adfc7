// Package ring builds and orchestrates the node topology: a unidirectional
// cycle of servers with an external client attached to node 0.
package ring

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fluxorio/ringnet/pkg/channel"
	"github.com/fluxorio/ringnet/pkg/clock"
	"github.com/fluxorio/ringnet/pkg/config"
	"github.com/fluxorio/ringnet/pkg/logging"
	"github.com/fluxorio/ringnet/pkg/metrics"
	"github.com/fluxorio/ringnet/pkg/node"
)

var (
	// ErrInvalidTopology is returned when a ring of fewer than 2 nodes is
	// requested. Nothing is left running when Build fails.
	ErrInvalidTopology = errors.New("ring: network must have at least 2 nodes")

	// ErrAlreadyStarted is returned by Start after a successful Start.
	ErrAlreadyStarted = errors.New("ring: network already started")
)

// Options carries collaborators a caller may want to swap out.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Network is the fixed topology: an ordered set of nodes, each wired to its
// successor mod N, plus the client feeding node 0. The network owns every
// channel's lifetime; nodes never reference each other directly.
type Network struct {
	cfg    config.Config
	nodes  []*node.Node
	links  []channel.Channel // links[i] carries node i -> node (i+1)%N
	client *Client
	clk    *clock.Clock

	log     logging.Logger
	m       *metrics.Metrics
	started int32 // atomic flag
	shut    int32 // atomic flag
}

// Build constructs and wires the network. The topology is fixed once built;
// there is no runtime rewiring.
func Build(cfg config.Config, opts Options) (*Network, error) {
	size := cfg.Ring.Size
	if size < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopology, size)
	}

	log := opts.Logger
	if log == nil {
		if cfg.Debug {
			log = logging.NewDebugLogger()
		} else {
			log = logging.NewDefaultLogger()
		}
	}

	n := &Network{
		cfg: cfg,
		log: log,
		m:   opts.Metrics,
		clk: clock.New(cfg.Clock.Interval.Std()),
	}

	log.Infof("creating %d nodes", size)
	for i := 0; i < size; i++ {
		n.nodes = append(n.nodes, node.New(i, node.Options{
			Workers:        cfg.Ring.WorkersPerNode,
			QueueCapacity:  cfg.Ring.QueueCapacity,
			ReceiveTimeout: cfg.Ring.ReceiveTimeout.Std(),
			Logger:         log,
			Metrics:        opts.Metrics,
			Clock:          n.clk,
		}))
	}

	// wire the unidirectional cycle: node i's outbound is node i+1's
	// inbound, with wraparound
	for i := 0; i < size; i++ {
		link := channel.New(cfg.Ring.QueueCapacity)
		next := (i + 1) % size
		n.nodes[i].AttachOutbound(link)
		n.nodes[next].AttachInbound(link)
		n.links = append(n.links, link)
		log.Debugf("linking node %d to node %d", i, next)
	}

	// the client connects to node 0
	clientCh := channel.New(cfg.Ring.QueueCapacity)
	n.nodes[0].AttachClient(clientCh)
	n.client = newClient(clientCh, size, cfg.Client, log, opts.Metrics)

	if opts.Metrics != nil {
		opts.Metrics.RingSize.Set(float64(size))
	}

	return n, nil
}

// Size returns the number of nodes in the ring.
func (n *Network) Size() int { return len(n.nodes) }

// Start launches the clock, every node's relay loop and worker pool.
func (n *Network) Start() error {
	if !atomic.CompareAndSwapInt32(&n.started, 0, 1) {
		return ErrAlreadyStarted
	}

	n.clk.Start()
	for _, nd := range n.nodes {
		if err := nd.Start(); err != nil {
			n.Shutdown()
			return fmt.Errorf("starting node %d: %w", nd.ID(), err)
		}
	}
	return nil
}

// RunOnce submits the configured amount of work, waits for the network to
// absorb it, and reports. A run that exceeds the await budget is reported as
// timed out rather than hanging.
func (n *Network) RunOnce() Report {
	total := n.cfg.Client.TotalItems
	n.client.Emit(total)

	timedOut := !n.awaitQuiescence(n.cfg.Client.AwaitBudget.Std())
	return n.report(timedOut)
}

// Run performs the configured number of submit/await cycles over the built
// network, reporting after each.
func (n *Network) Run() []Report {
	reports := make([]Report, 0, n.cfg.Iterations)
	for i := 0; i < n.cfg.Iterations; i++ {
		r := n.RunOnce()
		n.log.Info(r.String())
		reports = append(reports, r)
	}
	return reports
}

// awaitQuiescence polls until the aggregate node totals match the client's
// emitted payload sum, or the budget elapses. Returns false on timeout.
func (n *Network) awaitQuiescence(budget time.Duration) bool {
	deadline := time.Now().Add(budget)
	for {
		if n.client.EmissionDone() && n.aggregateTotal() == n.client.EmittedSum() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (n *Network) aggregateTotal() int64 {
	var sum int64
	for _, nd := range n.nodes {
		sum += nd.Total()
	}
	return sum
}

func (n *Network) report(timedOut bool) Report {
	r := Report{
		Emitted:    n.client.EmittedCount(),
		EmittedSum: n.client.EmittedSum(),
		TimedOut:   timedOut,
	}
	for _, nd := range n.nodes {
		r.Nodes = append(r.Nodes, nd.Snapshot())
	}
	for _, s := range r.Nodes {
		r.AggregateTotal += s.Total
	}
	r.Passed = !timedOut && r.AggregateTotal == r.EmittedSum
	return r
}

// Shutdown tears everything down: client, nodes (cascading to workers and
// channels), and clock. Idempotent and order-insensitive; each channel stops
// yielding items independently once closed.
func (n *Network) Shutdown() {
	if !atomic.CompareAndSwapInt32(&n.shut, 0, 1) {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		n.client.Stop()
		for _, nd := range n.nodes {
			nd.Shutdown()
		}
		n.clk.Stop()
	}()

	grace := n.cfg.Ring.ShutdownGrace.Std()
	if grace <= 0 {
		grace = 5 * time.Second
	}
	select {
	case <-done:
		n.log.Info("network shut down")
	case <-time.After(grace):
		n.log.Warnf("shutdown exceeded grace period of %v", grace)
		<-done
	}
}
