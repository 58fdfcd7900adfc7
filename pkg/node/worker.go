package node

import (
	"sync/atomic"

	"github.com/fluxorio/ringnet/pkg/metrics"
	"github.com/fluxorio/ringnet/pkg/work"
)

// Worker is a single execution unit pulling from its node's internal queue.
// It executes work addressed to the node and relays everything else.
type Worker struct {
	node      *Node
	id        int
	completed atomic.Int64
	running   int32 // atomic flag
}

func newWorker(n *Node, id int) *Worker {
	return &Worker{
		node:    n,
		id:      id,
		running: 1,
	}
}

// run polls the shared internal queue with a bounded timeout so shutdown is
// observed within one interval. A failed outbound send stops this worker
// only; siblings and the node keep running.
func (w *Worker) run() {
	defer w.node.wg.Done()

	for w.isRunning() {
		item, ok, err := w.node.queue.Receive(w.node.timeout)
		if err != nil {
			// queue shut down
			break
		}
		if !ok {
			continue
		}

		if err := w.process(item); err != nil {
			w.node.log.Errorf("node %d worker %d stopping: %v", w.node.id, w.id, err)
			if w.node.m != nil {
				w.node.m.ForwardFailures.WithLabelValues(metrics.NodeLabel(w.node.id)).Inc()
			}
			w.stop()
			break
		}
	}

	w.node.log.Debugf("node %d worker %d stopped", w.node.id, w.id)
}

func (w *Worker) process(item *work.Item) error {
	n := w.node

	if item.To != n.id {
		// not for this node, relay unchanged
		n.log.Debugf("node %d worker %d forwarding %s", n.id, w.id, item)
		if err := n.forward(item); err != nil {
			return err
		}
		if n.m != nil {
			n.m.ItemsForwarded.WithLabelValues(metrics.NodeLabel(n.id)).Inc()
		}
		return nil
	}

	switch item.Kind {
	case work.KindRequest:
		n.log.Debugf("node %d worker %d executing %s", n.id, w.id, item)
		w.completed.Add(1)
		n.add(item.Payload)
		if n.m != nil {
			n.m.RequestsExecuted.WithLabelValues(metrics.NodeLabel(n.id)).Inc()
			n.m.PayloadCompleted.WithLabelValues(metrics.NodeLabel(n.id)).Add(float64(item.Payload))
		}

		reply := work.NewResponse(n.id, item.From, item.Payload)
		if err := n.forward(reply); err != nil {
			return err
		}

	case work.KindResponse:
		// A reply for work this node originated. Accounted for, no further
		// routing; richer acknowledgement is a protocol extension point.
		n.responses.Add(1)
		if n.m != nil {
			n.m.ResponsesReceived.WithLabelValues(metrics.NodeLabel(n.id)).Inc()
		}
		if n.onResponse != nil {
			n.onResponse(item)
		}
	}

	return nil
}

func (w *Worker) stop() {
	atomic.StoreInt32(&w.running, 0)
}

func (w *Worker) isRunning() bool {
	return atomic.LoadInt32(&w.running) == 1
}

// done returns the number of requests this worker has executed.
func (w *Worker) done() int64 {
	return w.completed.Load()
}
