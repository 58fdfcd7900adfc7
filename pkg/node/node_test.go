package node

import (
	"testing"
	"time"

	"github.com/fluxorio/ringnet/pkg/channel"
	"github.com/fluxorio/ringnet/pkg/logging"
	"github.com/fluxorio/ringnet/pkg/work"
)

const testTimeout = 10 * time.Millisecond

func newTestNode(t *testing.T, id, workers int) (*Node, channel.Channel, channel.Channel) {
	t.Helper()

	in := channel.New(256)
	// roomy enough that un-drained replies never block the pool
	out := channel.New(1024)
	n := New(id, Options{
		Workers:        workers,
		ReceiveTimeout: testTimeout,
		Logger:         logging.NewNopLogger(),
	})
	n.AttachInbound(in)
	n.AttachOutbound(out)
	return n, in, out
}

func waitFor(t *testing.T, budget time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestStartRequiresWiring(t *testing.T) {
	n := New(0, Options{Logger: logging.NewNopLogger()})

	if err := n.Start(); err != ErrNotWired {
		t.Errorf("Start() without channels error = %v, want ErrNotWired", err)
	}
}

func TestStartTwice(t *testing.T) {
	n, _, _ := newTestNode(t, 0, 1)
	defer n.Shutdown()

	if err := n.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := n.Start(); err != ErrAlreadyRunning {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestExecutesLocalRequestAndReplies(t *testing.T) {
	n, in, out := newTestNode(t, 2, 1)
	if err := n.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer n.Shutdown()

	in.Send(work.NewRequest(work.ClientID, 2, 9))

	if !waitFor(t, 2*time.Second, func() bool { return n.Total() == 9 }) {
		t.Fatalf("Total() = %d, want 9", n.Total())
	}

	reply, ok, err := out.Receive(time.Second)
	if err != nil || !ok {
		t.Fatalf("expected a response on the outbound channel, got (%v, %v)", ok, err)
	}
	if reply.Kind != work.KindResponse {
		t.Errorf("reply.Kind = %v, want KindResponse", reply.Kind)
	}
	if reply.From != 2 || reply.To != work.ClientID {
		t.Errorf("reply addressed %d->%d, want 2->%d", reply.From, reply.To, work.ClientID)
	}
	if reply.Payload != 9 {
		t.Errorf("reply.Payload = %d, want 9", reply.Payload)
	}
}

func TestForwardsForeignItemsUnchanged(t *testing.T) {
	n, in, out := newTestNode(t, 0, 1)
	if err := n.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer n.Shutdown()

	sent := work.NewRequest(work.ClientID, 3, 7)
	in.Send(sent)

	got, ok, err := out.Receive(2 * time.Second)
	if err != nil || !ok {
		t.Fatalf("expected the item relayed, got (%v, %v)", ok, err)
	}
	if got.ID != sent.ID {
		t.Errorf("relayed item id = %d, want %d", got.ID, sent.ID)
	}
	if n.Total() != 0 {
		t.Errorf("Total() = %d after pure relay, want 0", n.Total())
	}
}

func TestResponseAtDestinationIsAccountedNotRouted(t *testing.T) {
	hooked := make(chan *work.Item, 1)
	in := channel.New(64)
	out := channel.New(64)
	n := New(1, Options{
		Workers:        1,
		ReceiveTimeout: testTimeout,
		Logger:         logging.NewNopLogger(),
		OnResponse:     func(item *work.Item) { hooked <- item },
	})
	n.AttachInbound(in)
	n.AttachOutbound(out)
	if err := n.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer n.Shutdown()

	in.Send(work.NewResponse(4, 1, 3))

	select {
	case item := <-hooked:
		if item.Payload != 3 {
			t.Errorf("hooked item payload = %d, want 3", item.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("response hook was not invoked")
	}
	if !waitFor(t, 2*time.Second, func() bool { return n.Snapshot().Responses == 1 }) {
		t.Fatal("response was never accounted")
	}
	if _, ok, _ := out.Receive(50 * time.Millisecond); ok {
		t.Error("a consumed response must not be routed onward")
	}
	if n.Total() != 0 {
		t.Errorf("Total() = %d, want 0 for a response", n.Total())
	}
}

func TestCounterUnderWorkerContention(t *testing.T) {
	const workers = 4
	const items = 200

	n, in, _ := newTestNode(t, 0, workers)
	if err := n.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer n.Shutdown()

	var wantSum int64
	for i := 0; i < items; i++ {
		wantSum += int64(i)
		if err := in.Send(work.NewRequest(work.ClientID, 0, int64(i))); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	if !waitFor(t, 5*time.Second, func() bool { return n.Total() == wantSum }) {
		t.Fatalf("Total() = %d, want %d", n.Total(), wantSum)
	}

	var completed int64
	for _, c := range n.Snapshot().Completed {
		completed += c
	}
	if completed != items {
		t.Errorf("total completed = %d, want %d (no lost or duplicated updates)", completed, items)
	}
}

func TestForwardFailureIsIsolatedToWorker(t *testing.T) {
	n, in, out := newTestNode(t, 0, 2)
	if err := n.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer n.Shutdown()

	// kill the outbound path, then hand the pool a relay item
	out.Shutdown()
	in.Send(work.NewRequest(work.ClientID, 3, 1))

	// exactly one worker dies; the survivor still executes local work
	in.Send(work.NewRequest(work.ClientID, 0, 5))

	if !waitFor(t, 5*time.Second, func() bool { return n.Total() == 5 }) {
		t.Fatalf("surviving worker never executed local work; Total() = %d", n.Total())
	}
}

func TestWorkerObservesShutdownWithinOneTimeout(t *testing.T) {
	n, _, _ := newTestNode(t, 0, 1)
	if err := n.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		n.Shutdown() // waits for relay loop and workers
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown() did not complete; a loop missed the shutdown signal")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	n, _, _ := newTestNode(t, 0, 2)
	if err := n.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	n.Shutdown()
	n.Shutdown()
	n.Shutdown()
}

func TestSnapshot(t *testing.T) {
	n, in, _ := newTestNode(t, 1, 2)
	if err := n.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer n.Shutdown()

	in.Send(work.NewRequest(work.ClientID, 1, 4))

	if !waitFor(t, 2*time.Second, func() bool { return n.Total() == 4 }) {
		t.Fatalf("Total() = %d, want 4", n.Total())
	}

	s := n.Snapshot()
	if s.ID != 1 {
		t.Errorf("Stats.ID = %d, want 1", s.ID)
	}
	if s.Total != 4 {
		t.Errorf("Stats.Total = %d, want 4", s.Total)
	}
	if len(s.Completed) != 2 {
		t.Errorf("len(Stats.Completed) = %d, want 2", len(s.Completed))
	}
}
