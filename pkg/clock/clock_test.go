package clock

import (
	"testing"
	"time"
)

func TestClockAdvances(t *testing.T) {
	c := New(5 * time.Millisecond)
	c.Start()
	defer c.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for c.Tick() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("clock never advanced")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClockStopIdempotent(t *testing.T) {
	c := New(5 * time.Millisecond)
	c.Start()

	c.Stop()
	c.Stop()

	// give an already-fired tick time to land before taking the baseline
	time.Sleep(20 * time.Millisecond)
	tick := c.Tick()
	time.Sleep(30 * time.Millisecond)
	if c.Tick() != tick {
		t.Errorf("Tick() advanced after Stop(): %d -> %d", tick, c.Tick())
	}
}
