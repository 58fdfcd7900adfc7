package ring

import (
	"fmt"
	"strings"

	"github.com/fluxorio/ringnet/pkg/node"
)

// Report is the observable surface of a run: per-node accounting plus the
// conservation comparison between what the client emitted and what the nodes
// recorded as completed.
type Report struct {
	Nodes          []node.Stats
	Emitted        int64
	EmittedSum     int64
	AggregateTotal int64
	Passed         bool
	TimedOut       bool
}

func (r Report) String() string {
	var b strings.Builder
	b.WriteString("-----------------------------\n")
	for _, s := range r.Nodes {
		fmt.Fprintf(&b, "%s\n", s)
	}
	fmt.Fprintf(&b, "client emitted %d items, payload sum %d\n", r.Emitted, r.EmittedSum)
	fmt.Fprintf(&b, "aggregate node total %d\n", r.AggregateTotal)
	switch {
	case r.TimedOut:
		b.WriteString("result: TIMED OUT\n")
	case r.Passed:
		b.WriteString("result: PASSED\n")
	default:
		b.WriteString("result: FAILED\n")
	}
	b.WriteString("-----------------------------")
	return b.String()
}
