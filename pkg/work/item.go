package work

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// ClientID is the origin id used for items submitted by the external client.
// It never matches a node id, so responses addressed to it are pure relays.
const ClientID = -1

// Kind distinguishes a task to perform from its completion acknowledgment.
type Kind int

const (
	// KindRequest is a task addressed to a node for execution.
	KindRequest Kind = iota

	// KindResponse acknowledges a completed request back toward its origin.
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	default:
		return "unknown"
	}
}

// idGen hands out process-unique, strictly increasing item ids.
var idGen atomic.Int64

// Item is a unit of work relayed around the ring. Immutable after creation.
type Item struct {
	// ID is process-unique and strictly increasing across all producers.
	ID int64

	// TraceID correlates log lines across hops. Diagnostic only.
	TraceID string

	From    int
	To      int
	Kind    Kind
	Payload int64
}

// NewRequest allocates a request item with a fresh id.
// Safe for concurrent use from multiple producers.
func NewRequest(from, to int, payload int64) *Item {
	return newItem(from, to, KindRequest, payload)
}

// NewResponse allocates a response item with a fresh id.
func NewResponse(from, to int, payload int64) *Item {
	return newItem(from, to, KindResponse, payload)
}

func newItem(from, to int, kind Kind, payload int64) *Item {
	return &Item{
		ID:      idGen.Add(1),
		TraceID: uuid.New().String(),
		From:    from,
		To:      to,
		Kind:    kind,
		Payload: payload,
	}
}

func (i *Item) String() string {
	return fmt.Sprintf("item %d (%s %d->%d payload=%d)", i.ID, i.Kind, i.From, i.To, i.Payload)
}
