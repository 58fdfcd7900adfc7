package ring

import (
	"errors"
	"time"
)

// ErrNotImplemented marks capability hooks the network reserves for future
// protocol work. They are deliberate stubs, not missing features.
var ErrNotImplemented = errors.New("ring: not implemented")

// StartHeartbeat is reserved for a node liveness protocol over the ring.
func (n *Network) StartHeartbeat(interval time.Duration) error {
	return ErrNotImplemented
}

// ElectLeader is reserved for a voting strategy selecting a coordinator node.
func (n *Network) ElectLeader() (int, error) {
	return -1, ErrNotImplemented
}
