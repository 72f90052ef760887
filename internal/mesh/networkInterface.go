package mesh

import (
	"math/rand"
	"time"

	"roumble-sim/internal/eventbus"
	"roumble-sim/internal/metrics"
	"roumble-sim/internal/packet"
)

// INetwork is the contract a node drives its protocol through. It is
// implemented by the simulation engine, which owns the event queue, the
// neighbor graph and the shared metrics collector.
//
// All calls happen on the single event-loop goroutine, so implementations
// and callers need no locking of their own.
type INetwork interface {
	// Now returns the current simulated time.
	Now() time.Duration

	// Schedule runs fn after the given simulated delay.
	Schedule(after time.Duration, fn func())

	// Broadcast delivers a copy of pkt to every node currently adjacent to
	// the sender, in ascending id order.
	Broadcast(from int, pkt packet.Packet)

	// Unicast delivers pkt to a single neighbor. It reports false when the
	// target is no longer adjacent to the sender, in which case the packet
	// is dropped.
	Unicast(from int, pkt packet.Packet, to int) bool

	// NodeMoved triggers a full neighbor-graph recomputation after the
	// given node changed position.
	NodeMoved(id int)

	// Publish appends a timestamped event record to the event journal.
	Publish(t eventbus.EventType, source, dest int)

	Collector() *metrics.Collector

	// Rand is the engine-owned seeded source; nodes must not use the
	// global one, or runs stop being reproducible.
	Rand() *rand.Rand
}
