package node

import (
	"log/slog"
	"math"
	"slices"
	"time"

	"roumble-sim/internal/eventbus"
	"roumble-sim/internal/mesh"
	"roumble-sim/internal/packet"
)

// Role is fixed for the node's lifetime. Behavior is selected once at timer
// setup, not by branching on flags at every step.
type Role uint8

const (
	RoleSink Role = iota
	RoleRelay
	RoleMobile
)

func (r Role) String() string {
	switch r {
	case RoleSink:
		return "sink"
	case RoleRelay:
		return "relay"
	case RoleMobile:
		return "mobile"
	default:
		return "unknown"
	}
}

// MobilityModel selects how mobile nodes pick their next position.
type MobilityModel string

const (
	// MobilityWalk takes a fixed-magnitude step in a uniformly random
	// direction, clamped to the area bounds.
	MobilityWalk MobilityModel = "walk"
	// MobilityPerimeter walks toward successive random targets on the outer
	// perimeter, keeping clear of a rectangular exclusion zone.
	MobilityPerimeter MobilityModel = "perimeter"
)

// RouteEntry is one routing-table row: the best known way to reach a sink.
type RouteEntry struct {
	NextHop int `json:"next_hop"`
	Hops    int `json:"hops"`
	Seq     int `json:"seq"`
}

// Params carries the protocol timing and area constants a node needs. The
// engine derives it from the validated configuration.
type Params struct {
	Width           float64
	Height          float64
	BeaconInterval  time.Duration
	DataInterval    time.Duration // mean of the exponential inter-arrival
	TxDelay         time.Duration
	RxDelay         time.Duration
	MaxHops         int
	MoveInterval    time.Duration
	MoveDistance    float64
	Mobility        MobilityModel
	Exclusion       *mesh.Rect
	PerimeterMargin float64
	ExclusionMargin float64
}

type dedupKey struct {
	origin int
	seq    int
}

// Node is one mesh participant: its position, its protocol memory and the
// timers that drive it. All state is mutated only from the engine's event
// loop.
type Node struct {
	id     int
	role   Role
	pos    mesh.Coordinates
	params Params

	// neighbors is rebuilt wholesale by the engine on every graph
	// recomputation; ids are kept sorted ascending.
	neighbors []int

	routes  map[int]RouteEntry // sink id -> best known route
	bestSeq map[int]int        // sink id -> highest beacon seq accepted
	// seen grows for the whole run; see the design notes on duplicate
	// suppression before bounding it.
	seen map[dedupKey]struct{}
	seq  int

	txCount int
	rxCount int
	energy  float64 // informational only, never decremented

	target *mesh.Coordinates // current perimeter-walk destination

	net mesh.INetwork
	log *slog.Logger
}

func New(id int, role Role, pos mesh.Coordinates, params Params, net mesh.INetwork, log *slog.Logger) *Node {
	return &Node{
		id:      id,
		role:    role,
		pos:     pos,
		params:  params,
		routes:  make(map[int]RouteEntry),
		bestSeq: make(map[int]int),
		seen:    make(map[dedupKey]struct{}),
		energy:  100.0,
		net:     net,
		log:     log.With("node", id, "role", role.String()),
	}
}

func (n *Node) ID() int                    { return n.id }
func (n *Node) Role() Role                 { return n.role }
func (n *Node) Position() mesh.Coordinates { return n.pos }
func (n *Node) Energy() float64            { return n.energy }
func (n *Node) TxCount() int               { return n.txCount }
func (n *Node) RxCount() int               { return n.rxCount }

// SetPosition is used by the engine during connectivity repair; in steady
// state only mobile nodes move, and they move themselves.
func (n *Node) SetPosition(pos mesh.Coordinates) { n.pos = pos }

// SetNeighbors installs a freshly recomputed adjacency list. The engine
// hands over ownership of the slice.
func (n *Node) SetNeighbors(ids []int) { n.neighbors = ids }

// Neighbors returns a copy of the current adjacency list.
func (n *Node) Neighbors() []int { return slices.Clone(n.neighbors) }

// Routes returns a copy of the routing table.
func (n *Node) Routes() map[int]RouteEntry {
	out := make(map[int]RouteEntry, len(n.routes))
	for k, v := range n.routes {
		out[k] = v
	}
	return out
}

// BestSeqs returns a copy of the highest accepted beacon sequence per sink.
func (n *Node) BestSeqs() map[int]int {
	out := make(map[int]int, len(n.bestSeq))
	for k, v := range n.bestSeq {
		out[k] = v
	}
	return out
}

// AddTx accounts transmitted packet copies on behalf of the engine, which
// performs the actual fan-out.
func (n *Node) AddTx(copies int) { n.txCount += copies }

// Start arms the role's timers. Sinks originate beacons; everything else
// originates data; mobile nodes additionally move.
func (n *Node) Start() {
	switch n.role {
	case RoleSink:
		n.scheduleBeacon()
	case RoleRelay:
		n.scheduleData()
	case RoleMobile:
		n.scheduleData()
		n.scheduleMove()
	}
}

// Receive queues an arriving packet for processing after the reception
// delay, modeling radio and processing latency.
func (n *Node) Receive(pkt packet.Packet) {
	n.net.Schedule(n.params.RxDelay, func() {
		n.rxCount++
		switch pkt.Kind {
		case packet.Beacon:
			n.handleBeacon(pkt)
		case packet.Data:
			n.handleData(pkt)
		}
	})
}

func (n *Node) scheduleBeacon() {
	n.net.Schedule(n.params.BeaconInterval, func() {
		n.OriginateBeacon()
		n.scheduleBeacon()
	})
}

// OriginateBeacon stamps and floods a fresh beacon. Called from the sink's
// periodic timer and from external injection.
func (n *Node) OriginateBeacon() {
	n.seq++
	pkt := packet.NewBeacon(n.id, n.seq, n.net.Now())
	n.net.Collector().AddControlSent()
	n.net.Publish(eventbus.EventBeacon, n.id, eventbus.Broadcast)
	n.transmitBroadcast(pkt)
}

func (n *Node) scheduleData() {
	interval := time.Duration(n.net.Rand().ExpFloat64() * float64(n.params.DataInterval))
	n.net.Schedule(interval, func() {
		n.OriginateData()
		n.scheduleData()
	})
}

// OriginateData creates a data packet with a full TTL and no sink assigned
// and hands it to the forwarding logic.
func (n *Node) OriginateData() {
	n.seq++
	pkt := packet.NewData(n.id, n.seq, n.params.MaxHops, n.net.Now())
	n.net.Collector().AddDataSent()
	n.net.Publish(eventbus.EventDataGenerated, n.id, eventbus.Broadcast)
	n.forward(pkt)
}

// InjectData synthesizes an externally originated data packet, as if this
// node had generated it. The source processes it immediately: it is marked
// against duplicates, spends one hop and enters the normal forwarding path.
func (n *Node) InjectData(sink int) {
	n.seq++
	pkt := packet.NewData(n.id, n.seq, n.params.MaxHops, n.net.Now())
	pkt.Sink = sink
	n.net.Collector().AddDataSent()
	n.net.Publish(eventbus.EventDataGenerated, n.id, sink)
	n.seen[dedupKey{pkt.Origin, pkt.Seq}] = struct{}{}
	if pkt.Hops > 1 {
		pkt.Hops--
		n.forward(pkt)
	}
}

// handleBeacon applies the freshness-then-shortness rule: an incoming
// beacon replaces the routing entry for its sink only if its sequence is
// strictly newer than the best seen, or its hop distance strictly shorter
// than the current entry. A newer-but-longer beacon therefore wins, and a
// route may temporarily lengthen; that is intended. Rejected beacons are
// dropped silently, which bounds the flood to one rebroadcast per
// (sink, seq) pair per node.
func (n *Node) handleBeacon(pkt packet.Packet) {
	sink := pkt.Sink
	hop := pkt.Hops + 1 // distance traveled to this node

	prevSeq, ok := n.bestSeq[sink]
	if !ok {
		prevSeq = -1
	}
	prevHop := math.MaxInt
	if entry, ok := n.routes[sink]; ok {
		prevHop = entry.Hops
	}
	if pkt.Seq <= prevSeq && hop >= prevHop {
		return
	}

	n.routes[sink] = RouteEntry{NextHop: pkt.Sender, Hops: hop, Seq: pkt.Seq}
	if pkt.Seq > prevSeq {
		// best-seen sequence never decreases, even when a shorter route
		// with an older sequence is accepted
		n.bestSeq[sink] = pkt.Seq
	}
	n.net.Collector().AddRoutingUpdate()
	n.net.Publish(eventbus.EventRouteUpdated, n.id, sink)

	n.net.Collector().AddControlSent()
	n.net.Publish(eventbus.EventBeaconForward, n.id, eventbus.Broadcast)
	n.transmitBroadcast(pkt.Forward(n.id, hop))
}

// handleData processes a data packet at most once per (origin, seq). A sink
// consumes packets addressed to it, and packets still without a destination
// sink. Anything else is forwarded while TTL remains, or dropped silently
// once the hop budget is spent. Non-delivery is visible only through the
// delivery ratio, never as an error.
func (n *Node) handleData(pkt packet.Packet) {
	key := dedupKey{pkt.Origin, pkt.Seq}
	if _, dup := n.seen[key]; dup {
		return
	}
	n.seen[key] = struct{}{}

	if n.role == RoleSink && (pkt.Sink == n.id || pkt.Sink == packet.NoSink) {
		latency := n.net.Now() - pkt.Created
		n.net.Collector().AddDelivered(latency, pkt.Hops)
		n.net.Publish(eventbus.EventDataDelivered, pkt.Sender, n.id)
		return
	}

	if pkt.Hops > 1 {
		pkt.Hops--
		n.forward(pkt)
	}
}

// forward routes a data packet: with a non-empty routing table it targets
// the closest sink and unicasts to that entry's next hop; without a route,
// or when the next hop is no longer adjacent, it falls back to broadcasting
// to all current neighbors. Either way the transmission delay applies.
func (n *Node) forward(pkt packet.Packet) {
	if sink, entry, ok := n.selectRoute(); ok {
		pkt.Sink = sink
		pkt.Hops = entry.Hops + 1
		if slices.Contains(n.neighbors, entry.NextHop) {
			n.net.Publish(eventbus.EventDataUnicast, n.id, entry.NextHop)
			out := pkt.Forward(n.id, pkt.Hops)
			to := entry.NextHop
			n.net.Schedule(n.params.TxDelay, func() {
				n.net.Unicast(n.id, out, to)
			})
			return
		}
	}
	n.net.Publish(eventbus.EventDataBroadcast, n.id, eventbus.Broadcast)
	n.transmitBroadcast(pkt.Forward(n.id, pkt.Hops))
}

// selectRoute picks the routing entry with the smallest hop distance,
// breaking ties by lowest sink id so the choice never depends on map
// iteration order.
func (n *Node) selectRoute() (int, RouteEntry, bool) {
	best := -1
	var bestEntry RouteEntry
	for sink, entry := range n.routes {
		if best < 0 || entry.Hops < bestEntry.Hops ||
			(entry.Hops == bestEntry.Hops && sink < best) {
			best, bestEntry = sink, entry
		}
	}
	return best, bestEntry, best >= 0
}

// transmitBroadcast hands the packet to the network after the transmission
// delay. The neighbor set is read at delivery time, so a broadcast sees the
// topology as it is when it goes on air.
func (n *Node) transmitBroadcast(pkt packet.Packet) {
	n.net.Schedule(n.params.TxDelay, func() {
		n.net.Broadcast(n.id, pkt)
	})
}
