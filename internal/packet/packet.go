package packet

import "time"

// Kind discriminates the two RouMBLE packet families.
type Kind uint8

const (
	// Beacon (BOM) is the control packet a sink floods so every node can
	// learn a route back to it.
	Beacon Kind = iota
	// Data (RMS) is a payload packet forwarded hop-by-hop toward a sink.
	Data
)

func (k Kind) String() string {
	switch k {
	case Beacon:
		return "BOM"
	case Data:
		return "RMS"
	default:
		return "UNKNOWN"
	}
}

// NoSink marks a Data packet that has not been assigned a destination sink
// yet. The forwarding logic fills the field in once a route is known.
const NoSink = -1

// Packet is the unit exchanged between nodes. A packet is never mutated in
// flight: every hop works on its own copy, so concurrent in-flight copies
// cannot alias each other.
type Packet struct {
	Kind   Kind
	Sender int // node relaying this particular hop
	Sink   int // Beacon: originating sink; Data: destination sink or NoSink
	Seq    int // origin's sequence number, copied unchanged hop to hop
	// Hops has kind-dependent semantics: for Beacon it is the distance the
	// beacon has traveled so far (incremented per hop); for Data it is the
	// remaining time-to-live (decremented per hop).
	Hops    int
	Origin  int           // node that created the logical packet
	Created time.Duration // simulated creation time, invariant across copies
}

// NewBeacon builds a sink-originated beacon with zero distance traveled.
func NewBeacon(sink, seq int, now time.Duration) Packet {
	return Packet{
		Kind:    Beacon,
		Sender:  sink,
		Sink:    sink,
		Seq:     seq,
		Origin:  sink,
		Created: now,
	}
}

// NewData builds a freshly originated data packet with a full TTL and no
// destination sink assigned.
func NewData(origin, seq, ttl int, now time.Duration) Packet {
	return Packet{
		Kind:    Data,
		Sender:  origin,
		Sink:    NoSink,
		Seq:     seq,
		Hops:    ttl,
		Origin:  origin,
		Created: now,
	}
}

// Forward returns the copy of p that the given node relays, with the hop
// field rewritten. Origin, sequence and creation time carry over unchanged.
func (p Packet) Forward(sender, hops int) Packet {
	p.Sender = sender
	p.Hops = hops
	return p
}
