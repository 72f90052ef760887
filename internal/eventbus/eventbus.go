package eventbus

import (
	"log/slog"
	"sync"
	"time"
)

type EventType string

const (
	EventBeacon            EventType = "BEACON"
	EventBeaconForward     EventType = "BEACON_FWD"
	EventDataGenerated     EventType = "DATA_GEN"
	EventDataBroadcast     EventType = "DATA_BCAST"
	EventDataUnicast       EventType = "DATA_UNICAST"
	EventDataDelivered     EventType = "DATA_DELIVERED"
	EventRouteUpdated      EventType = "ROUTE_UPDATED"
	EventPlacementDegraded EventType = "PLACEMENT_DEGRADED"
)

// Broadcast is the Dest value for an event addressed to all neighbors
// rather than a single node.
const Broadcast = -1

// Event is one timestamped protocol event record.
type Event struct {
	Time   time.Duration `json:"time"`
	Type   EventType     `json:"type"`
	Source int           `json:"source"`
	Dest   int           `json:"dest"` // Broadcast (-1) for all-neighbors
}

// Bus collects events into a drainable journal and fans them out to
// subscribers. The journal feeds the core's DrainEvents API; subscriber
// channels feed external consumers such as the websocket server and the
// MQTT bridge.
type Bus struct {
	mu          sync.Mutex
	journal     []Event
	subscribers []chan Event
}

func New() *Bus {
	return &Bus{}
}

// Publish appends e to the journal and sends it to all subscribers. A
// subscriber that cannot keep up loses events rather than stalling the
// simulation.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.journal = append(b.journal, e)
	for _, sub := range b.subscribers {
		select {
		case sub <- e:
		default:
			slog.Debug("dropping event: subscriber channel is full")
		}
	}
}

// Subscribe returns a new channel that will receive published events.
func (b *Bus) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 256)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Drain returns the journal accumulated since the last call and clears it.
func (b *Bus) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.journal
	b.journal = nil
	return out
}
