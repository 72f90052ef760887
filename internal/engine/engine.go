package engine

import (
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"roumble-sim/internal/eventbus"
	"roumble-sim/internal/mesh"
	"roumble-sim/internal/metrics"
	"roumble-sim/internal/node"
	"roumble-sim/internal/packet"
	"roumble-sim/internal/scheduler"
)

// SimulationEngine owns every piece of shared simulation state: the event
// queue and its logical clock, the node set, the neighbor graph, the seeded
// random source, the metrics collector and the event journal. All protocol
// activity runs through the engine, and the engine serializes its public
// API with a single mutex, preserving the at-most-one-writer semantics of
// the cooperative model even when callers live on different goroutines.
type SimulationEngine struct {
	mu sync.Mutex

	cfg   Config
	sched *scheduler.Queue
	rng   *rand.Rand
	bus   *eventbus.Bus
	coll  *metrics.Collector
	log   *slog.Logger

	nodes   []*node.Node
	nodeMap map[int]*node.Node
}

// NodeSpec describes one node of an explicit layout.
type NodeSpec struct {
	Role node.Role
	Pos  mesh.Coordinates
}

// New validates cfg (applying defaults to unset fields), places the nodes,
// repairs connectivity among stationary nodes and arms every node's timers.
// The clock starts at zero; nothing happens until Advance is called.
func New(cfg Config, log *slog.Logger) (*SimulationEngine, error) {
	e, err := newEngine(cfg, log)
	if err != nil {
		return nil, err
	}
	e.placeNodes()
	e.updateNeighbors()
	e.repairConnectivity()
	e.updateNeighbors()
	e.start()
	return e, nil
}

// NewWithLayout builds an engine from an explicit node layout instead of
// random placement. Positions are used verbatim: neither the minimum
// separation nor the connectivity repair pass is applied. Node ids are
// assigned in slice order.
func NewWithLayout(cfg Config, layout []NodeSpec, log *slog.Logger) (*SimulationEngine, error) {
	e, err := newEngine(cfg, log)
	if err != nil {
		return nil, err
	}
	for i, spec := range layout {
		e.addNode(i, spec.Role, spec.Pos.Clamp(e.cfg.AreaWidth, e.cfg.AreaHeight))
	}
	e.updateNeighbors()
	e.start()
	return e, nil
}

func newEngine(cfg Config, log *slog.Logger) (*SimulationEngine, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SimulationEngine{
		cfg:     cfg,
		sched:   scheduler.New(),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		bus:     eventbus.New(),
		coll:    metrics.NewCollector(),
		log:     log,
		nodeMap: make(map[int]*node.Node),
	}, nil
}

func (e *SimulationEngine) addNode(id int, role node.Role, pos mesh.Coordinates) *node.Node {
	n := node.New(id, role, pos, e.cfg.nodeParams(), e, e.log)
	e.nodes = append(e.nodes, n)
	e.nodeMap[id] = n
	return n
}

func (e *SimulationEngine) start() {
	for _, n := range e.nodes {
		n.Start()
	}
	e.log.Info("simulation ready",
		"nodes", len(e.nodes),
		"sinks", len(e.cfg.SinkPositions),
		"range", e.cfg.CommRange,
		"seed", e.cfg.Seed)
}

// Bus exposes the event bus so external consumers (websocket server, MQTT
// bridge) can subscribe to the live event stream.
func (e *SimulationEngine) Bus() *eventbus.Bus { return e.bus }

// INetwork implementation. These are invoked by nodes from inside the event
// loop, which already holds the engine mutex.

func (e *SimulationEngine) Now() time.Duration { return e.sched.Now() }

func (e *SimulationEngine) Schedule(after time.Duration, fn func()) {
	e.sched.Schedule(after, fn)
}

func (e *SimulationEngine) Rand() *rand.Rand { return e.rng }

func (e *SimulationEngine) Collector() *metrics.Collector { return e.coll }

func (e *SimulationEngine) Publish(t eventbus.EventType, source, dest int) {
	e.bus.Publish(eventbus.Event{
		Time:   e.sched.Now(),
		Type:   t,
		Source: source,
		Dest:   dest,
	})
}

// Broadcast delivers a copy of pkt to every current neighbor of the sender.
// Neighbor lists are kept sorted, so same-instant deliveries are queued in
// ascending id order.
func (e *SimulationEngine) Broadcast(from int, pkt packet.Packet) {
	sender, ok := e.nodeMap[from]
	if !ok {
		return
	}
	neighbors := sender.Neighbors()
	sender.AddTx(len(neighbors))
	for _, id := range neighbors {
		e.nodeMap[id].Receive(pkt)
	}
}

// Unicast delivers pkt to a single neighbor, dropping it silently when the
// target has moved out of adjacency since the transmission was scheduled.
func (e *SimulationEngine) Unicast(from int, pkt packet.Packet, to int) bool {
	sender, ok := e.nodeMap[from]
	if !ok {
		return false
	}
	receiver, ok := e.nodeMap[to]
	if !ok {
		return false
	}
	if sender.Position().DistanceTo(receiver.Position()) > e.cfg.CommRange {
		e.log.Debug("unicast target out of range", "from", from, "to", to)
		return false
	}
	sender.AddTx(1)
	receiver.Receive(pkt)
	return true
}

// NodeMoved recomputes the whole neighbor graph. Stale adjacency is never
// tolerated; forwarding correctness depends on the list being exact at the
// instant a broadcast goes on air.
func (e *SimulationEngine) NodeMoved(id int) {
	e.updateNeighbors()
}
