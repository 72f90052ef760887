package node

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roumble-sim/internal/eventbus"
	"roumble-sim/internal/mesh"
	"roumble-sim/internal/metrics"
	"roumble-sim/internal/packet"
)

// fakeNet records what a node asks of the network. Schedule is a plain FIFO
// drained by flush; delays are ignored, which is fine for unit tests that
// only care about protocol decisions, not timing.
type fakeNet struct {
	now   time.Duration
	queue []func()

	coll *metrics.Collector
	rng  *rand.Rand

	events     []eventbus.EventType
	broadcasts []packet.Packet
	unicasts   []packet.Packet
	unicastTo  []int
	moved      int
}

func newFakeNet() *fakeNet {
	return &fakeNet{
		coll: metrics.NewCollector(),
		rng:  rand.New(rand.NewSource(1)),
	}
}

func (f *fakeNet) Now() time.Duration { return f.now }

func (f *fakeNet) Schedule(after time.Duration, fn func()) {
	f.queue = append(f.queue, fn)
}

func (f *fakeNet) Broadcast(from int, pkt packet.Packet) {
	f.broadcasts = append(f.broadcasts, pkt)
}

func (f *fakeNet) Unicast(from int, pkt packet.Packet, to int) bool {
	f.unicasts = append(f.unicasts, pkt)
	f.unicastTo = append(f.unicastTo, to)
	return true
}

func (f *fakeNet) NodeMoved(id int) { f.moved++ }

func (f *fakeNet) Publish(t eventbus.EventType, source, dest int) {
	f.events = append(f.events, t)
}

func (f *fakeNet) Collector() *metrics.Collector { return f.coll }

func (f *fakeNet) Rand() *rand.Rand { return f.rng }

// flush runs queued callbacks until the queue empties.
func (f *fakeNet) flush() {
	for len(f.queue) > 0 {
		fn := f.queue[0]
		f.queue = f.queue[1:]
		fn()
	}
}

func testParams() Params {
	return Params{
		Width:           200,
		Height:          200,
		BeaconInterval:  20 * time.Second,
		DataInterval:    15 * time.Second,
		TxDelay:         50 * time.Millisecond,
		RxDelay:         10 * time.Millisecond,
		MaxHops:         3,
		MoveInterval:    5 * time.Second,
		MoveDistance:    10,
		Mobility:        MobilityWalk,
		PerimeterMargin: 2,
		ExclusionMargin: 0.5,
	}
}

func testNode(f *fakeNet, id int, role Role) *Node {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(id, role, mesh.CreateCoordinates(50, 50), testParams(), f, log)
}

func beaconFrom(sink, sender, seq, hops int) packet.Packet {
	p := packet.NewBeacon(sink, seq, 0)
	return p.Forward(sender, hops)
}

func TestBeaconInstallsRouteAndRebroadcasts(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 4, RoleRelay)

	n.handleBeacon(beaconFrom(0, 0, 1, 0))
	f.flush()

	require.Contains(t, n.routes, 0)
	assert.Equal(t, RouteEntry{NextHop: 0, Hops: 1, Seq: 1}, n.routes[0])
	assert.Equal(t, 1, n.bestSeq[0])

	require.Len(t, f.broadcasts, 1)
	fwd := f.broadcasts[0]
	assert.Equal(t, packet.Beacon, fwd.Kind)
	assert.Equal(t, 4, fwd.Sender)
	assert.Equal(t, 1, fwd.Hops)
	assert.Equal(t, 0, fwd.Origin)

	s := f.coll.Snapshot()
	assert.Equal(t, uint64(1), s.ControlSent)
	assert.Equal(t, uint64(1), s.RoutingUpdates)
}

func TestBeaconRebroadcastAtMostOncePerSeq(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 4, RoleRelay)

	// same (sink, seq) via two different neighbors at the same distance
	n.handleBeacon(beaconFrom(0, 1, 1, 2))
	n.handleBeacon(beaconFrom(0, 2, 1, 2))
	f.flush()

	assert.Len(t, f.broadcasts, 1)
	assert.Equal(t, uint64(1), f.coll.Snapshot().ControlSent)
}

func TestBeaconFreshnessBeatsShortness(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 4, RoleRelay)

	n.handleBeacon(beaconFrom(0, 1, 1, 1)) // seq 1, distance 2
	require.Equal(t, 2, n.routes[0].Hops)

	// newer sequence wins even though the route lengthens
	n.handleBeacon(beaconFrom(0, 2, 2, 4)) // seq 2, distance 5
	assert.Equal(t, RouteEntry{NextHop: 2, Hops: 5, Seq: 2}, n.routes[0])
	assert.Equal(t, 2, n.bestSeq[0])
}

func TestBeaconShorterRouteKeepsBestSeq(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 4, RoleRelay)

	n.handleBeacon(beaconFrom(0, 2, 5, 4)) // seq 5, distance 5
	require.Equal(t, 5, n.bestSeq[0])

	// an older but shorter beacon replaces the route, yet the best-seen
	// sequence must not go backwards
	n.handleBeacon(beaconFrom(0, 1, 3, 1)) // seq 3, distance 2
	assert.Equal(t, RouteEntry{NextHop: 1, Hops: 2, Seq: 3}, n.routes[0])
	assert.Equal(t, 5, n.bestSeq[0])
}

func TestBeaconEqualOrWorseRejected(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 4, RoleRelay)

	n.handleBeacon(beaconFrom(0, 1, 2, 1))
	before := n.routes[0]

	n.handleBeacon(beaconFrom(0, 9, 2, 1)) // same seq, same distance
	n.handleBeacon(beaconFrom(0, 9, 1, 3)) // older and longer
	assert.Equal(t, before, n.routes[0])
	assert.Equal(t, uint64(1), f.coll.Snapshot().RoutingUpdates)
}

func TestDataDuplicateSuppressed(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 4, RoleRelay)

	pkt := packet.NewData(9, 1, 3, 0)
	n.handleData(pkt)
	n.handleData(pkt)
	f.flush()

	// forwarded exactly once despite two arrivals
	assert.Len(t, f.broadcasts, 1)
}

func TestSinkConsumesAddressedData(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 2, RoleSink)
	f.now = 500 * time.Millisecond

	pkt := packet.NewData(9, 1, 3, 440*time.Millisecond)
	pkt.Sink = 2
	pkt.Hops = 2
	n.handleData(pkt)
	f.flush()

	assert.Empty(t, f.broadcasts)
	s := f.coll.Snapshot()
	assert.Equal(t, uint64(1), s.DataDelivered)
	assert.InDelta(t, 0.060, s.AvgLatencySec, 1e-9)
	assert.InDelta(t, 2.0, s.AvgHops, 1e-9)
}

func TestSinkConsumesUnaddressedData(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 2, RoleSink)

	pkt := packet.NewData(9, 1, 3, 0)
	n.handleData(pkt)
	f.flush()

	assert.Empty(t, f.broadcasts)
	assert.Equal(t, uint64(1), f.coll.Snapshot().DataDelivered)
}

func TestDataDroppedOnExhaustedHopBudget(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 4, RoleRelay)

	pkt := packet.NewData(9, 1, 3, 0)
	pkt.Hops = 1
	n.handleData(pkt)
	f.flush()

	assert.Empty(t, f.broadcasts)
	assert.Empty(t, f.unicasts)
	assert.Equal(t, uint64(0), f.coll.Snapshot().DataDelivered)
}

func TestForwardWithoutRoutesBroadcasts(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 4, RoleRelay)
	n.SetNeighbors([]int{1, 2})

	n.forward(packet.NewData(4, 1, 3, 0))
	f.flush()

	require.Len(t, f.broadcasts, 1)
	assert.Equal(t, packet.NoSink, f.broadcasts[0].Sink)
	assert.Contains(t, f.events, eventbus.EventDataBroadcast)
}

func TestForwardUnicastsToClosestSink(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 4, RoleRelay)
	n.SetNeighbors([]int{1, 7})
	n.routes[0] = RouteEntry{NextHop: 7, Hops: 2, Seq: 1}
	n.routes[5] = RouteEntry{NextHop: 1, Hops: 4, Seq: 1}

	n.forward(packet.NewData(4, 1, 3, 0))
	f.flush()

	require.Len(t, f.unicasts, 1)
	out := f.unicasts[0]
	assert.Equal(t, []int{7}, f.unicastTo)
	assert.Equal(t, 0, out.Sink)
	// TTL is reset to the entry's hop distance plus one
	assert.Equal(t, 3, out.Hops)
	assert.Empty(t, f.broadcasts)
}

func TestForwardTieBreaksOnLowestSinkID(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 4, RoleRelay)
	n.SetNeighbors([]int{1, 7})
	n.routes[5] = RouteEntry{NextHop: 1, Hops: 2, Seq: 1}
	n.routes[3] = RouteEntry{NextHop: 7, Hops: 2, Seq: 1}

	n.forward(packet.NewData(4, 1, 3, 0))
	f.flush()

	require.Len(t, f.unicasts, 1)
	assert.Equal(t, 3, f.unicasts[0].Sink)
	assert.Equal(t, []int{7}, f.unicastTo)
}

func TestForwardFallsBackWhenNextHopGone(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 4, RoleRelay)
	n.SetNeighbors([]int{1, 2}) // 7 is no longer adjacent
	n.routes[0] = RouteEntry{NextHop: 7, Hops: 2, Seq: 1}

	n.forward(packet.NewData(4, 1, 3, 0))
	f.flush()

	assert.Empty(t, f.unicasts)
	require.Len(t, f.broadcasts, 1)
	// the chosen sink and reset TTL stick even on the broadcast fallback
	assert.Equal(t, 0, f.broadcasts[0].Sink)
	assert.Equal(t, 3, f.broadcasts[0].Hops)
}

func TestInjectDataSpendsOneHopAtSource(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 4, RoleRelay)
	n.SetNeighbors([]int{1})

	n.InjectData(packet.NoSink)
	f.flush()

	require.Len(t, f.broadcasts, 1)
	assert.Equal(t, testParams().MaxHops-1, f.broadcasts[0].Hops)
	assert.Equal(t, uint64(1), f.coll.Snapshot().DataSent)

	// the source never reprocesses its own injected packet
	n.handleData(f.broadcasts[0])
	f.flush()
	assert.Len(t, f.broadcasts, 1)
}

func TestOriginateBeaconStampsSequence(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 0, RoleSink)

	n.OriginateBeacon()
	n.OriginateBeacon()
	f.flush()

	require.Len(t, f.broadcasts, 2)
	assert.Equal(t, 1, f.broadcasts[0].Seq)
	assert.Equal(t, 2, f.broadcasts[1].Seq)
	assert.Equal(t, 0, f.broadcasts[0].Hops)
	assert.Equal(t, uint64(2), f.coll.Snapshot().ControlSent)
}

func TestWalkStaysInBounds(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 4, RoleMobile)
	n.SetPosition(mesh.CreateCoordinates(0, 0))

	for i := 0; i < 200; i++ {
		n.moveWalk()
		pos := n.Position()
		assert.GreaterOrEqual(t, pos.X, 0.0)
		assert.GreaterOrEqual(t, pos.Y, 0.0)
		assert.LessOrEqual(t, pos.X, 200.0)
		assert.LessOrEqual(t, pos.Y, 200.0)
	}
}

func TestPerimeterWalkAvoidsExclusionZone(t *testing.T) {
	f := newFakeNet()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	params := testParams()
	params.Mobility = MobilityPerimeter
	params.MoveDistance = 5
	params.Exclusion = &mesh.Rect{X1: 60, Y1: 60, X2: 140, Y2: 140}
	n := New(4, RoleMobile, mesh.CreateCoordinates(2, 2), params, f, log)

	for i := 0; i < 500; i++ {
		n.movePerimeter()
		assert.False(t, params.Exclusion.Contains(n.Position(), params.ExclusionMargin),
			"mobile entered the exclusion zone at %+v", n.Position())
	}
}

func TestMoveTriggersGraphRecompute(t *testing.T) {
	f := newFakeNet()
	n := testNode(f, 4, RoleMobile)

	n.move()
	n.move()
	assert.Equal(t, 2, f.moved)
}
