package engine

import (
	"math"

	"roumble-sim/internal/eventbus"
	"roumble-sim/internal/mesh"
	"roumble-sim/internal/node"
)

const (
	sinkPlaceAttempts  = 50
	relayPlaceAttempts = 200
	repairAttempts     = 50
)

// placeNodes lays out sinks, relays and mobiles, in that id order. Sinks
// and relays (the stationary nodes) honor the minimum pairwise separation;
// saturation degrades to a best-effort position flagged with a
// PLACEMENT_DEGRADED event, never an error. Mobiles are exempt.
func (e *SimulationEngine) placeNodes() {
	var static []mesh.Coordinates
	id := 0

	for _, anchor := range e.cfg.SinkPositions {
		pos, degraded := e.placeSink(anchor, static)
		e.addNode(id, node.RoleSink, pos)
		if degraded {
			e.Publish(eventbus.EventPlacementDegraded, id, eventbus.Broadcast)
			e.log.Warn("sink placed without clearing minimum separation", "node", id)
		}
		static = append(static, pos)
		id++
	}

	for i := 0; i < e.cfg.RelayCount; i++ {
		pos, degraded := e.placeRelay(static)
		e.addNode(id, node.RoleRelay, pos)
		if degraded {
			e.Publish(eventbus.EventPlacementDegraded, id, eventbus.Broadcast)
			e.log.Warn("relay placed without clearing minimum separation", "node", id)
		}
		static = append(static, pos)
		id++
	}

	for i := 0; i < e.cfg.MobileCount; i++ {
		pos := mesh.CreateCoordinates(
			e.rng.Float64()*e.cfg.AreaWidth,
			e.rng.Float64()*e.cfg.AreaHeight,
		)
		e.addNode(id, node.RoleMobile, pos)
		id++
	}
}

// placeSink keeps the configured anchor when it clears the minimum
// separation, otherwise jitters around it up to the attempt budget.
func (e *SimulationEngine) placeSink(anchor mesh.Coordinates, static []mesh.Coordinates) (mesh.Coordinates, bool) {
	pos := anchor
	for i := 0; i < sinkPlaceAttempts; i++ {
		if e.clearsSeparation(pos, static) {
			return pos, false
		}
		sep := e.cfg.MinSeparation
		pos = mesh.CreateCoordinates(
			anchor.X+e.rng.Float64()*2*sep-sep,
			anchor.Y+e.rng.Float64()*2*sep-sep,
		).Clamp(e.cfg.AreaWidth, e.cfg.AreaHeight)
	}
	return pos, true
}

// placeRelay rejection-samples the central sub-region; on repeated failure
// it falls back to a minimum-separation offset from a random already placed
// stationary node, accepting possible close spacing.
func (e *SimulationEngine) placeRelay(static []mesh.Coordinates) (mesh.Coordinates, bool) {
	subW := e.cfg.AreaWidth * 0.4
	subH := e.cfg.AreaHeight * 0.4
	x0 := (e.cfg.AreaWidth - subW) / 2
	y0 := (e.cfg.AreaHeight - subH) / 2

	for i := 0; i < relayPlaceAttempts; i++ {
		pos := mesh.CreateCoordinates(x0+e.rng.Float64()*subW, y0+e.rng.Float64()*subH)
		if e.clearsSeparation(pos, static) {
			return pos, false
		}
	}
	if len(static) == 0 {
		return mesh.CreateCoordinates(x0+e.rng.Float64()*subW, y0+e.rng.Float64()*subH), false
	}
	anchor := static[e.rng.Intn(len(static))]
	angle := e.rng.Float64() * 2 * math.Pi
	pos := anchor.Offset(angle, e.cfg.MinSeparation).Clamp(e.cfg.AreaWidth, e.cfg.AreaHeight)
	return pos, true
}

func (e *SimulationEngine) clearsSeparation(pos mesh.Coordinates, static []mesh.Coordinates) bool {
	for _, other := range static {
		if pos.DistanceTo(other) < e.cfg.MinSeparation {
			return false
		}
	}
	return true
}

// repairConnectivity relocates every isolated stationary node onto a ring
// at 0.8x the communication range around a connected stationary anchor,
// retrying under the separation constraint and forcing placement on the
// ring when the budget runs out. Each repaired node becomes connected and
// stationary nodes never move afterwards, so the loop terminates.
func (e *SimulationEngine) repairConnectivity() {
	var static []*node.Node
	for _, n := range e.nodes {
		if n.Role() != node.RoleMobile {
			static = append(static, n)
		}
	}
	if len(static) < 2 {
		return
	}

	for changed := true; changed; {
		changed = false
		e.updateNeighbors()

		for _, isolated := range static {
			if len(isolated.Neighbors()) > 0 {
				continue
			}
			anchor := e.pickAnchor(static, isolated)
			if anchor == nil {
				continue
			}
			moved := false
			for i := 0; i < repairAttempts; i++ {
				angle := e.rng.Float64() * 2 * math.Pi
				pos := anchor.Position().
					Offset(angle, e.cfg.CommRange*0.8).
					Clamp(e.cfg.AreaWidth, e.cfg.AreaHeight)
				if e.separatedFromStatic(pos, static, isolated) {
					isolated.SetPosition(pos)
					moved = true
					break
				}
			}
			if !moved {
				angle := e.rng.Float64() * 2 * math.Pi
				pos := anchor.Position().
					Offset(angle, e.cfg.CommRange*0.99).
					Clamp(e.cfg.AreaWidth, e.cfg.AreaHeight)
				isolated.SetPosition(pos)
				e.Publish(eventbus.EventPlacementDegraded, isolated.ID(), eventbus.Broadcast)
				e.log.Warn("forced repair placement violates minimum separation", "node", isolated.ID())
			}
			changed = true
		}
	}
}

// pickAnchor prefers a random stationary node that already has neighbors;
// when none is connected yet it falls back to any other stationary node.
func (e *SimulationEngine) pickAnchor(static []*node.Node, isolated *node.Node) *node.Node {
	var connected, others []*node.Node
	for _, n := range static {
		if n.ID() == isolated.ID() {
			continue
		}
		if len(n.Neighbors()) > 0 {
			connected = append(connected, n)
		}
		others = append(others, n)
	}
	if len(connected) > 0 {
		return connected[e.rng.Intn(len(connected))]
	}
	if len(others) > 0 {
		return others[e.rng.Intn(len(others))]
	}
	return nil
}

func (e *SimulationEngine) separatedFromStatic(pos mesh.Coordinates, static []*node.Node, skip *node.Node) bool {
	for _, other := range static {
		if other.ID() == skip.ID() {
			continue
		}
		if pos.DistanceTo(other.Position()) < e.cfg.MinSeparation {
			return false
		}
	}
	return true
}
