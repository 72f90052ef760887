package node

import (
	"math"

	"roumble-sim/internal/mesh"
)

func (n *Node) scheduleMove() {
	n.net.Schedule(n.params.MoveInterval, func() {
		n.move()
		n.scheduleMove()
	})
}

func (n *Node) move() {
	switch n.params.Mobility {
	case MobilityPerimeter:
		n.movePerimeter()
	default:
		n.moveWalk()
	}
	n.net.NodeMoved(n.id)
}

// moveWalk takes one fixed-magnitude step in a random direction, clamped to
// the area bounds.
func (n *Node) moveWalk() {
	angle := n.net.Rand().Float64() * 2 * math.Pi
	n.pos = n.pos.Offset(angle, n.params.MoveDistance).Clamp(n.params.Width, n.params.Height)
}

// movePerimeter walks toward the current perimeter target, picking a fresh
// one on arrival or whenever the next step would enter the exclusion zone.
func (n *Node) movePerimeter() {
	if n.target == nil {
		t := n.pickPerimeterTarget()
		n.target = &t
	}
	dx := n.target.X - n.pos.X
	dy := n.target.Y - n.pos.Y
	dist := math.Hypot(dx, dy)
	if dist < 0.1 {
		n.target = nil
		return
	}
	step := math.Min(n.params.MoveDistance, dist)
	next := mesh.CreateCoordinates(n.pos.X+step*dx/dist, n.pos.Y+step*dy/dist)
	next = n.clampToMargin(next)
	if n.params.Exclusion != nil && n.params.Exclusion.Contains(next, n.params.ExclusionMargin) {
		n.target = nil
		return
	}
	n.pos = next
}

func (n *Node) clampToMargin(c mesh.Coordinates) mesh.Coordinates {
	m := n.params.PerimeterMargin
	return mesh.Coordinates{
		X: math.Min(math.Max(c.X, m), n.params.Width-m),
		Y: math.Min(math.Max(c.Y, m), n.params.Height-m),
	}
}

// pickPerimeterTarget chooses a random point on one of the four sides of
// the area, inset by the perimeter margin.
func (n *Node) pickPerimeterTarget() mesh.Coordinates {
	m := n.params.PerimeterMargin
	left, right := m, n.params.Width-m
	top, bottom := m, n.params.Height-m
	rng := n.net.Rand()
	switch rng.Intn(4) {
	case 0:
		return mesh.CreateCoordinates(left+rng.Float64()*(right-left), top)
	case 1:
		return mesh.CreateCoordinates(left+rng.Float64()*(right-left), bottom)
	case 2:
		return mesh.CreateCoordinates(left, top+rng.Float64()*(bottom-top))
	default:
		return mesh.CreateCoordinates(right, top+rng.Float64()*(bottom-top))
	}
}
