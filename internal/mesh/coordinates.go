package mesh

import "math"

// Coordinates is a position in the bounded rectangular simulation area.
type Coordinates struct {
	X float64
	Y float64
}

func (c Coordinates) DistanceTo(other Coordinates) float64 {
	return math.Hypot(c.X-other.X, c.Y-other.Y)
}

func (c Coordinates) Equals(other Coordinates) bool {
	return c.X == other.X && c.Y == other.Y
}

// Clamp restricts c to the rectangle [0,width] x [0,height].
func (c Coordinates) Clamp(width, height float64) Coordinates {
	return Coordinates{
		X: math.Max(0, math.Min(width, c.X)),
		Y: math.Max(0, math.Min(height, c.Y)),
	}
}

// Offset returns the point at the given distance from c along angle radians.
func (c Coordinates) Offset(angle, distance float64) Coordinates {
	return Coordinates{
		X: c.X + distance*math.Cos(angle),
		Y: c.Y + distance*math.Sin(angle),
	}
}

func CreateCoordinates(x, y float64) Coordinates {
	return Coordinates{X: x, Y: y}
}

// Rect is an axis-aligned rectangle, used for the mobility exclusion zone.
type Rect struct {
	X1, Y1 float64
	X2, Y2 float64
}

// Contains reports whether c lies strictly inside the rectangle grown by
// margin on every side.
func (r Rect) Contains(c Coordinates, margin float64) bool {
	return c.X > r.X1-margin && c.X < r.X2+margin &&
		c.Y > r.Y1-margin && c.Y < r.Y2+margin
}
