package engine

import (
	"fmt"
	"time"

	"roumble-sim/internal/mesh"
	"roumble-sim/internal/node"
)

// Config is the construction configuration of a simulation. Zero values are
// treated as unset and replaced by defaults before validation; counts are
// the exception, since zero relays or zero mobiles is a meaningful setup.
// Invalid values fail construction with a descriptive error, never a silent
// clamp.
type Config struct {
	AreaWidth  float64
	AreaHeight float64

	// SinkPositions are anchor points; actual placement may jitter around
	// them to honor the minimum separation. Defaults to two sinks at one
	// and two thirds of the width, centered vertically.
	SinkPositions []mesh.Coordinates
	RelayCount    int
	MobileCount   int

	MinSeparation float64
	CommRange     float64

	BeaconInterval time.Duration
	DataInterval   time.Duration
	TxDelay        time.Duration
	RxDelay        time.Duration
	MaxHops        int

	MoveInterval time.Duration
	MoveDistance float64
	Mobility     node.MobilityModel
	// Exclusion is the rectangle perimeter-walk mobiles keep out of.
	// Ignored by the random-walk model.
	Exclusion *mesh.Rect

	Seed int64
}

// Defaults mirror the reference showroom scenario.
const (
	defaultAreaWidth      = 200.0
	defaultAreaHeight     = 200.0
	defaultRelayCount     = 16
	defaultMobileCount    = 3
	defaultMinSeparation  = 14.0
	defaultCommRange      = 30.0
	defaultBeaconInterval = 20 * time.Second
	defaultDataInterval   = 15 * time.Second
	defaultTxDelay        = 50 * time.Millisecond
	defaultRxDelay        = 10 * time.Millisecond
	defaultMaxHops        = 3
	defaultMoveInterval   = 5 * time.Second
	defaultMoveDistance   = 10.0

	perimeterMargin = 2.0
	exclusionMargin = 0.5
)

// DefaultConfig returns the configuration of the reference scenario:
// 2 sinks, 16 relays and 3 random-walk mobiles in a 200x200 area.
func DefaultConfig() Config {
	cfg := Config{
		RelayCount:  defaultRelayCount,
		MobileCount: defaultMobileCount,
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.AreaWidth == 0 {
		c.AreaWidth = defaultAreaWidth
	}
	if c.AreaHeight == 0 {
		c.AreaHeight = defaultAreaHeight
	}
	if len(c.SinkPositions) == 0 {
		c.SinkPositions = []mesh.Coordinates{
			mesh.CreateCoordinates(c.AreaWidth*0.33, c.AreaHeight*0.5),
			mesh.CreateCoordinates(c.AreaWidth*0.66, c.AreaHeight*0.5),
		}
	}
	if c.MinSeparation == 0 {
		c.MinSeparation = defaultMinSeparation
	}
	if c.CommRange == 0 {
		c.CommRange = defaultCommRange
	}
	if c.BeaconInterval == 0 {
		c.BeaconInterval = defaultBeaconInterval
	}
	if c.DataInterval == 0 {
		c.DataInterval = defaultDataInterval
	}
	if c.TxDelay == 0 {
		c.TxDelay = defaultTxDelay
	}
	if c.RxDelay == 0 {
		c.RxDelay = defaultRxDelay
	}
	if c.MaxHops == 0 {
		c.MaxHops = defaultMaxHops
	}
	if c.MoveInterval == 0 {
		c.MoveInterval = defaultMoveInterval
	}
	if c.MoveDistance == 0 {
		c.MoveDistance = defaultMoveDistance
	}
	if c.Mobility == "" {
		c.Mobility = node.MobilityWalk
	}
}

func (c *Config) validate() error {
	if c.AreaWidth <= 0 || c.AreaHeight <= 0 {
		return fmt.Errorf("config: area must be positive, got %gx%g", c.AreaWidth, c.AreaHeight)
	}
	if c.RelayCount < 0 {
		return fmt.Errorf("config: relay count must not be negative, got %d", c.RelayCount)
	}
	if c.MobileCount < 0 {
		return fmt.Errorf("config: mobile count must not be negative, got %d", c.MobileCount)
	}
	if c.MinSeparation < 0 {
		return fmt.Errorf("config: minimum separation must not be negative, got %g", c.MinSeparation)
	}
	if c.CommRange <= 0 {
		return fmt.Errorf("config: communication range must be positive, got %g", c.CommRange)
	}
	for i, p := range c.SinkPositions {
		if p.X < 0 || p.X > c.AreaWidth || p.Y < 0 || p.Y > c.AreaHeight {
			return fmt.Errorf("config: sink %d position (%g,%g) outside area %gx%g",
				i, p.X, p.Y, c.AreaWidth, c.AreaHeight)
		}
	}
	if c.BeaconInterval <= 0 {
		return fmt.Errorf("config: beacon interval must be positive, got %s", c.BeaconInterval)
	}
	if c.DataInterval <= 0 {
		return fmt.Errorf("config: data generation interval must be positive, got %s", c.DataInterval)
	}
	if c.TxDelay < 0 {
		return fmt.Errorf("config: transmission delay must not be negative, got %s", c.TxDelay)
	}
	if c.RxDelay < 0 {
		return fmt.Errorf("config: reception delay must not be negative, got %s", c.RxDelay)
	}
	if c.MaxHops < 1 {
		return fmt.Errorf("config: maximum hop limit must be at least 1, got %d", c.MaxHops)
	}
	if c.MoveInterval <= 0 {
		return fmt.Errorf("config: move interval must be positive, got %s", c.MoveInterval)
	}
	if c.MoveDistance < 0 {
		return fmt.Errorf("config: move distance must not be negative, got %g", c.MoveDistance)
	}
	switch c.Mobility {
	case node.MobilityWalk, node.MobilityPerimeter:
	default:
		return fmt.Errorf("config: unknown mobility model %q", c.Mobility)
	}
	return nil
}

func (c *Config) nodeParams() node.Params {
	return node.Params{
		Width:           c.AreaWidth,
		Height:          c.AreaHeight,
		BeaconInterval:  c.BeaconInterval,
		DataInterval:    c.DataInterval,
		TxDelay:         c.TxDelay,
		RxDelay:         c.RxDelay,
		MaxHops:         c.MaxHops,
		MoveInterval:    c.MoveInterval,
		MoveDistance:    c.MoveDistance,
		Mobility:        c.Mobility,
		Exclusion:       c.Exclusion,
		PerimeterMargin: perimeterMargin,
		ExclusionMargin: exclusionMargin,
	}
}
