package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"roumble-sim/internal/engine"
	"roumble-sim/internal/mesh"
	"roumble-sim/internal/node"
)

// Duration parses "20s"-style strings in YAML/JSON scenario files.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("scenario: bad duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("scenario: bad duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

type AreaCfg struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

type PointCfg struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

type NodesCfg struct {
	Relays  int `yaml:"relays" json:"relays"`
	Mobiles int `yaml:"mobiles" json:"mobiles"`
}

type RadioCfg struct {
	Range         float64  `yaml:"range" json:"range"`
	MinSeparation float64  `yaml:"min_separation" json:"min_separation"`
	TxDelay       Duration `yaml:"tx_delay" json:"tx_delay"`
	RxDelay       Duration `yaml:"rx_delay" json:"rx_delay"`
}

type ProtocolCfg struct {
	BeaconInterval Duration `yaml:"beacon_interval" json:"beacon_interval"`
	DataInterval   Duration `yaml:"data_interval" json:"data_interval"`
	MaxHops        int      `yaml:"max_hops" json:"max_hops"`
}

type MobilityCfg struct {
	Model        string   `yaml:"model" json:"model"` // walk | perimeter
	MoveInterval Duration `yaml:"move_interval" json:"move_interval"`
	MoveDistance float64  `yaml:"move_distance" json:"move_distance"`
	Exclusion    *RectCfg `yaml:"exclusion" json:"exclusion"`
}

type RectCfg struct {
	X1 float64 `yaml:"x1" json:"x1"`
	Y1 float64 `yaml:"y1" json:"y1"`
	X2 float64 `yaml:"x2" json:"x2"`
	Y2 float64 `yaml:"y2" json:"y2"`
}

type LogCfg struct {
	MetricsFile string `yaml:"metrics_file" json:"metrics_file"`
}

// Scenario is the on-disk description of one simulation run.
type Scenario struct {
	Name     string      `yaml:"name" json:"name"`
	Duration Duration    `yaml:"duration" json:"duration"`
	Step     Duration    `yaml:"step" json:"step"`
	Seed     int64       `yaml:"seed" json:"seed"`
	Area     AreaCfg     `yaml:"area" json:"area"`
	Sinks    []PointCfg  `yaml:"sinks" json:"sinks"`
	Nodes    NodesCfg    `yaml:"nodes" json:"nodes"`
	Radio    RadioCfg    `yaml:"radio" json:"radio"`
	Protocol ProtocolCfg `yaml:"protocol" json:"protocol"`
	Mobility MobilityCfg `yaml:"mobility" json:"mobility"`
	Logging  LogCfg      `yaml:"logging" json:"logging"`
}

// Default returns the reference scenario: a 5 minute run of the default
// engine configuration, stepped at 100ms.
func Default() *Scenario {
	return &Scenario{
		Name:     "default",
		Duration: Duration(5 * time.Minute),
		Step:     Duration(100 * time.Millisecond),
		Nodes:    NodesCfg{Relays: 16, Mobiles: 3},
		Logging:  LogCfg{MetricsFile: "metrics.json"},
	}
}

// Load reads a YAML scenario file, falling back to JSON. Fields left unset
// keep the defaults applied at engine construction.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc := Default()
	if yaml.Unmarshal(raw, sc) == nil {
		return sc, nil
	}
	sc = Default()
	if err := json.Unmarshal(raw, sc); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// EngineConfig maps the scenario onto the engine's construction config.
func (s *Scenario) EngineConfig() engine.Config {
	cfg := engine.Config{
		AreaWidth:      s.Area.Width,
		AreaHeight:     s.Area.Height,
		RelayCount:     s.Nodes.Relays,
		MobileCount:    s.Nodes.Mobiles,
		MinSeparation:  s.Radio.MinSeparation,
		CommRange:      s.Radio.Range,
		TxDelay:        s.Radio.TxDelay.Std(),
		RxDelay:        s.Radio.RxDelay.Std(),
		BeaconInterval: s.Protocol.BeaconInterval.Std(),
		DataInterval:   s.Protocol.DataInterval.Std(),
		MaxHops:        s.Protocol.MaxHops,
		MoveInterval:   s.Mobility.MoveInterval.Std(),
		MoveDistance:   s.Mobility.MoveDistance,
		Mobility:       node.MobilityModel(s.Mobility.Model),
		Seed:           s.Seed,
	}
	for _, p := range s.Sinks {
		cfg.SinkPositions = append(cfg.SinkPositions, mesh.CreateCoordinates(p.X, p.Y))
	}
	if r := s.Mobility.Exclusion; r != nil {
		cfg.Exclusion = &mesh.Rect{X1: r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2}
	}
	return cfg
}
