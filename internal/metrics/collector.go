package metrics

import (
	"encoding/json"
	"math"
	"os"
	"sync"
	"time"
)

// Snapshot is a point-in-time view of the simulation counters plus the
// ratios derived from them.
type Snapshot struct {
	DataSent       uint64  `json:"data_sent"`
	DataDelivered  uint64  `json:"data_delivered"`
	ControlSent    uint64  `json:"control_sent"`
	RoutingUpdates uint64  `json:"routing_updates"`
	PDR            float64 `json:"pdr"`           // delivered / sent
	AvgLatencySec  float64 `json:"avg_latency_s"` // over delivered packets
	AvgHops        float64 `json:"avg_hops"`      // over delivered packets
	Overhead       float64 `json:"overhead"`      // control sent / data sent
}

// Collector accumulates protocol counters and delivery samples. It is safe
// for concurrent use; the simulation updates it from the event loop while
// external servers take snapshots.
type Collector struct {
	mu             sync.Mutex
	dataSent       uint64
	dataDelivered  uint64
	controlSent    uint64
	routingUpdates uint64
	latencySum     time.Duration
	hopSum         uint64
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) AddDataSent() {
	c.mu.Lock()
	c.dataSent++
	c.mu.Unlock()
}

func (c *Collector) AddControlSent() {
	c.mu.Lock()
	c.controlSent++
	c.mu.Unlock()
}

func (c *Collector) AddRoutingUpdate() {
	c.mu.Lock()
	c.routingUpdates++
	c.mu.Unlock()
}

// AddDelivered records one data delivery at a sink, with its end-to-end
// latency and the hop count observed at arrival.
func (c *Collector) AddDelivered(latency time.Duration, hops int) {
	c.mu.Lock()
	c.dataDelivered++
	c.latencySum += latency
	c.hopSum += uint64(hops)
	c.mu.Unlock()
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		DataSent:       c.dataSent,
		DataDelivered:  c.dataDelivered,
		ControlSent:    c.controlSent,
		RoutingUpdates: c.routingUpdates,
	}
	if c.dataSent > 0 {
		s.PDR = float64(c.dataDelivered) / float64(c.dataSent)
		s.Overhead = float64(c.controlSent) / float64(c.dataSent)
	} else if c.controlSent > 0 {
		s.Overhead = math.Inf(1)
	}
	if c.dataDelivered > 0 {
		s.AvgLatencySec = c.latencySum.Seconds() / float64(c.dataDelivered)
		s.AvgHops = float64(c.hopSum) / float64(c.dataDelivered)
	}
	return s
}

// MarshalJSON emits the overhead ratio as null when it is infinite
// (control packets sent but no data yet), since JSON has no Inf.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type alias Snapshot
	out := struct {
		alias
		Overhead any `json:"overhead"`
	}{alias: alias(s), Overhead: s.Overhead}
	if math.IsInf(s.Overhead, 1) {
		out.Overhead = nil
	}
	return json.Marshal(out)
}

// Flush writes the current snapshot to file as indented JSON.
func (c *Collector) Flush(file string) error {
	s := c.Snapshot()
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
