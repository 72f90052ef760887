package sim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roumble-sim/internal/node"
)

func writeScenario(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadYAMLScenario(t *testing.T) {
	path := writeScenario(t, "showroom.yaml", `
name: showroom
duration: 10m
step: 250ms
seed: 42
area:
  width: 300
  height: 150
sinks:
  - {x: 100, y: 75}
  - {x: 200, y: 75}
nodes:
  relays: 20
  mobiles: 5
radio:
  range: 40
  min_separation: 12
  tx_delay: 30ms
  rx_delay: 5ms
protocol:
  beacon_interval: 10s
  data_interval: 8s
  max_hops: 4
mobility:
  model: perimeter
  move_interval: 2s
  move_distance: 6
  exclusion: {x1: 50, y1: 25, x2: 250, y2: 125}
`)

	sc, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "showroom", sc.Name)
	assert.Equal(t, 10*time.Minute, sc.Duration.Std())
	assert.Equal(t, 250*time.Millisecond, sc.Step.Std())

	cfg := sc.EngineConfig()
	assert.Equal(t, 300.0, cfg.AreaWidth)
	assert.Equal(t, 150.0, cfg.AreaHeight)
	require.Len(t, cfg.SinkPositions, 2)
	assert.Equal(t, 100.0, cfg.SinkPositions[0].X)
	assert.Equal(t, 20, cfg.RelayCount)
	assert.Equal(t, 5, cfg.MobileCount)
	assert.Equal(t, 40.0, cfg.CommRange)
	assert.Equal(t, 12.0, cfg.MinSeparation)
	assert.Equal(t, 30*time.Millisecond, cfg.TxDelay)
	assert.Equal(t, 5*time.Millisecond, cfg.RxDelay)
	assert.Equal(t, 10*time.Second, cfg.BeaconInterval)
	assert.Equal(t, 8*time.Second, cfg.DataInterval)
	assert.Equal(t, 4, cfg.MaxHops)
	assert.Equal(t, node.MobilityPerimeter, cfg.Mobility)
	require.NotNil(t, cfg.Exclusion)
	assert.Equal(t, 50.0, cfg.Exclusion.X1)
	assert.Equal(t, 125.0, cfg.Exclusion.Y2)
	assert.Equal(t, int64(42), cfg.Seed)
}

func TestLoadJSONScenario(t *testing.T) {
	path := writeScenario(t, "run.json", `{
  "name": "json-run",
  "duration": "1m",
  "step": "50ms",
  "radio": {"range": 25, "tx_delay": "10ms", "rx_delay": "1ms"}
}`)

	sc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "json-run", sc.Name)
	assert.Equal(t, time.Minute, sc.Duration.Std())
	assert.Equal(t, 25.0, sc.Radio.Range)
}

func TestLoadPartialScenarioKeepsDefaults(t *testing.T) {
	path := writeScenario(t, "partial.yaml", "name: partial\nduration: 30s\n")

	sc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "partial", sc.Name)
	assert.Equal(t, 30*time.Second, sc.Duration.Std())
	// untouched fields keep the reference defaults
	assert.Equal(t, 100*time.Millisecond, sc.Step.Std())
	assert.Equal(t, 16, sc.Nodes.Relays)
	assert.Equal(t, 3, sc.Nodes.Mobiles)
	assert.Equal(t, "metrics.json", sc.Logging.MetricsFile)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeScenario(t, "bad.yaml", "duration: quickly\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDefaultScenarioProducesValidEngineConfig(t *testing.T) {
	sc := Default()
	cfg := sc.EngineConfig()
	// zero-value fields defer to engine defaults; the mapped counts carry
	assert.Equal(t, 16, cfg.RelayCount)
	assert.Equal(t, 3, cfg.MobileCount)
	assert.Zero(t, cfg.AreaWidth)
	assert.Nil(t, cfg.Exclusion)
}
