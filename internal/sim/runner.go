package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"roumble-sim/internal/engine"
	"roumble-sim/internal/eventbus"
)

// Runner drives an engine through a scenario: it steps the simulated clock,
// drains the event journal after every step and flushes the metrics file at
// the end of the run.
type Runner struct {
	sc  *Scenario
	eng *engine.SimulationEngine
	log *slog.Logger
	id  uuid.UUID
}

func NewRunner(sc *Scenario, eng *engine.SimulationEngine, log *slog.Logger) *Runner {
	return &Runner{sc: sc, eng: eng, log: log, id: uuid.New()}
}

// ID identifies this run in batch outputs and telemetry.
func (r *Runner) ID() uuid.UUID { return r.id }

// Run executes the scenario until its duration elapses or ctx is cancelled.
// Metrics are flushed on every exit path.
func (r *Runner) Run(ctx context.Context) error {
	step := r.sc.Step.Std()
	if step <= 0 {
		step = 100 * time.Millisecond
	}
	total := r.sc.Duration.Std()

	r.log.Info("run starting",
		"run_id", r.id.String(), "scenario", r.sc.Name,
		"duration", total, "step", step)

	defer r.flush()

	for elapsed := time.Duration(0); elapsed < total; elapsed += step {
		select {
		case <-ctx.Done():
			r.log.Info("run cancelled", "run_id", r.id.String(), "elapsed", elapsed)
			return nil
		default:
		}
		r.eng.Advance(step)
		r.drainEvents()
	}

	s := r.eng.SnapshotMetrics()
	r.log.Info("run complete",
		"run_id", r.id.String(),
		"data_sent", s.DataSent,
		"data_delivered", s.DataDelivered,
		"pdr", s.PDR,
		"avg_latency_s", s.AvgLatencySec,
		"avg_hops", s.AvgHops,
		"overhead", s.Overhead,
		"routing_updates", s.RoutingUpdates)
	return nil
}

// drainEvents keeps the journal bounded. Subscribers on the bus get the
// live stream regardless; draining only consumes the replay queue.
func (r *Runner) drainEvents() {
	for _, ev := range r.eng.DrainEvents() {
		r.logEvent(ev)
	}
}

func (r *Runner) logEvent(ev eventbus.Event) {
	dest := "all"
	if ev.Dest != eventbus.Broadcast {
		dest = "node"
	}
	r.log.Debug("event",
		"t", ev.Time.Seconds(),
		"type", string(ev.Type),
		"src", ev.Source,
		"dest_kind", dest,
		"dest", ev.Dest)
}

func (r *Runner) flush() {
	file := r.sc.Logging.MetricsFile
	if file == "" {
		return
	}
	if err := r.eng.Collector().Flush(file); err != nil {
		r.log.Error("flush metrics", "file", file, "err", err)
	} else {
		r.log.Info("metrics written", "file", file)
	}
}
