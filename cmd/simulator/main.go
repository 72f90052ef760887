package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/encodeous/tint"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"roumble-sim/internal/engine"
	mqttbridge "roumble-sim/internal/mqtt"
	"roumble-sim/internal/server"
	"roumble-sim/internal/sim"
)

func main() {
	scenarioPath := flag.String("scenario", "", "YAML or JSON scenario description (default scenario when empty)")
	addr := flag.String("addr", ":8080", "HTTP listen address for websocket/metrics endpoints (empty to disable)")
	broker := flag.String("mqtt", "", "MQTT broker URL for the telemetry bridge (empty to disable)")
	topicPrefix := flag.String("mqtt-prefix", "roumble", "MQTT topic prefix")
	verbose := flag.Bool("v", false, "debug logging, including the per-event stream")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))
	slog.SetDefault(log)

	sc := sim.Default()
	if *scenarioPath != "" {
		loaded, err := sim.Load(*scenarioPath)
		if err != nil {
			log.Error("load scenario", "path", *scenarioPath, "err", err)
			os.Exit(1)
		}
		sc = loaded
	}

	eng, err := engine.New(sc.EngineConfig(), log)
	if err != nil {
		log.Error("build engine", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := sim.NewRunner(sc, eng, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop() // bring the servers down once the run finishes
		return runner.Run(ctx)
	})
	if *addr != "" {
		srv := server.New(eng, log)
		g.Go(func() error { return srv.Run(ctx, *addr) })
	}
	if *broker != "" {
		bridge, err := mqttbridge.New(*broker, "roumble-sim-"+uuid.NewString(), *topicPrefix, eng, log)
		if err != nil {
			log.Error("mqtt bridge", "err", err)
			os.Exit(1)
		}
		g.Go(func() error { return bridge.Run(ctx) })
	}

	if err := g.Wait(); err != nil {
		log.Error("simulator", "err", err)
		os.Exit(1)
	}
}
