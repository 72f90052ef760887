package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"

	"roumble-sim/internal/engine"
	"roumble-sim/internal/packet"
)

// Bridge mirrors the simulation onto an MQTT broker: the live event stream
// and periodic metrics snapshots go out on telemetry topics, and injection
// commands come back in on a command topic. Payloads are msgpack-encoded.
type Bridge struct {
	client mqtt.Client
	prefix string
	eng    *engine.SimulationEngine
	log    *slog.Logger
}

// InjectCommand is the payload accepted on the inject command topic.
type InjectCommand struct {
	Kind   string `msgpack:"kind"`   // "data" | "beacon"
	Source int    `msgpack:"source"` // originating node id
	Sink   *int   `msgpack:"sink"`   // destination sink id; nil for none
}

// New connects to the broker. The clientID should be unique per run.
func New(broker, clientID, prefix string, eng *engine.SimulationEngine, log *slog.Logger) (*Bridge, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return &Bridge{client: client, prefix: prefix, eng: eng, log: log}, nil
}

// Run subscribes to the command topic, forwards the event stream and
// publishes a metrics snapshot once a second of wall time, until ctx is
// cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.subscribeInject(); err != nil {
		return err
	}

	events := b.eng.Bus().Subscribe()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.disconnect()
			return nil
		case ev := <-events:
			b.publish("events", ev)
		case <-ticker.C:
			b.publish("metrics", b.eng.SnapshotMetrics())
		}
	}
}

func (b *Bridge) subscribeInject() error {
	topic := b.prefix + "/inject"
	token := b.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		var cmd InjectCommand
		if err := msgpack.Unmarshal(msg.Payload(), &cmd); err != nil {
			b.log.Warn("bad inject payload", "topic", msg.Topic(), "err", err)
			return
		}
		var kind packet.Kind
		switch cmd.Kind {
		case "data":
			kind = packet.Data
		case "beacon":
			kind = packet.Beacon
		default:
			b.log.Warn("bad inject kind", "kind", cmd.Kind)
			return
		}
		sink := packet.NoSink
		if cmd.Sink != nil {
			sink = *cmd.Sink
		}
		if err := b.eng.InjectPacket(kind, cmd.Source, sink); err != nil {
			b.log.Warn("inject rejected", "err", err)
		}
	})
	token.Wait()
	return token.Error()
}

func (b *Bridge) publish(topic string, payload any) {
	raw, err := msgpack.Marshal(payload)
	if err != nil {
		b.log.Warn("encode payload", "topic", topic, "err", err)
		return
	}
	token := b.client.Publish(b.prefix+"/"+topic, 0, false, raw)
	token.Wait()
	if err := token.Error(); err != nil {
		b.log.Warn("publish", "topic", topic, "err", err)
	}
}

func (b *Bridge) disconnect() {
	b.client.Disconnect(250)
}
