package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
)

// PromView exposes collector snapshots as Prometheus gauges. The simulated
// clock has no relation to scrape time, so everything is a gauge refreshed
// from the latest snapshot rather than a live counter.
type PromView struct {
	dataSent       prometheus.Gauge
	dataDelivered  prometheus.Gauge
	controlSent    prometheus.Gauge
	routingUpdates prometheus.Gauge
	pdr            prometheus.Gauge
	avgLatency     prometheus.Gauge
	avgHops        prometheus.Gauge
	overhead       prometheus.Gauge
}

func NewPromView(reg prometheus.Registerer) *PromView {
	v := &PromView{
		dataSent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roumble_data_packets_sent",
			Help: "Data (RMS) packets originated.",
		}),
		dataDelivered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roumble_data_packets_delivered",
			Help: "Data (RMS) packets received at sinks.",
		}),
		controlSent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roumble_control_packets_sent",
			Help: "Beacon (BOM) packets sent, originations and forwards.",
		}),
		routingUpdates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roumble_routing_table_updates",
			Help: "Routing table entry updates across all nodes.",
		}),
		pdr: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roumble_packet_delivery_ratio",
			Help: "Delivered / originated data packets.",
		}),
		avgLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roumble_avg_latency_seconds",
			Help: "Mean end-to-end latency over delivered data packets.",
		}),
		avgHops: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roumble_avg_hop_count",
			Help: "Mean hop count over delivered data packets.",
		}),
		overhead: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roumble_control_overhead_ratio",
			Help: "Control packets sent / data packets sent.",
		}),
	}
	reg.MustRegister(
		v.dataSent, v.dataDelivered, v.controlSent, v.routingUpdates,
		v.pdr, v.avgLatency, v.avgHops, v.overhead,
	)
	return v
}

// Update refreshes all gauges from s.
func (v *PromView) Update(s Snapshot) {
	v.dataSent.Set(float64(s.DataSent))
	v.dataDelivered.Set(float64(s.DataDelivered))
	v.controlSent.Set(float64(s.ControlSent))
	v.routingUpdates.Set(float64(s.RoutingUpdates))
	v.pdr.Set(s.PDR)
	v.avgLatency.Set(s.AvgLatencySec)
	v.avgHops.Set(s.AvgHops)
	if !math.IsInf(s.Overhead, 1) {
		v.overhead.Set(s.Overhead)
	}
}
