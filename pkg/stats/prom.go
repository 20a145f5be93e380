package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/crosspoint-network/crosspoint/pkg/port"
)

var (
	counterDesc = prometheus.NewDesc(
		"crosspoint_port_counter_total",
		"Hardware port counter value.",
		[]string{"port", "counter"}, nil,
	)
	packetLengthDesc = prometheus.NewDesc(
		"crosspoint_port_packet_length_total",
		"Packets per size bucket.",
		[]string{"port", "direction", "bucket"}, nil,
	)
	queueLenDesc = prometheus.NewDesc(
		"crosspoint_port_queue_bytes",
		"Current egress queue occupancy in bytes.",
		[]string{"port"}, nil,
	)
)

// Collector exposes the poller's published snapshots to Prometheus.
// Collect reads published snapshots only; it never touches hardware, so
// a slow backend cannot stall a scrape.
type Collector struct {
	poller *Poller
}

func NewCollector(poller *Poller) *Collector {
	return &Collector{poller: poller}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- counterDesc
	ch <- packetLengthDesc
	ch <- queueLenDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.poller.ForEach(func(_ port.ID, snap *Snapshot) {
		for key, v := range snap.Counters {
			ch <- prometheus.MustNewConstMetric(
				counterDesc, prometheus.CounterValue, float64(v), snap.PortName, key)
		}
		for i, v := range snap.RxLengths {
			if i >= len(PacketLengthBuckets) {
				break
			}
			ch <- prometheus.MustNewConstMetric(
				packetLengthDesc, prometheus.CounterValue, float64(v),
				snap.PortName, "ingress", PacketLengthBuckets[i])
		}
		for i, v := range snap.TxLengths {
			if i >= len(PacketLengthBuckets) {
				break
			}
			ch <- prometheus.MustNewConstMetric(
				packetLengthDesc, prometheus.CounterValue, float64(v),
				snap.PortName, "egress", PacketLengthBuckets[i])
		}
		ch <- prometheus.MustNewConstMetric(
			queueLenDesc, prometheus.GaugeValue, float64(snap.QueueLen), snap.PortName)
	})
}

var _ prometheus.Collector = (*Collector)(nil)
