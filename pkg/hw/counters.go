package hw

// Counter keys shared by every backend. Backends report the full set on
// each read; the poller derives InNonPauseDiscards, which no backend
// reports directly.
const (
	InBytes         = "in_bytes"
	InUnicastPkts   = "in_unicast_pkts"
	InMulticastPkts = "in_multicast_pkts"
	InBroadcastPkts = "in_broadcast_pkts"
	InDiscards      = "in_discards"
	InErrors        = "in_errors"
	InPause         = "in_pause"
	InIPv4HdrErrors = "in_ipv4_hdr_errors"
	InIPv6HdrErrors = "in_ipv6_hdr_errors"

	OutBytes         = "out_bytes"
	OutUnicastPkts   = "out_unicast_pkts"
	OutMulticastPkts = "out_multicast_pkts"
	OutBroadcastPkts = "out_broadcast_pkts"
	OutDiscards      = "out_discards"
	OutErrors        = "out_errors"
	OutPause         = "out_pause"
	OutECN           = "out_ecn"

	// Derived by the poller, never read from hardware.
	InNonPauseDiscards = "in_non_pause_discards"
)

// QueueOutBytes and QueueOutDiscardBytes name per-queue counters;
// backends suffix them with the queue index ("queue_out_bytes.3").
const (
	QueueOutBytes        = "queue_out_bytes"
	QueueOutDiscardBytes = "queue_out_discard_bytes"
)

// PortCounters is the per-port counter set every backend must report.
var PortCounters = []string{
	InBytes,
	InUnicastPkts,
	InMulticastPkts,
	InBroadcastPkts,
	InDiscards,
	InErrors,
	InPause,
	InIPv4HdrErrors,
	InIPv6HdrErrors,
	OutBytes,
	OutUnicastPkts,
	OutMulticastPkts,
	OutBroadcastPkts,
	OutDiscards,
	OutErrors,
	OutPause,
	OutECN,
}

// NumPacketLengthBuckets is the fixed size of the packet-length histogram
// reads returned by ReadPacketLengths.
const NumPacketLengthBuckets = 10
