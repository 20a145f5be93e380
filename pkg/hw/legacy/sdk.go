// Package legacy adapts the register/counter-style vendor SDK to the
// hw.Backend contract. The SDK surface is the narrow subset of calls this
// adapter needs; platform builds bind it to the vendor library, tests bind
// it to an instrumented fake.
package legacy

import (
	"github.com/crosspoint-network/crosspoint/pkg/hw"
	"github.com/crosspoint-network/crosspoint/pkg/port"
)

// StatType identifies one SNMP-style hardware counter in the SDK's counter
// table.
type StatType int

const (
	StatInBytes StatType = iota
	StatInUnicastPkts
	StatInMulticastPkts
	StatInBroadcastPkts
	StatInDiscards
	StatInErrors
	StatInPause
	StatInIPv4HdrErrors
	StatInIPv6HdrErrors
	StatOutBytes
	StatOutUnicastPkts
	StatOutMulticastPkts
	StatOutBroadcastPkts
	StatOutDiscards
	StatOutErrors
	StatOutPause
	StatOutECN

	StatRxPkts64
	StatRxPkts65to127
	StatRxPkts128to255
	StatRxPkts256to511
	StatRxPkts512to1023
	StatRxPkts1024to1518
	StatRxPkts1519to2047
	StatRxPkts2048to4095
	StatRxPkts4096to9216
	StatRxPkts9217to16383

	StatTxPkts64
	StatTxPkts65to127
	StatTxPkts128to255
	StatTxPkts256to511
	StatTxPkts512to1023
	StatTxPkts1024to1518
	StatTxPkts1519to2047
	StatTxPkts2048to4095
	StatTxPkts4096to9216
	StatTxPkts9217to16383
)

// portStatTypes maps the backend-neutral counter keys onto SDK stat types.
var portStatTypes = map[string]StatType{
	hw.InBytes:         StatInBytes,
	hw.InUnicastPkts:   StatInUnicastPkts,
	hw.InMulticastPkts: StatInMulticastPkts,
	hw.InBroadcastPkts: StatInBroadcastPkts,
	hw.InDiscards:      StatInDiscards,
	hw.InErrors:        StatInErrors,
	hw.InPause:         StatInPause,
	hw.InIPv4HdrErrors: StatInIPv4HdrErrors,
	hw.InIPv6HdrErrors: StatInIPv6HdrErrors,
	hw.OutBytes:        StatOutBytes,
	hw.OutUnicastPkts:  StatOutUnicastPkts,
	hw.OutMulticastPkts: StatOutMulticastPkts,
	hw.OutBroadcastPkts: StatOutBroadcastPkts,
	hw.OutDiscards:     StatOutDiscards,
	hw.OutErrors:       StatOutErrors,
	hw.OutPause:        StatOutPause,
	hw.OutECN:          StatOutECN,
}

// rxLengthStats and txLengthStats list the packet-length bucket counters in
// bucket order. The layout is fixed; stats.PacketLengthBuckets labels it.
var rxLengthStats = []StatType{
	StatRxPkts64,
	StatRxPkts65to127,
	StatRxPkts128to255,
	StatRxPkts256to511,
	StatRxPkts512to1023,
	StatRxPkts1024to1518,
	StatRxPkts1519to2047,
	StatRxPkts2048to4095,
	StatRxPkts4096to9216,
	StatRxPkts9217to16383,
}

var txLengthStats = []StatType{
	StatTxPkts64,
	StatTxPkts65to127,
	StatTxPkts128to255,
	StatTxPkts256to511,
	StatTxPkts512to1023,
	StatTxPkts1024to1518,
	StatTxPkts1519to2047,
	StatTxPkts2048to4095,
	StatTxPkts4096to9216,
	StatTxPkts9217to16383,
}

// SDK is the register/counter-style vendor SDK surface. All calls are
// synchronous and block until the hardware call completes. Stat reads
// return the SDK's software-accumulated values, synced from hardware by
// the SDK's own counter thread.
type SDK interface {
	PortGport(hwPort int) (hw.ResourceID, error)

	PortEnableGet(hwPort int) (bool, error)
	PortEnableSet(hwPort int, enable bool) error

	PortSpeedGet(hwPort int) (int, error)
	PortSpeedSet(hwPort int, mbps int) error
	PortSpeedMax(hwPort int) (int, error)

	PortInterfaceGet(hwPort int) (hw.InterfaceMode, error)
	PortInterfaceSet(hwPort int, mode hw.InterfaceMode) error

	PortUntaggedVlanGet(hwPort int) (uint16, error)
	PortUntaggedVlanSet(hwPort int, vlan uint16) error
	VlanPortAdd(vlan uint16, hwPort int, untagged bool) error
	VlanPortRemove(vlan uint16, hwPort int) error
	PortVlanFilterSet(hwPort int, ingress, egress bool) error

	PortStatCollectionSet(gport hw.ResourceID, enable bool) error
	PortSampleRateSet(hwPort int, ingressRate, egressRate int) error

	PortPauseGet(hwPort int) (tx, rx bool, err error)
	PortPauseSet(hwPort int, tx, rx bool) error

	PortFECGet(hwPort int) (bool, error)
	PortFECSet(hwPort int, on bool) error

	PortLoopbackGet(hwPort int) (port.LoopbackMode, error)
	PortLoopbackSet(hwPort int, mode port.LoopbackMode) error

	PortLinkStatusGet(hwPort int) (bool, error)
	LinkscanModeSet(hwPort int, software bool) error

	StatGet(hwPort int, stat StatType) (uint64, error)
	StatMultiGet(hwPort int, stats []StatType) ([]uint64, error)
	QueueStatGet(hwPort int, queue uint8, discards bool) (uint64, error)
	PortQueuedCountGet(hwPort int) (uint64, error)

	PortMirrorSet(hwPort int, ingress bool, enable bool, session *hw.MirrorSession) error
}
