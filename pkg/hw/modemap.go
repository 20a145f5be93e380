package hw

import (
	"fmt"

	"github.com/crosspoint-network/crosspoint/pkg/port"
	"github.com/crosspoint-network/crosspoint/pkg/util"
)

// InterfaceMode is the physical-layer interface type programmed alongside a
// port's speed. Changing it re-initializes the MAC, so writes are gated on
// the current hardware value.
type InterfaceMode int

const (
	ModeNone InterfaceMode = iota
	ModeGMII
	ModeSFI
	ModeCR
	ModeCR2
	ModeCR4
	ModeXLAUI
	ModeCAUI
)

func (m InterfaceMode) String() string {
	switch m {
	case ModeGMII:
		return "GMII"
	case ModeSFI:
		return "SFI"
	case ModeCR:
		return "CR"
	case ModeCR2:
		return "CR2"
	case ModeCR4:
		return "CR4"
	case ModeXLAUI:
		return "XLAUI"
	case ModeCAUI:
		return "CAUI"
	}
	return "NONE"
}

// portTypeMapping maps a speed and transmission technology to the interface
// mode the ASIC supports for that combination. Every supported speed
// carries a TechUnknown entry, the default when the module cannot be
// classified. Built once; never mutated at runtime.
var portTypeMapping = map[port.Speed]map[TransmitterTechnology]InterfaceMode{
	port.SpeedHundredG: {
		TechCopper:  ModeCR4,
		TechOptical: ModeCAUI,
		TechUnknown: ModeCAUI,
	},
	port.SpeedFiftyG: {
		TechCopper:  ModeCR2,
		TechOptical: ModeCAUI,
		TechUnknown: ModeCR2,
	},
	port.SpeedFortyG: {
		TechCopper:  ModeCR4,
		TechOptical: ModeXLAUI,
		TechUnknown: ModeXLAUI,
	},
	port.SpeedTwentyFive: {
		TechCopper:  ModeCR,
		TechOptical: ModeCAUI,
		TechUnknown: ModeCR,
	},
	// No 20G optics exist.
	port.SpeedTwentyG: {
		TechCopper:  ModeCR,
		TechUnknown: ModeCR,
	},
	port.SpeedXG: {
		TechCopper:  ModeCR,
		TechOptical: ModeSFI,
		TechUnknown: ModeCR,
	},
	// No 1G optics exist.
	port.SpeedGigE: {
		TechCopper:  ModeGMII,
		TechUnknown: ModeGMII,
	},
}

// DesiredInterfaceMode looks up the interface mode for a (speed, technology)
// pair. When the exact pair is absent the per-speed UNKNOWN default
// applies; when the speed has no entry at all the configuration is
// unsupported.
func DesiredInterfaceMode(speed port.Speed, tech TransmitterTechnology) (InterfaceMode, error) {
	byTech, ok := portTypeMapping[speed]
	if !ok {
		return ModeNone, util.NewUnsupportedConfigError("",
			fmt.Sprintf("no interface mode for speed %s", speed))
	}
	if mode, ok := byTech[tech]; ok {
		return mode, nil
	}
	if mode, ok := byTech[TechUnknown]; ok {
		return mode, nil
	}
	return ModeNone, util.NewUnsupportedConfigError("",
		fmt.Sprintf("no interface mode for speed %s technology %s", speed, tech))
}
