package hw

import (
	"context"
	"strings"
	"sync"

	"github.com/crosspoint-network/crosspoint/pkg/util"
)

// TransmitterTechnology classifies the physical medium behind a port.
type TransmitterTechnology int

const (
	TechUnknown TransmitterTechnology = iota
	TechCopper
	TechOptical
)

func (t TransmitterTechnology) String() string {
	switch t {
	case TechCopper:
		return "COPPER"
	case TechOptical:
		return "OPTICAL"
	}
	return "UNKNOWN"
}

// backplanePrefix names fixed-backplane ports. These cannot be classified
// via the transceiver path and are always copper.
const backplanePrefix = "fab"

// TransceiverAccess is the external transceiver subsystem (I2C-over-USB),
// specified only at this boundary. Its retry semantics are its own.
type TransceiverAccess interface {
	// ProbeTechnology classifies the module plugged into the named port.
	ProbeTechnology(ctx context.Context, portName string) (TransmitterTechnology, error)

	// ReadPresence performs a small speculative read to answer whether a
	// module is seated in the named port.
	ReadPresence(ctx context.Context, portName string) (bool, error)
}

// TechResolver memoizes transmitter technology per port name. Technology is
// assumed immutable for the process lifetime; re-insertion of a different
// module into a running port is not handled (the stale classification is
// kept until restart).
type TechResolver struct {
	mu     sync.Mutex
	access TransceiverAccess
	cache  map[string]TransmitterTechnology
}

// NewTechResolver creates a resolver over the given transceiver subsystem.
// access may be nil, in which case unprobeable ports resolve to UNKNOWN.
func NewTechResolver(access TransceiverAccess) *TechResolver {
	return &TechResolver{
		access: access,
		cache:  make(map[string]TransmitterTechnology),
	}
}

// Technology resolves the transmitter technology for a port name. The first
// successful resolution is cached; UNKNOWN results are not cached so a later
// probe can still succeed. A probe failure degrades to UNKNOWN rather than
// propagating: port programming must not abort because a module could not
// be classified.
func (r *TechResolver) Technology(ctx context.Context, portName string) TransmitterTechnology {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tech, ok := r.cache[portName]; ok {
		return tech
	}
	if strings.HasPrefix(portName, backplanePrefix) {
		r.cache[portName] = TechCopper
		return TechCopper
	}
	if r.access == nil {
		return TechUnknown
	}
	tech, err := r.access.ProbeTechnology(ctx, portName)
	if err != nil {
		util.WithPort(portName).Warnf("Transceiver probe failed, using UNKNOWN: %v", err)
		return TechUnknown
	}
	if tech != TechUnknown {
		r.cache[portName] = tech
	}
	return tech
}

// ModulePresent answers whether a transceiver module is seated in the named
// port. Probe communication failures are expected and non-actionable, so
// they downgrade to "absent" instead of surfacing as errors.
func (r *TechResolver) ModulePresent(ctx context.Context, portName string) bool {
	if r.access == nil {
		return false
	}
	present, err := r.access.ReadPresence(ctx, portName)
	if err != nil {
		util.WithPort(portName).Debugf("Presence probe failed, treating as absent: %v", err)
		return false
	}
	return present
}
