package hw

import (
	"reflect"
	"testing"

	"github.com/crosspoint-network/crosspoint/pkg/port"
)

func translatePort() *port.LogicalPort {
	return &port.LogicalPort{
		ID:          5,
		Name:        "eth1/5",
		Admin:       port.AdminEnabled,
		Speed:       port.SpeedHundredG,
		FEC:         port.FECOn,
		Loopback:    port.LoopbackMAC,
		Pause:       port.PauseConfig{Tx: true, Rx: false},
		IngressVlan: 2001,
		Queues:      []port.QueueConfig{{ID: 0, Name: "queue0", Weight: 1}},
	}
}

func TestTranslate(t *testing.T) {
	p := translatePort()
	lanes := []uint32{16, 17, 18, 19}

	attrs := Translate(p, TechOptical, lanes)

	if !reflect.DeepEqual(attrs.Lanes, lanes) {
		t.Errorf("Lanes = %v, want %v", attrs.Lanes, lanes)
	}
	if attrs.Speed != port.SpeedHundredG {
		t.Errorf("Speed = %v, want 100G", attrs.Speed)
	}
	if !attrs.AdminUp {
		t.Error("AdminUp = false for ENABLED port")
	}
	if attrs.FEC != FECRS {
		t.Errorf("FEC = %v, want RS", attrs.FEC)
	}
	if attrs.Loopback != port.LoopbackMAC {
		t.Errorf("Loopback = %v, want MAC", attrs.Loopback)
	}
	if attrs.Media != MediaFiber {
		t.Errorf("Media = %v, want FIBER", attrs.Media)
	}
	if attrs.FlowControl != FlowControlTxOnly {
		t.Errorf("FlowControl = %v, want TX_ONLY", attrs.FlowControl)
	}
	if attrs.IngressVlan != 2001 {
		t.Errorf("IngressVlan = %d, want 2001", attrs.IngressVlan)
	}
	if len(attrs.Queues) != 1 {
		t.Errorf("Queues = %v, want 1 entry", attrs.Queues)
	}
}

func TestTranslateFlowControl(t *testing.T) {
	cases := []struct {
		pause port.PauseConfig
		want  FlowControlMode
	}{
		{port.PauseConfig{}, FlowControlDisable},
		{port.PauseConfig{Tx: true}, FlowControlTxOnly},
		{port.PauseConfig{Rx: true}, FlowControlRxOnly},
		{port.PauseConfig{Tx: true, Rx: true}, FlowControlBoth},
	}
	for _, tc := range cases {
		p := translatePort()
		p.Pause = tc.pause
		if got := Translate(p, TechUnknown, nil).FlowControl; got != tc.want {
			t.Errorf("pause %+v -> %s, want %s", tc.pause, got, tc.want)
		}
	}
}

// Translation must be deterministic: same inputs, same attributes.
func TestTranslateDeterministic(t *testing.T) {
	p := translatePort()
	lanes := []uint32{16, 17, 18, 19}
	a := Translate(p, TechCopper, lanes)
	b := Translate(p, TechCopper, lanes)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("translation not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestTranslateDisabledAndDefaults(t *testing.T) {
	p := translatePort()
	p.Admin = port.AdminDisabled
	p.Speed = port.SpeedDefault
	p.FEC = port.FECOff

	attrs := Translate(p, TechUnknown, nil)
	if attrs.AdminUp {
		t.Error("AdminUp = true for DISABLED port")
	}
	// DEFAULT passes through; the backend resolves it to the lanes' max.
	if attrs.Speed != port.SpeedDefault {
		t.Errorf("Speed = %v, want DEFAULT passthrough", attrs.Speed)
	}
	if attrs.FEC != FECNone {
		t.Errorf("FEC = %v, want NONE", attrs.FEC)
	}
	if attrs.Media != MediaUnknown {
		t.Errorf("Media = %v, want UNKNOWN", attrs.Media)
	}
}
