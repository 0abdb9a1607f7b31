package backend

import (
	"errors"

	"github.com/Comcast/gots/packet"
	"github.com/jrwynneiii/dvbtuner/transponder"
)

// ErrRejected is returned by backends refusing a tune request or a PID filter.
var ErrRejected = errors.New("rejected by backend")

// Capabilities lists the DVB-T parameters a backend can detect on its own.
type Capabilities uint8

const (
	DvbTModulationAuto Capabilities = 1 << iota
	DvbTFecAuto
	DvbTTransmissionModeAuto
	DvbTGuardIntervalAuto
)

func (c Capabilities) Has(other Capabilities) bool {
	return c&other == other
}

type Tone int

const (
	ToneOff Tone = iota
	ToneOn
)

func (t Tone) String() string {
	if t == ToneOn {
		return "on"
	}
	return "off"
}

type Voltage int

const (
	Voltage13V Voltage = iota
	Voltage18V
)

func (v Voltage) String() string {
	if v == Voltage18V {
		return "18V"
	}
	return "13V"
}

type Burst int

const (
	BurstMiniA Burst = iota
	BurstMiniB
)

func (b Burst) String() string {
	if b == BurstMiniB {
		return "B"
	}
	return "A"
}

// Buffer is where a backend delivers captured transport stream data. All of
// its methods may be called from the backend's own capture goroutine.
type Buffer interface {
	// Size is the capacity of the current block in bytes, a multiple of 188.
	Size() int
	// Reserve returns the block to fill.
	Reserve() []packet.Packet
	// Commit hands the first n packets of the reserved block over for dispatch.
	Commit(n int)
}

// Device is the contract a concrete DVB driver implements.
//
// Signal and SNR are scaled from 0 to 100; ok is false when the hardware
// cannot report a value. Both are only meaningful while tuning or tuned.
type Device interface {
	DeviceID() string
	FrontendName() string
	TransmissionTypes() transponder.TransmissionType
	Capabilities() Capabilities

	Acquire() error
	SetTone(tone Tone) error
	SetVoltage(voltage Voltage) error
	SendMessage(message []byte) error
	SendBurst(burst Burst) error
	Tune(t transponder.Transponder) error
	Signal() (level int, ok bool)
	SNR() (level int, ok bool)
	IsTuned() bool
	AddPID(pid int) error
	RemovePID(pid int)
	Release()

	SetBuffer(buf Buffer)
}
