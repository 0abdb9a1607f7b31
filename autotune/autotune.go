package autotune

import (
	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/dvbtuner/backend"
	"github.com/jrwynneiii/dvbtuner/transponder"
)

// Candidate orders, most likely first. A field wraps back to the first
// entry when it runs past the last one or holds a value not listed here.
var (
	FecRates          = []transponder.FecRate{transponder.Fec2_3, transponder.Fec3_4, transponder.Fec1_2, transponder.Fec5_6, transponder.Fec7_8}
	GuardIntervals    = []transponder.GuardInterval{transponder.GuardInterval1_8, transponder.GuardInterval1_32, transponder.GuardInterval1_4, transponder.GuardInterval1_16}
	Modulations       = []transponder.Modulation{transponder.Qam64, transponder.Qam16, transponder.Qpsk}
	TransmissionModes = []transponder.TransmissionMode{transponder.TransmissionMode8k, transponder.TransmissionMode2k}
)

// Search walks the DVB-T parameters a backend cannot detect itself, like an
// odometer: FEC turns fastest, transmission mode slowest.
type Search struct {
	caps        backend.Capabilities
	transponder transponder.Terrestrial
	logger      *log.Logger
}

type Option func(*Search)

func WithLogger(logger *log.Logger) Option {
	return func(s *Search) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New starts a search at the first candidate of every field the backend
// cannot resolve. Those fields are overwritten even if the caller set them,
// so that the walk always covers the whole space.
func New(t transponder.Terrestrial, caps backend.Capabilities, opts ...Option) *Search {
	if !caps.Has(backend.DvbTFecAuto) {
		t.FecRateHigh = FecRates[0]
	}
	if !caps.Has(backend.DvbTGuardIntervalAuto) {
		t.GuardInterval = GuardIntervals[0]
	}
	if !caps.Has(backend.DvbTModulationAuto) {
		t.Modulation = Modulations[0]
	}
	if !caps.Has(backend.DvbTTransmissionModeAuto) {
		t.TransmissionMode = TransmissionModes[0]
	}
	s := &Search{caps: caps, transponder: t, logger: log.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Search) Transponder() transponder.Terrestrial {
	return s.transponder
}

func (s *Search) Capabilities() backend.Capabilities {
	return s.caps
}

// Next moves to the following combination. It returns false once every
// combination has been tried; the transponder is then back at its start.
func (s *Search) Next() bool {
	carry := true

	if carry && !s.caps.Has(backend.DvbTFecAuto) {
		s.transponder.FecRateHigh, carry = advance(FecRates, s.transponder.FecRateHigh)
	}
	if carry && !s.caps.Has(backend.DvbTGuardIntervalAuto) {
		s.transponder.GuardInterval, carry = advance(GuardIntervals, s.transponder.GuardInterval)
	}
	if carry && !s.caps.Has(backend.DvbTModulationAuto) {
		s.transponder.Modulation, carry = advance(Modulations, s.transponder.Modulation)
	}
	if carry && !s.caps.Has(backend.DvbTTransmissionModeAuto) {
		s.transponder.TransmissionMode, carry = advance(TransmissionModes, s.transponder.TransmissionMode)
	}

	if carry {
		s.logger.Debug("Auto tune search exhausted")
		return false
	}
	s.logger.Debugf("Auto tune trying %s", s.transponder)
	return true
}

// Combinations is the number of distinct transponders the search visits.
func (s *Search) Combinations() int {
	n := 1
	if !s.caps.Has(backend.DvbTFecAuto) {
		n *= len(FecRates)
	}
	if !s.caps.Has(backend.DvbTGuardIntervalAuto) {
		n *= len(GuardIntervals)
	}
	if !s.caps.Has(backend.DvbTModulationAuto) {
		n *= len(Modulations)
	}
	if !s.caps.Has(backend.DvbTTransmissionModeAuto) {
		n *= len(TransmissionModes)
	}
	return n
}

// advance returns the successor of current in order and whether it wrapped.
func advance[T comparable](order []T, current T) (T, bool) {
	for i, v := range order {
		if v == current {
			if i+1 < len(order) {
				return order[i+1], false
			}
			break
		}
	}
	return order[0], true
}
