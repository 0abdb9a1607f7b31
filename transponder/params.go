package transponder

import (
	"fmt"
	"strings"
)

// The zero value of every parameter below is its "auto" setting, so a
// transponder decoded from a sparse description asks the backend to detect
// whatever was left out.

type Modulation uint8

const (
	ModulationAuto Modulation = iota
	Qpsk
	Qam16
	Qam32
	Qam64
	Qam128
	Qam256
	Vsb8
	Vsb16
)

var modulationNames = []string{"AUTO", "QPSK", "QAM16", "QAM32", "QAM64", "QAM128", "QAM256", "8VSB", "16VSB"}

func (m Modulation) String() string { return name(modulationNames, int(m)) }

func (m Modulation) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Modulation) UnmarshalText(text []byte) error {
	return parse(modulationNames, "modulation", text, func(i int) { *m = Modulation(i) })
}

type FecRate uint8

const (
	FecAuto FecRate = iota
	FecNone
	Fec1_2
	Fec2_3
	Fec3_4
	Fec4_5
	Fec5_6
	Fec6_7
	Fec7_8
	Fec8_9
)

var fecNames = []string{"AUTO", "NONE", "1/2", "2/3", "3/4", "4/5", "5/6", "6/7", "7/8", "8/9"}

func (f FecRate) String() string { return name(fecNames, int(f)) }

func (f FecRate) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FecRate) UnmarshalText(text []byte) error {
	return parse(fecNames, "fec rate", text, func(i int) { *f = FecRate(i) })
}

type GuardInterval uint8

const (
	GuardIntervalAuto GuardInterval = iota
	GuardInterval1_4
	GuardInterval1_8
	GuardInterval1_16
	GuardInterval1_32
)

var guardNames = []string{"AUTO", "1/4", "1/8", "1/16", "1/32"}

func (g GuardInterval) String() string { return name(guardNames, int(g)) }

func (g GuardInterval) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

func (g *GuardInterval) UnmarshalText(text []byte) error {
	return parse(guardNames, "guard interval", text, func(i int) { *g = GuardInterval(i) })
}

type TransmissionMode uint8

const (
	TransmissionModeAuto TransmissionMode = iota
	TransmissionMode2k
	TransmissionMode8k
)

var modeNames = []string{"AUTO", "2K", "8K"}

func (t TransmissionMode) String() string { return name(modeNames, int(t)) }

func (t TransmissionMode) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TransmissionMode) UnmarshalText(text []byte) error {
	return parse(modeNames, "transmission mode", text, func(i int) { *t = TransmissionMode(i) })
}

type Bandwidth uint8

const (
	BandwidthAuto Bandwidth = iota
	Bandwidth6MHz
	Bandwidth7MHz
	Bandwidth8MHz
)

var bandwidthNames = []string{"AUTO", "6MHZ", "7MHZ", "8MHZ"}

func (b Bandwidth) String() string { return name(bandwidthNames, int(b)) }

func (b Bandwidth) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Bandwidth) UnmarshalText(text []byte) error {
	return parse(bandwidthNames, "bandwidth", text, func(i int) { *b = Bandwidth(i) })
}

type Hierarchy uint8

const (
	HierarchyAuto Hierarchy = iota
	HierarchyNone
	Hierarchy1
	Hierarchy2
	Hierarchy4
)

var hierarchyNames = []string{"AUTO", "NONE", "1", "2", "4"}

func (h Hierarchy) String() string { return name(hierarchyNames, int(h)) }

func (h Hierarchy) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hierarchy) UnmarshalText(text []byte) error {
	return parse(hierarchyNames, "hierarchy", text, func(i int) { *h = Hierarchy(i) })
}

// Polarization has no auto setting, horizontal is the zero value.
type Polarization uint8

const (
	Horizontal Polarization = iota
	Vertical
	CircularLeft
	CircularRight
)

var polarizationNames = []string{"H", "V", "L", "R"}

func (p Polarization) String() string { return name(polarizationNames, int(p)) }

func (p Polarization) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Polarization) UnmarshalText(text []byte) error {
	return parse(polarizationNames, "polarization", text, func(i int) { *p = Polarization(i) })
}

func name(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("INVALID(%d)", i)
	}
	return names[i]
}

func parse(names []string, what string, text []byte, set func(int)) error {
	s := strings.ToUpper(strings.TrimSpace(string(text)))
	for i, n := range names {
		if n == s {
			set(i)
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q", what, string(text))
}
