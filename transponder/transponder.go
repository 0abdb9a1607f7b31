package transponder

import "fmt"

type TransmissionType uint8

// A backend reports the transmission types it supports as a set of these flags.
const (
	TypeCable       TransmissionType = 1 << 0
	TypeSatellite   TransmissionType = 1 << 1
	TypeTerrestrial TransmissionType = 1 << 2
	TypeAtsc        TransmissionType = 1 << 3
)

func (t TransmissionType) Has(other TransmissionType) bool {
	return t&other == other
}

func (t TransmissionType) String() string {
	var names []string
	if t&TypeCable != 0 {
		names = append(names, "DVB-C")
	}
	if t&TypeSatellite != 0 {
		names = append(names, "DVB-S")
	}
	if t&TypeTerrestrial != 0 {
		names = append(names, "DVB-T")
	}
	if t&TypeAtsc != 0 {
		names = append(names, "ATSC")
	}
	switch len(names) {
	case 0:
		return "none"
	case 1:
		return names[0]
	}
	return fmt.Sprintf("%v", names)
}

// Transponder describes the physical parameters of one broadcast channel.
// Implementations are plain values and are never modified once handed out.
type Transponder interface {
	TransmissionType() TransmissionType
	String() string
}

// Frequencies are in Hz for cable, terrestrial and ATSC, and in kHz for
// satellite, matching what LNB local oscillators are configured in.
type Cable struct {
	Frequency  int        `yaml:"frequency"`
	SymbolRate int        `yaml:"symbol_rate"`
	Modulation Modulation `yaml:"modulation"`
	FecRate    FecRate    `yaml:"fec_rate"`
}

func (Cable) TransmissionType() TransmissionType { return TypeCable }

func (c Cable) String() string {
	return fmt.Sprintf("C %d %d %s %s", c.Frequency, c.SymbolRate, c.FecRate, c.Modulation)
}

type Satellite struct {
	Polarization Polarization `yaml:"polarization"`
	Frequency    int          `yaml:"frequency"`
	SymbolRate   int          `yaml:"symbol_rate"`
	FecRate      FecRate      `yaml:"fec_rate"`
}

func (Satellite) TransmissionType() TransmissionType { return TypeSatellite }

func (s Satellite) String() string {
	return fmt.Sprintf("S %d %s %d %s", s.Frequency, s.Polarization, s.SymbolRate, s.FecRate)
}

// Horizontal reports whether the LNB must be driven as for horizontal
// polarization (circular left is received like horizontal).
func (s Satellite) Horizontal() bool {
	return s.Polarization == Horizontal || s.Polarization == CircularLeft
}

type Terrestrial struct {
	Frequency        int              `yaml:"frequency"`
	Bandwidth        Bandwidth        `yaml:"bandwidth"`
	Modulation       Modulation       `yaml:"modulation"`
	FecRateHigh      FecRate          `yaml:"fec_rate_high"`
	FecRateLow       FecRate          `yaml:"fec_rate_low"`
	TransmissionMode TransmissionMode `yaml:"transmission_mode"`
	GuardInterval    GuardInterval    `yaml:"guard_interval"`
	Hierarchy        Hierarchy        `yaml:"hierarchy"`
}

func (Terrestrial) TransmissionType() TransmissionType { return TypeTerrestrial }

func (t Terrestrial) String() string {
	return fmt.Sprintf("T %d %s %s %s %s %s %s %s", t.Frequency, t.Bandwidth, t.FecRateHigh, t.FecRateLow,
		t.Modulation, t.TransmissionMode, t.GuardInterval, t.Hierarchy)
}

type Atsc struct {
	Frequency  int        `yaml:"frequency"`
	Modulation Modulation `yaml:"modulation"`
}

func (Atsc) TransmissionType() TransmissionType { return TypeAtsc }

func (a Atsc) String() string {
	return fmt.Sprintf("A %d %s", a.Frequency, a.Modulation)
}
