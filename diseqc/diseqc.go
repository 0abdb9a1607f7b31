package diseqc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jrwynneiii/dvbtuner/backend"
	"github.com/jrwynneiii/dvbtuner/config"
	"github.com/jrwynneiii/dvbtuner/transponder"
)

var ErrOrbitalPosition = errors.New("couldn't extract orbital position")

// Command is one step of a positioner sequence: either a raw DiSEqC message
// or, when Message is nil, a tone burst.
type Command struct {
	Message []byte
	Burst   backend.Burst
}

func (c Command) IsBurst() bool {
	return c.Message == nil
}

func (c Command) String() string {
	if c.IsBurst() {
		return "burst " + c.Burst.String()
	}
	return fmt.Sprintf("% X", c.Message)
}

// Plan is everything the device has to send for a satellite transponder.
// It carries no timing: the caller waits between consecutive commands.
type Plan struct {
	Voltage backend.Voltage
	// HighBand selects the 22kHz tone; only set for dual LO LNBs.
	HighBand bool
	// Frequency is the intermediate frequency the backend has to tune to.
	Frequency  int
	Commands   []Command
	MovesRotor bool

	// USALS only: the orbital position read from the scan source, the
	// resulting azimuth, and why the position could not be read.
	Position    float64
	Azimuth     float64
	PositionErr error
}

func (p Plan) Tone() backend.Tone {
	if p.HighBand {
		return backend.ToneOn
	}
	return backend.ToneOff
}

// Transponder returns the copy of t handed to the backend: identical except
// for the LO corrected frequency.
func (p Plan) Transponder(t transponder.Satellite) transponder.Satellite {
	t.Frequency = p.Frequency
	return t
}

// NewPlan computes voltage, band, intermediate frequency and the positioner
// commands for t on the given site.
func NewPlan(site config.SiteConf, t transponder.Satellite) Plan {
	horizontal := t.Horizontal()

	plan := Plan{Voltage: backend.Voltage13V}
	if horizontal {
		plan.Voltage = backend.Voltage18V
	}
	plan.Frequency, plan.HighBand = IntermediateFrequency(site, t)

	switch site.Configuration {
	case config.UsalsRotor:
		plan.Position, plan.PositionErr = OrbitalPosition(site.ScanSource)
		plan.Azimuth = Azimuth(site.Latitude, site.Longitude, plan.Position)
		plan.Commands = []Command{{Message: UsalsCommand(plan.Azimuth)}}
		plan.MovesRotor = true

	case config.PositionsRotor:
		plan.Commands = []Command{{Message: PositionsCommand(site.LnbNumber)}}
		plan.MovesRotor = true

	default:
		burst := backend.BurstMiniA
		if site.LnbNumber&0x1 != 0 {
			burst = backend.BurstMiniB
		}
		plan.Commands = []Command{
			{Message: SwitchCommand(site.LnbNumber, horizontal, plan.HighBand)},
			{Burst: burst},
		}
	}

	return plan
}

// IntermediateFrequency applies the LNB local oscillator selected by the
// site configuration:
//   - switch frequency set: dual LO, the band split picks low or high LO
//   - only high LO set: horizontal uses the low LO, vertical the high LO
//   - otherwise: single low LO
func IntermediateFrequency(site config.SiteConf, t transponder.Satellite) (frequency int, highBand bool) {
	switch {
	case site.SwitchFrequency != 0:
		if t.Frequency < site.SwitchFrequency {
			return abs(t.Frequency - site.LowBandFrequency), false
		}
		return abs(t.Frequency - site.HighBandFrequency), true
	case site.HighBandFrequency != 0:
		if t.Horizontal() {
			return abs(t.Frequency - site.LowBandFrequency), false
		}
		return abs(t.Frequency - site.HighBandFrequency), false
	}
	return abs(t.Frequency - site.LowBandFrequency), false
}

func SwitchCommand(lnb int, horizontal, highBand bool) []byte {
	cmd := []byte{0xe0, 0x10, 0x38, 0xf0 | byte(lnb<<2)}
	if horizontal {
		cmd[3] |= 2
	}
	if highBand {
		cmd[3] |= 1
	}
	return cmd
}

func UsalsCommand(azimuth float64) []byte {
	value := EncodeAzimuth(azimuth)
	return []byte{0xe0, 0x31, 0x6e, byte(value >> 8), byte(value & 0xff)}
}

func PositionsCommand(position int) []byte {
	return []byte{0xe0, 0x31, 0x6b, byte(position)}
}

// OrbitalPosition extracts the satellite longitude from the part of a source
// name after its last '-', e.g. "Astra-19.2E" or "Hispasat-30.0W".
// East is positive, west negative.
func OrbitalPosition(source string) (float64, error) {
	if idx := strings.LastIndex(source, "-"); idx >= 0 {
		source = source[idx+1:]
	}

	sign := 1.0
	switch {
	case strings.HasSuffix(source, "E"):
	case strings.HasSuffix(source, "W"):
		sign = -1.0
	default:
		return 0, ErrOrbitalPosition
	}

	position, err := strconv.ParseFloat(source[:len(source)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOrbitalPosition, err)
	}
	return sign * position, nil
}

// Azimuth returns the USALS rotor angle in degrees, in [0, 360), for an
// antenna at latitude/longitude pointing at a satellite at the given
// orbital longitude.
func Azimuth(latitude, longitude, satellite float64) float64 {
	longitudeDiff := longitude - satellite

	latRad := latitude * math.Pi / 180
	longDiffRad := longitudeDiff * math.Pi / 180
	temp := math.Cos(latRad) * math.Cos(longDiffRad)
	temp2 := -math.Sin(latRad) * math.Cos(longDiffRad) / math.Sqrt(1-temp*temp)

	switch {
	case math.IsNaN(temp2):
		temp2 = 1
	case temp2 < -1:
		temp2 = -1
	case temp2 > 1:
		temp2 = 1
	}

	azimuth := math.Acos(temp2) * 180 / math.Pi

	if (longitudeDiff > 0 && longitudeDiff < 180) || longitudeDiff < -180 {
		azimuth = 360 - azimuth
	}
	if azimuth >= 360 {
		azimuth -= 360
	}
	return azimuth
}

// EncodeAzimuth rounds to 16ths of a degree; a full circle wraps to 0.
func EncodeAzimuth(azimuth float64) uint16 {
	value := int(azimuth*16 + 0.5)
	if value >= 360*16 {
		value = 0
	}
	return uint16(value)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
