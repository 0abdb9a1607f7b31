package diseqc

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/jrwynneiii/dvbtuner/backend"
	"github.com/jrwynneiii/dvbtuner/config"
	"github.com/jrwynneiii/dvbtuner/transponder"
	"gonum.org/v1/gonum/floats/scalar"
)

var universalLnb = config.SiteConf{
	LowBandFrequency:  9750000,
	SwitchFrequency:   11700000,
	HighBandFrequency: 10600000,
}

func TestIntermediateFrequencyDualLO(t *testing.T) {
	tests := []struct {
		name      string
		frequency int
		wantIF    int
		wantHigh  bool
	}{
		{"low band", 10714000, 964000, false},
		{"just below split", 11699999, 1949999, false},
		{"at split", 11700000, 1100000, true},
		{"high band", 12551500, 1951500, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, high := IntermediateFrequency(universalLnb, transponder.Satellite{Frequency: tt.frequency})
			if got != tt.wantIF {
				t.Errorf("Expected IF %d, got %d", tt.wantIF, got)
			}
			if high != tt.wantHigh {
				t.Errorf("Expected high band %v, got %v", tt.wantHigh, high)
			}
		})
	}
}

func TestIntermediateFrequencyIsAbsoluteDifferenceAcrossBand(t *testing.T) {
	for f := 10700000; f <= 12750000; f += 12500 {
		s := transponder.Satellite{Frequency: f}
		got, high := IntermediateFrequency(universalLnb, s)
		lo := universalLnb.LowBandFrequency
		if high {
			lo = universalLnb.HighBandFrequency
		}
		want := f - lo
		if want < 0 {
			want = -want
		}
		if got != want {
			t.Fatalf("%d: expected %d, got %d", f, want, got)
		}
		if high != (f >= universalLnb.SwitchFrequency) {
			t.Fatalf("%d: wrong band selection", f)
		}
	}
}

func TestIntermediateFrequencySingleLOByPolarization(t *testing.T) {
	site := config.SiteConf{LowBandFrequency: 10750000, HighBandFrequency: 11250000}

	h, high := IntermediateFrequency(site, transponder.Satellite{Frequency: 12000000, Polarization: transponder.CircularLeft})
	if h != 1250000 || high {
		t.Errorf("Expected 1250000 on low LO, got %d (high %v)", h, high)
	}
	v, high := IntermediateFrequency(site, transponder.Satellite{Frequency: 12000000, Polarization: transponder.Vertical})
	if v != 750000 || high {
		t.Errorf("Expected 750000 on high LO, got %d (high %v)", v, high)
	}
}

func TestIntermediateFrequencySingleLO(t *testing.T) {
	site := config.SiteConf{LowBandFrequency: 5150000}
	got, _ := IntermediateFrequency(site, transponder.Satellite{Frequency: 3800000})
	if got != 1350000 {
		t.Errorf("Expected C-band IF 1350000, got %d", got)
	}
}

func TestSwitchPlan(t *testing.T) {
	site := universalLnb
	site.Configuration = config.DiseqcSwitch
	site.LnbNumber = 3

	plan := NewPlan(site, transponder.Satellite{Frequency: 12000000, Polarization: transponder.Horizontal})

	if plan.Voltage != backend.Voltage18V {
		t.Errorf("Expected 18V, got %s", plan.Voltage)
	}
	if plan.Tone() != backend.ToneOn {
		t.Errorf("Expected tone on, got %s", plan.Tone())
	}
	if plan.MovesRotor {
		t.Error("Expected no rotor move")
	}
	if len(plan.Commands) != 2 {
		t.Fatalf("Expected 2 commands, got %d", len(plan.Commands))
	}
	want := []byte{0xe0, 0x10, 0x38, 0xf0 | 3<<2 | 2 | 1}
	if !bytes.Equal(plan.Commands[0].Message, want) {
		t.Errorf("Expected % X, got % X", want, plan.Commands[0].Message)
	}
	if !plan.Commands[1].IsBurst() || plan.Commands[1].Burst != backend.BurstMiniB {
		t.Errorf("Expected burst B for odd LNB, got %s", plan.Commands[1])
	}
}

func TestSwitchPlanEvenLnbVertical(t *testing.T) {
	site := universalLnb
	site.LnbNumber = 0

	plan := NewPlan(site, transponder.Satellite{Frequency: 11000000, Polarization: transponder.Vertical})
	if plan.Voltage != backend.Voltage13V {
		t.Errorf("Expected 13V, got %s", plan.Voltage)
	}
	if plan.Tone() != backend.ToneOff {
		t.Errorf("Expected tone off, got %s", plan.Tone())
	}
	if !bytes.Equal(plan.Commands[0].Message, []byte{0xe0, 0x10, 0x38, 0xf0}) {
		t.Errorf("Unexpected switch command % X", plan.Commands[0].Message)
	}
	if plan.Commands[1].Burst != backend.BurstMiniA {
		t.Errorf("Expected burst A, got %s", plan.Commands[1].Burst)
	}
}

func TestPositionsPlan(t *testing.T) {
	site := universalLnb
	site.Configuration = config.PositionsRotor
	site.LnbNumber = 5

	plan := NewPlan(site, transponder.Satellite{Frequency: 11000000})
	if !plan.MovesRotor {
		t.Error("Expected rotor move")
	}
	if len(plan.Commands) != 1 || !bytes.Equal(plan.Commands[0].Message, []byte{0xe0, 0x31, 0x6b, 5}) {
		t.Errorf("Unexpected commands %v", plan.Commands)
	}
}

func TestUsalsPlan(t *testing.T) {
	site := universalLnb
	site.Configuration = config.UsalsRotor
	site.ScanSource = "Astra-19.2E"
	site.Latitude = 48.1
	site.Longitude = 11.6

	plan := NewPlan(site, transponder.Satellite{Frequency: 11000000})
	if !plan.MovesRotor {
		t.Error("Expected rotor move")
	}
	msg := plan.Commands[0].Message
	if len(msg) != 5 || msg[0] != 0xe0 || msg[1] != 0x31 || msg[2] != 0x6e {
		t.Fatalf("Unexpected USALS command % X", msg)
	}
	value := uint16(msg[3])<<8 | uint16(msg[4])
	if value != EncodeAzimuth(Azimuth(48.1, 11.6, 19.2)) {
		t.Errorf("Encoded azimuth mismatch: %d", value)
	}
	if plan.PositionErr != nil || plan.Position != 19.2 {
		t.Errorf("Expected position 19.2, got %.1f %v", plan.Position, plan.PositionErr)
	}
}

func TestUsalsPlanMalformedSourceDefaultsToZero(t *testing.T) {
	site := universalLnb
	site.Configuration = config.UsalsRotor
	site.ScanSource = "Unknown"
	site.Latitude = 48.1
	site.Longitude = 11.6

	plan := NewPlan(site, transponder.Satellite{Frequency: 11000000})
	want := UsalsCommand(Azimuth(48.1, 11.6, 0))
	if !bytes.Equal(plan.Commands[0].Message, want) {
		t.Errorf("Expected % X, got % X", want, plan.Commands[0].Message)
	}
	if !errors.Is(plan.PositionErr, ErrOrbitalPosition) || plan.Position != 0 {
		t.Errorf("Expected position 0 with ErrOrbitalPosition, got %.1f %v", plan.Position, plan.PositionErr)
	}
}

func TestPlanKeepsCallerTransponder(t *testing.T) {
	orig := transponder.Satellite{Frequency: 12000000, SymbolRate: 27500000, FecRate: transponder.Fec3_4}
	plan := NewPlan(universalLnb, orig)
	copied := plan.Transponder(orig)

	if orig.Frequency != 12000000 {
		t.Errorf("Caller transponder was modified: %d", orig.Frequency)
	}
	if copied.Frequency != 1400000 || copied.SymbolRate != orig.SymbolRate || copied.FecRate != orig.FecRate {
		t.Errorf("Unexpected working copy %s", copied)
	}
}

func TestOrbitalPosition(t *testing.T) {
	tests := []struct {
		source  string
		want    float64
		wantErr bool
	}{
		{"19.2E", 19.2, false},
		{"Astra-19.2E", 19.2, false},
		{"Hispasat-30.0W", -30.0, false},
		{"Eutelsat-Hot-Bird-13.0E", 13.0, false},
		{"Astra", 0, true},
		{"Astra-xE", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := OrbitalPosition(tt.source)
		if tt.wantErr {
			if !errors.Is(err, ErrOrbitalPosition) {
				t.Errorf("%q: expected ErrOrbitalPosition, got %v", tt.source, err)
			}
		} else if err != nil {
			t.Errorf("%q: unexpected error %v", tt.source, err)
		}
		if got != tt.want {
			t.Errorf("%q: expected %v, got %v", tt.source, tt.want, got)
		}
	}
}

func TestAzimuthDirectlySouth(t *testing.T) {
	for _, lat := range []float64{10, 35.5, 48.1, 70} {
		got := Azimuth(lat, 11.6, 11.6)
		if !scalar.EqualWithinAbs(got, 180, 1e-4) {
			t.Errorf("lat %v: expected 180, got %v", lat, got)
		}
	}
}

func TestAzimuthRange(t *testing.T) {
	for lat := -89.0; lat <= 89.0; lat += 7.3 {
		for long := -180.0; long <= 180.0; long += 11.1 {
			for sat := -180.0; sat <= 180.0; sat += 13.7 {
				got := Azimuth(lat, long, sat)
				if math.IsNaN(got) || got < 0 || got >= 360 {
					t.Fatalf("Azimuth(%v, %v, %v) = %v out of range", lat, long, sat, got)
				}
			}
		}
	}
}

func TestAzimuthCornerCasesNeverNaN(t *testing.T) {
	// on the equator below the satellite the formula divides 0 by 0
	got := Azimuth(0, 0, 0)
	if math.IsNaN(got) {
		t.Fatal("Expected clamped result, got NaN")
	}
	if got != 0 {
		t.Errorf("Expected 0, got %v", got)
	}
}

func TestAzimuthSweepSide(t *testing.T) {
	// satellite east of the antenna: rotor turns east of south, below 180
	east := Azimuth(48.1, 11.6, 19.2)
	if east >= 180 {
		t.Errorf("Expected azimuth below 180 for eastern satellite, got %v", east)
	}
	// satellite west of the antenna
	west := Azimuth(48.1, 11.6, 5.0)
	if west <= 180 {
		t.Errorf("Expected azimuth above 180 for western satellite, got %v", west)
	}
}

func TestEncodeAzimuth(t *testing.T) {
	tests := []struct {
		azimuth float64
		want    uint16
	}{
		{0, 0},
		{180, 2880},
		{180.03, 2880},
		{180.04, 2881},
		{359.99, 0},
	}
	for _, tt := range tests {
		if got := EncodeAzimuth(tt.azimuth); got != tt.want {
			t.Errorf("EncodeAzimuth(%v): expected %d, got %d", tt.azimuth, tt.want, got)
		}
	}

	cmd := UsalsCommand(180)
	if !bytes.Equal(cmd, []byte{0xe0, 0x31, 0x6e, 0x0b, 0x40}) {
		t.Errorf("Unexpected USALS command % X", cmd)
	}
}
