package transponder

import (
	"strings"
	"testing"
)

func TestParamsRoundTripThroughText(t *testing.T) {
	var fec FecRate
	if err := fec.UnmarshalText([]byte("3/4")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if fec != Fec3_4 {
		t.Errorf("Expected %s, got %s", Fec3_4, fec)
	}

	var mod Modulation
	if err := mod.UnmarshalText([]byte("qam64")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if mod != Qam64 {
		t.Errorf("Expected %s, got %s", Qam64, mod)
	}

	var gi GuardInterval
	if err := gi.UnmarshalText([]byte("1/9")); err == nil {
		t.Errorf("Expected error for unknown guard interval, got %s", gi)
	}
}

func TestZeroValuesAreAuto(t *testing.T) {
	var tr Terrestrial
	if tr.FecRateHigh != FecAuto || tr.GuardInterval != GuardIntervalAuto ||
		tr.Modulation != ModulationAuto || tr.TransmissionMode != TransmissionModeAuto {
		t.Errorf("Expected all auto parameters, got %s", tr)
	}
}

func TestSatelliteHorizontal(t *testing.T) {
	tests := []struct {
		pol  Polarization
		want bool
	}{
		{Horizontal, true},
		{CircularLeft, true},
		{Vertical, false},
		{CircularRight, false},
	}
	for _, tt := range tests {
		s := Satellite{Polarization: tt.pol}
		if got := s.Horizontal(); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.pol, tt.want, got)
		}
	}
}

func TestTransmissionTypeSet(t *testing.T) {
	set := TypeCable | TypeTerrestrial
	if !set.Has(TypeTerrestrial) {
		t.Error("Expected set to contain DVB-T")
	}
	if set.Has(TypeSatellite) {
		t.Error("Expected set not to contain DVB-S")
	}
	if got := TypeSatellite.String(); got != "DVB-S" {
		t.Errorf("Expected DVB-S, got %s", got)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Transponder
		wantErr bool
	}{
		{
			name: "terrestrial with partial parameters",
			input: `type: dvb-t
frequency: 634000000
bandwidth: 8MHz
fec_rate_high: 2/3
`,
			want: Terrestrial{Frequency: 634000000, Bandwidth: Bandwidth8MHz, FecRateHigh: Fec2_3},
		},
		{
			name: "satellite",
			input: `type: dvb-s
frequency: 11836000
polarization: h
symbol_rate: 27500000
fec_rate: 3/4
`,
			want: Satellite{Frequency: 11836000, Polarization: Horizontal, SymbolRate: 27500000, FecRate: Fec3_4},
		},
		{
			name:  "atsc",
			input: "type: atsc\nfrequency: 57000000\nmodulation: 8vsb\n",
			want:  Atsc{Frequency: 57000000, Modulation: Vsb8},
		},
		{
			name:    "unknown type",
			input:   "type: dab\nfrequency: 1\n",
			wantErr: true,
		},
		{
			name:    "bad parameter",
			input:   "type: dvb-c\nmodulation: qam1024\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(strings.NewReader(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
