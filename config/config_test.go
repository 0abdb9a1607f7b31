package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const siteHCL = `
site {
  low_band_frequency  = 9750000
  switch_frequency    = 11700000
  high_band_frequency = 10600000
  lnb_number          = 1
  configuration       = "usals"
  scan_source         = "Astra-19.2E"
  latitude            = 48.1
  longitude           = 11.6
}

device {
  rotor_timeout_ms = 20000
}
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.hcl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	conf, err := Load(writeConfig(t, siteHCL))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if conf.Site.LowBandFrequency != 9750000 {
		t.Errorf("Expected low band 9750000, got %d", conf.Site.LowBandFrequency)
	}
	if conf.Site.SwitchFrequency != 11700000 {
		t.Errorf("Expected switch 11700000, got %d", conf.Site.SwitchFrequency)
	}
	if conf.Site.Configuration != UsalsRotor {
		t.Errorf("Expected usals, got %q", conf.Site.Configuration)
	}
	if conf.Site.ScanSource != "Astra-19.2E" {
		t.Errorf("Expected Astra-19.2E, got %q", conf.Site.ScanSource)
	}
	if conf.Site.Latitude != 48.1 || conf.Site.Longitude != 11.6 {
		t.Errorf("Expected 48.1/11.6, got %v/%v", conf.Site.Latitude, conf.Site.Longitude)
	}
	if conf.Device.RotorTimeout() != 20*time.Second {
		t.Errorf("Expected rotor timeout 20s, got %v", conf.Device.RotorTimeout())
	}

	// untouched values fall back to defaults
	if conf.Site.Timeout() != DefaultTimeoutMs*time.Millisecond {
		t.Errorf("Expected default timeout, got %v", conf.Site.Timeout())
	}
	if conf.Device.PollInterval() != 100*time.Millisecond {
		t.Errorf("Expected 100ms poll interval, got %v", conf.Device.PollInterval())
	}
	if conf.Device.SignalFloor != 15 {
		t.Errorf("Expected signal floor 15, got %d", conf.Device.SignalFloor)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("DVBTUNER_SITE_TIMEOUT_MS", "2000")
	t.Setenv("DVBTUNER_DEVICE_SIGNAL_FLOOR", "20")

	conf, err := Load(writeConfig(t, siteHCL))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if conf.Site.TimeoutMs != 2000 {
		t.Errorf("Expected timeout 2000 from env, got %d", conf.Site.TimeoutMs)
	}
	if conf.Device.SignalFloor != 20 {
		t.Errorf("Expected signal floor 20 from env, got %d", conf.Device.SignalFloor)
	}
	if conf.Site.LowBandFrequency != 9750000 {
		t.Errorf("Expected file value to survive, got %d", conf.Site.LowBandFrequency)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	conf, err := Load(filepath.Join(t.TempDir(), "missing.hcl"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if conf.Site.Configuration != DiseqcSwitch {
		t.Errorf("Expected default switch configuration, got %q", conf.Site.Configuration)
	}
	if conf.Device.RotorTimeoutMs != DefaultRotorTimeoutMs {
		t.Errorf("Expected default rotor timeout, got %d", conf.Device.RotorTimeoutMs)
	}
}
