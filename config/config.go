package config

import (
	"time"
)

type Positioning string

const (
	DiseqcSwitch   Positioning = "switch"
	UsalsRotor     Positioning = "usals"
	PositionsRotor Positioning = "positions"
)

// SiteConf describes the antenna installation a device is wired to.
// LO and switch frequencies are in kHz, a value of 0 means "not used".
type SiteConf struct {
	LowBandFrequency  int         `koanf:"low_band_frequency"`
	SwitchFrequency   int         `koanf:"switch_frequency"`
	HighBandFrequency int         `koanf:"high_band_frequency"`
	LnbNumber         int         `koanf:"lnb_number"`
	Configuration     Positioning `koanf:"configuration"`
	ScanSource        string      `koanf:"scan_source"`
	Latitude          float64     `koanf:"latitude"`
	Longitude         float64     `koanf:"longitude"`
	TimeoutMs         int         `koanf:"timeout_ms"`
}

func (s SiteConf) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

type DeviceConf struct {
	PollIntervalMs int `koanf:"poll_interval_ms"`
	SettleDelayMs  int `koanf:"settle_delay_ms"`
	RotorTimeoutMs int `koanf:"rotor_timeout_ms"`
	SignalFloor    int `koanf:"signal_floor"`
}

func (d DeviceConf) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalMs) * time.Millisecond
}

func (d DeviceConf) SettleDelay() time.Duration {
	return time.Duration(d.SettleDelayMs) * time.Millisecond
}

func (d DeviceConf) RotorTimeout() time.Duration {
	return time.Duration(d.RotorTimeoutMs) * time.Millisecond
}

type TuiConf struct {
	RefreshMs       int  `koanf:"refresh_ms"`
	EnableLogOutput bool `koanf:"enable_log_output"`
}

type Conf struct {
	Site   SiteConf   `koanf:"site"`
	Device DeviceConf `koanf:"device"`
	Tui    TuiConf    `koanf:"tui"`
}

const (
	DefaultTimeoutMs      = 1500
	DefaultPollIntervalMs = 100
	DefaultSettleDelayMs  = 15
	DefaultRotorTimeoutMs = 15000
	DefaultSignalFloor    = 15
	DefaultRefreshMs      = 500
)

// ApplyDefaults fills every unset timing value.
func (c *Conf) ApplyDefaults() {
	if c.Site.Configuration == "" {
		c.Site.Configuration = DiseqcSwitch
	}
	if c.Site.TimeoutMs <= 0 {
		c.Site.TimeoutMs = DefaultTimeoutMs
	}
	if c.Device.PollIntervalMs <= 0 {
		c.Device.PollIntervalMs = DefaultPollIntervalMs
	}
	if c.Device.SettleDelayMs <= 0 {
		c.Device.SettleDelayMs = DefaultSettleDelayMs
	}
	if c.Device.RotorTimeoutMs <= 0 {
		c.Device.RotorTimeoutMs = DefaultRotorTimeoutMs
	}
	if c.Device.SignalFloor <= 0 {
		c.Device.SignalFloor = DefaultSignalFloor
	}
	if c.Tui.RefreshMs <= 0 {
		c.Tui.RefreshMs = DefaultRefreshMs
	}
}
