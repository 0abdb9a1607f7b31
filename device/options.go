package device

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/dvbtuner/config"
)

type Option func(*Device)

func WithClock(c Clock) Option {
	return func(d *Device) {
		d.clock = c
	}
}

// WithPollInterval sets how often the lock status is checked while tuning.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Device) {
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}

// WithSettleDelay sets the pause after the voltage change and after every
// positioner command.
func WithSettleDelay(delay time.Duration) Option {
	return func(d *Device) {
		if delay >= 0 {
			d.settleDelay = delay
		}
	}
}

// WithRotorTimeout sets the lock timeout used when a tune moves the rotor.
func WithRotorTimeout(timeout time.Duration) Option {
	return func(d *Device) {
		if timeout > 0 {
			d.rotorTimeout = timeout
		}
	}
}

// WithSignalFloor sets the signal level under which an automatic search is
// abandoned instead of trying the next combination.
func WithSignalFloor(level int) Option {
	return func(d *Device) {
		d.signalFloor = level
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(d *Device) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithConf applies the timing values of a loaded device configuration.
func WithConf(conf config.DeviceConf) Option {
	return func(d *Device) {
		WithPollInterval(conf.PollInterval())(d)
		WithSettleDelay(conf.SettleDelay())(d)
		WithRotorTimeout(conf.RotorTimeout())(d)
		if conf.SignalFloor > 0 {
			d.signalFloor = conf.SignalFloor
		}
	}
}
