package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/dvbtuner/backend"
	"github.com/jrwynneiii/dvbtuner/config"
	"github.com/jrwynneiii/dvbtuner/demux"
	"github.com/jrwynneiii/dvbtuner/device"
	"github.com/jrwynneiii/dvbtuner/diseqc"
	"github.com/jrwynneiii/dvbtuner/transponder"
	"github.com/jrwynneiii/dvbtuner/tui"
	"github.com/jrwynneiii/dvbtuner/virtual"
	"gonum.org/v1/gonum/stat"
)

var cli struct {
	Verbose bool   `help:"Prints debug output by default"`
	Profile bool   `help:"Output a pprof profile"`
	Config  string `help:"Config file to use instead of the default search paths" type:"existingfile"`
	Probe   struct {
		Source string `help:"Transport stream file replayed by the virtual frontend" type:"existingfile"`
	} `cmd:"" help:"Show the frontend and what it can do"`
	Tune struct {
		Transponder string        `arg:"" help:"YAML transponder description" type:"existingfile"`
		Auto        bool          `help:"Search the DVB-T parameters the frontend cannot detect"`
		Pid         []int         `help:"PIDs to capture" default:"0"`
		Source      string        `help:"Transport stream file replayed by the virtual frontend" type:"existingfile"`
		Duration    time.Duration `help:"How long to capture once tuned" default:"10s"`
		Tui         bool          `help:"Show the monitor while capturing"`
	} `cmd:"" help:"Tune, then count the packets of the requested PIDs"`
	Azimuth struct {
		Source string `help:"Satellite source name ending in the orbital position, e.g. Astra-19.2E (defaults to site.scan_source)"`
	} `cmd:"" help:"Print the USALS rotor azimuth for the configured site"`
}

func newFrontend(source string) (*virtual.Tuner, func(), error) {
	if source == "" {
		return virtual.New(), func() {}, nil
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open transport stream: %w", err)
	}
	return virtual.New(virtual.WithSource(f)), func() { f.Close() }, nil
}

func probe(conf *config.Conf) error {
	frontend, closeFn, err := newFrontend(cli.Probe.Source)
	if err != nil {
		return err
	}
	defer closeFn()

	dev := device.New(frontend, conf.Site, device.WithConf(conf.Device))
	defer dev.Close()

	log.Infof("Device ID:          %s", dev.DeviceID())
	log.Infof("Frontend:           %s", dev.FrontendName())
	log.Infof("Transmission types: %s", dev.TransmissionTypes())
	caps := frontend.Capabilities()
	log.Infof("DVB-T auto: modulation=%v fec=%v mode=%v guard=%v",
		caps.Has(backend.DvbTModulationAuto), caps.Has(backend.DvbTFecAuto),
		caps.Has(backend.DvbTTransmissionModeAuto), caps.Has(backend.DvbTGuardIntervalAuto))
	log.Infof("State:              %s", dev.State())
	return nil
}

func tune(ctx context.Context, conf *config.Conf) error {
	f, err := os.Open(cli.Tune.Transponder)
	if err != nil {
		return err
	}
	t, err := transponder.Decode(f)
	f.Close()
	if err != nil {
		return err
	}
	log.Infof("Transponder: %s", t)

	frontend, closeFn, err := newFrontend(cli.Tune.Source)
	if err != nil {
		return err
	}
	defer closeFn()

	dev := device.New(frontend, conf.Site,
		device.WithConf(conf.Device),
		device.WithLogger(log.WithPrefix(frontend.DeviceID())))
	defer dev.Close()

	outcome := make(chan device.State, 1)
	dev.OnStateChange(func() {
		switch s := dev.State(); s {
		case device.Tuned, device.TuningFailed:
			select {
			case outcome <- s:
			default:
			}
		}
	})

	counter := &demux.Counter{}
	for _, pid := range cli.Tune.Pid {
		if err := dev.AddPidFilter(pid, counter); err != nil {
			return err
		}
	}

	if err := dev.Acquire(); err != nil {
		return err
	}
	if cli.Tune.Auto {
		err = dev.AutoTune(t)
	} else {
		err = dev.Tune(t)
	}
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case s := <-outcome:
		if s != device.Tuned {
			return fmt.Errorf("could not tune to %s", t)
		}
	}
	if found, ok := dev.AutoTransponder(); ok && cli.Tune.Auto {
		log.Infof("Locked on %s", found)
	} else {
		log.Info("Locked")
	}

	ctx, cancel := context.WithTimeout(ctx, cli.Tune.Duration)
	defer cancel()

	if cli.Tune.Tui {
		tui.StartUI(ctx, dev, counter, conf.Tui)
		return nil
	}

	rates := sampleRates(ctx, dev)
	for _, pid := range dev.PIDs() {
		log.Infof("PID %#04x: %d packets", pid, counter.Count(pid))
	}
	if len(rates) > 0 {
		log.Infof("Average rate: %.0f packets/s", stat.Mean(rates, nil))
	}
	stats := dev.Stats()
	log.Infof("Dispatched %d packets, %d transport errors, %d capture blocks",
		stats.PacketsDispatched, stats.TransportErrors, stats.Blocks)
	return nil
}

// sampleRates records the dispatch rate every second until ctx is done.
func sampleRates(ctx context.Context, dev *device.Device) []float64 {
	var rates []float64
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	last := dev.Stats().PacketsDispatched
	for {
		select {
		case <-ctx.Done():
			return rates
		case <-ticker.C:
			now := dev.Stats().PacketsDispatched
			rates = append(rates, float64(now-last))
			last = now
		}
	}
}

func azimuth(conf *config.Conf) error {
	source := cli.Azimuth.Source
	if source == "" {
		source = conf.Site.ScanSource
	}
	position, err := diseqc.OrbitalPosition(source)
	if err != nil {
		return fmt.Errorf("%q: %w", source, err)
	}
	az := diseqc.Azimuth(conf.Site.Latitude, conf.Site.Longitude, position)
	fmt.Printf("Site:     %.4f, %.4f\n", conf.Site.Latitude, conf.Site.Longitude)
	fmt.Printf("Position: %.1f\n", position)
	fmt.Printf("Azimuth:  %.2f\n", az)
	fmt.Printf("USALS:    % X\n", diseqc.UsalsCommand(az))
	return nil
}
