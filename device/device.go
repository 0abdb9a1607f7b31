package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/dvbtuner/autotune"
	"github.com/jrwynneiii/dvbtuner/backend"
	"github.com/jrwynneiii/dvbtuner/config"
	"github.com/jrwynneiii/dvbtuner/demux"
	"github.com/jrwynneiii/dvbtuner/diseqc"
	"github.com/jrwynneiii/dvbtuner/transponder"
)

var (
	ErrAutoTuneUnsupported = errors.New("automatic tuning is only supported for DVB-T")
	ErrNotReady            = errors.New("device not ready")
	ErrNoTransponder       = errors.New("no transponder to tune to")
)

type State int32

const (
	NotReady State = iota
	Idle
	RotorMoving
	Tuning
	TuningFailed
	Tuned
)

var stateNames = [...]string{"NotReady", "Idle", "RotorMoving", "Tuning", "TuningFailed", "Tuned"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

// Device drives one backend through tuning and owns the PID filters and the
// capture pipeline fed by it.
//
// Control operations (Tune, AutoTune, Release, Attach, Detach) and the lock
// polls are serialised. State change listeners run synchronously inside
// them: a listener may query the device (State, Progress, AutoTransponder,
// the signal and filter queries) but must not call a control operation or
// OnStateChange.
type Device struct {
	site         config.SiteConf
	clock        Clock
	logger       *log.Logger
	pollInterval time.Duration
	settleDelay  time.Duration
	rotorTimeout time.Duration
	signalFloor  int

	registry *demux.Registry
	pipeline *demux.Pipeline
	stop     context.CancelFunc

	// bmu guards backend for the query pass-throughs; control operations
	// hold mu as well when they swap it.
	bmu     sync.RWMutex
	backend backend.Device

	state atomic.Int32

	// Published for the lock-free queries.
	timeout   atomic.Int64
	remaining atomic.Int64
	found     atomic.Pointer[transponder.Terrestrial]

	mu        sync.Mutex
	listeners []func()
	timer     Timer
	token     uint64
	auto      bool
	search    *autotune.Search
}

// New returns an Idle device driving b.
func New(b backend.Device, site config.SiteConf, opts ...Option) *Device {
	d := NewDetached(site, opts...)
	d.Attach(b)
	return d
}

// NewDetached returns a device without hardware, in NotReady until Attach.
func NewDetached(site config.SiteConf, opts ...Option) *Device {
	d := &Device{
		site:         site,
		clock:        SystemClock,
		logger:       log.Default(),
		pollInterval: config.DefaultPollIntervalMs * time.Millisecond,
		settleDelay:  config.DefaultSettleDelayMs * time.Millisecond,
		rotorTimeout: config.DefaultRotorTimeoutMs * time.Millisecond,
		signalFloor:  config.DefaultSignalFloor,
	}
	if d.site.TimeoutMs <= 0 {
		d.site.TimeoutMs = config.DefaultTimeoutMs
	}
	for _, opt := range opts {
		opt(d)
	}

	d.registry = demux.NewRegistry(nil, demux.WithRegistryLogger(d.logger))
	d.pipeline = demux.NewPipeline(d.registry, demux.WithLogger(d.logger))
	ctx, cancel := context.WithCancel(context.Background())
	d.stop = cancel
	go d.pipeline.Run(ctx)

	d.state.Store(int32(NotReady))
	return d
}

func (d *Device) State() State {
	return State(d.state.Load())
}

// OnStateChange registers f to be called after every state transition.
func (d *Device) OnStateChange(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, f)
}

func (d *Device) setState(s State) {
	old := State(d.state.Swap(int32(s)))
	d.logger.Debugf("Device state %s -> %s", old, s)
	for _, f := range d.listeners {
		f()
	}
}

// Attach connects the device to b (a hotplugged frontend) and moves it to
// Idle. A previously attached backend is detached first.
func (d *Device) Attach(b backend.Device) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.backend != nil {
		d.detach()
	}

	b.SetBuffer(d.pipeline)
	d.bmu.Lock()
	d.backend = b
	d.bmu.Unlock()
	d.registry.SetController(b)

	d.logger.Infof("Attached %s (%s)", b.FrontendName(), b.DeviceID())
	d.setState(Idle)
}

// Detach releases the backend and disconnects it. PID filters stay
// registered and are restored on the next Attach.
func (d *Device) Detach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.backend == nil {
		return
	}
	d.detach()
}

func (d *Device) detach() {
	d.release()
	b := d.backend
	d.registry.SetController(nil)
	b.SetBuffer(nil)
	d.bmu.Lock()
	d.backend = nil
	d.bmu.Unlock()

	d.logger.Infof("Detached %s", b.DeviceID())
	d.setState(NotReady)
}

func (d *Device) attached() backend.Device {
	d.bmu.RLock()
	defer d.bmu.RUnlock()
	return d.backend
}

func (d *Device) Acquire() error {
	b := d.attached()
	if b == nil {
		return ErrNotReady
	}
	if err := b.Acquire(); err != nil {
		return fmt.Errorf("could not acquire %s: %w", b.DeviceID(), err)
	}
	return nil
}

// Tune starts tuning to t and ends any automatic search. The outcome is
// reported through the state: Tuning or RotorMoving, then Tuned or
// TuningFailed.
func (d *Device) Tune(t transponder.Transponder) error {
	if t == nil {
		d.logger.Warn("Tune called without a transponder")
		return ErrNoTransponder
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.backend == nil {
		d.logger.Warn("Tune called on a device that is not ready")
		return ErrNotReady
	}
	d.auto = false
	d.tune(t)
	return nil
}

// AutoTune tunes to a DVB-T transponder, trying every combination of the
// parameters the backend cannot detect itself until one locks.
func (d *Device) AutoTune(t transponder.Transponder) error {
	terrestrial, ok := t.(transponder.Terrestrial)
	if !ok {
		d.logger.Warn("Can't handle automatic tuning of anything but DVB-T")
		return ErrAutoTuneUnsupported
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.backend == nil {
		d.logger.Warn("AutoTune called on a device that is not ready")
		return ErrNotReady
	}

	d.search = autotune.New(terrestrial, d.backend.Capabilities(), autotune.WithLogger(d.logger))
	d.auto = true
	d.logger.Debugf("Searching %d parameter combinations", d.search.Combinations())
	d.tuneSearch()
	return nil
}

// AutoTransponder returns the current combination of the last automatic
// search: the one that locked once the device reached Tuned.
func (d *Device) AutoTransponder() (transponder.Terrestrial, bool) {
	t := d.found.Load()
	if t == nil {
		return transponder.Terrestrial{}, false
	}
	return *t, true
}

// tuneSearch publishes the current search combination and tunes to it.
func (d *Device) tuneSearch() {
	t := d.search.Transponder()
	d.found.Store(&t)
	d.tune(t)
}

func (d *Device) tune(t transponder.Transponder) {
	d.stopPolling()

	satellite, ok := t.(transponder.Satellite)
	if !ok {
		if err := d.backend.Tune(t); err != nil {
			d.logger.Warnf("Tuning to %s failed: %v", t, err)
			d.setState(TuningFailed)
			return
		}
		d.startPolling(Tuning, d.site.Timeout())
		return
	}

	plan := diseqc.NewPlan(d.site, satellite)
	if plan.MovesRotor && d.site.Configuration == config.UsalsRotor {
		if plan.PositionErr != nil {
			d.logger.Warnf("%v from %q, assuming 0", plan.PositionErr, d.site.ScanSource)
		}
		d.logger.Debugf("USALS: position %.1f azimuth %.2f", plan.Position, plan.Azimuth)
	}

	d.warn(d.backend.SetTone(backend.ToneOff), "Could not switch tone off")
	d.warn(d.backend.SetVoltage(plan.Voltage), "Could not set voltage")
	d.clock.Sleep(d.settleDelay)

	for _, cmd := range plan.Commands {
		if cmd.IsBurst() {
			d.warn(d.backend.SendBurst(cmd.Burst), "Could not send tone burst")
		} else {
			d.warn(d.backend.SendMessage(cmd.Message), "Could not send DiSEqC message")
		}
		d.logger.Debugf("Sent %s", cmd)
		d.clock.Sleep(d.settleDelay)
	}

	d.warn(d.backend.SetTone(plan.Tone()), "Could not set tone")

	intermediate := plan.Transponder(satellite)
	if err := d.backend.Tune(intermediate); err != nil {
		d.logger.Warnf("Tuning to %s failed: %v", intermediate, err)
		d.setState(TuningFailed)
		return
	}

	if plan.MovesRotor {
		d.startPolling(RotorMoving, d.rotorTimeout)
	} else {
		d.startPolling(Tuning, d.site.Timeout())
	}
}

func (d *Device) warn(err error, msg string) {
	if err != nil {
		d.logger.Warnf("%s: %v", msg, err)
	}
}

func (d *Device) startPolling(s State, timeout time.Duration) {
	d.timeout.Store(int64(timeout))
	d.remaining.Store(int64(timeout))
	d.setState(s)
	d.schedulePoll()
}

func (d *Device) schedulePoll() {
	token := d.token
	d.timer = d.clock.AfterFunc(d.pollInterval, func() {
		d.poll(token)
	})
}

// stopPolling makes every poll already scheduled a no-op.
func (d *Device) stopPolling() {
	d.token++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Device) poll(token uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if token != d.token || d.backend == nil {
		return
	}
	d.timer = nil

	if d.backend.IsTuned() {
		d.logger.Debug("Tuning succeeded")
		d.setState(Tuned)
		return
	}

	if d.remaining.Add(-int64(d.pollInterval)) > 0 {
		d.schedulePoll()
		return
	}

	if !d.auto {
		d.logger.Warn("Tuning failed")
		d.setState(TuningFailed)
		return
	}

	if level, ok := d.backend.Signal(); ok && level < d.signalFloor {
		d.logger.Warnf("Tuning failed, signal too weak (%d)", level)
		d.setState(TuningFailed)
		return
	}

	if !d.search.Next() {
		d.logger.Warn("Tuning failed, no parameter combination locked")
		d.setState(TuningFailed)
		return
	}

	// silent: the next tune reports Tuning right away
	d.state.Store(int32(TuningFailed))
	d.tuneSearch()
}

// Release stops tuning and releases the hardware. It returns once no poll
// can act on the device anymore.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release()
}

func (d *Device) release() {
	switch d.State() {
	case NotReady, Idle:
		return
	}
	d.stopPolling()
	d.backend.Release()
	d.auto = false
	d.setState(Idle)
}

// Close releases the device, drops every PID filter and stops packet
// dispatch.
func (d *Device) Close() {
	d.Release()
	d.registry.RemoveAll()
	d.stop()
}

// Progress is the elapsed share of the current lock timeout, from 0 to 1.
func (d *Device) Progress() float64 {
	switch d.State() {
	case Tuned:
		return 1
	case Tuning, RotorMoving:
	default:
		return 0
	}
	timeout, remaining := d.timeout.Load(), d.remaining.Load()
	if timeout <= 0 {
		return 0
	}
	return min(max(float64(timeout-remaining)/float64(timeout), 0), 1)
}

func (d *Device) measurable() bool {
	switch d.State() {
	case Tuning, RotorMoving, Tuned:
		return true
	}
	return false
}

// Signal is the signal strength from 0 to 100; ok is false when unknown.
func (d *Device) Signal() (level int, ok bool) {
	b := d.attached()
	if b == nil || !d.measurable() {
		return 0, false
	}
	return b.Signal()
}

// SNR is the signal to noise ratio from 0 to 100; ok is false when unknown.
func (d *Device) SNR() (level int, ok bool) {
	b := d.attached()
	if b == nil || !d.measurable() {
		return 0, false
	}
	return b.SNR()
}

func (d *Device) IsTuned() bool {
	b := d.attached()
	if b == nil || !d.measurable() {
		return false
	}
	return b.IsTuned()
}

func (d *Device) DeviceID() string {
	if b := d.attached(); b != nil {
		return b.DeviceID()
	}
	return ""
}

func (d *Device) FrontendName() string {
	if b := d.attached(); b != nil {
		return b.FrontendName()
	}
	return ""
}

func (d *Device) TransmissionTypes() transponder.TransmissionType {
	if b := d.attached(); b != nil {
		return b.TransmissionTypes()
	}
	return 0
}

// AddPidFilter registers f for the packets of pid.
func (d *Device) AddPidFilter(pid int, f demux.Filter) error {
	return d.registry.Add(pid, f)
}

func (d *Device) RemovePidFilter(pid int, f demux.Filter) error {
	return d.registry.Remove(pid, f)
}

func (d *Device) PIDs() []int {
	return d.registry.PIDs()
}

func (d *Device) Stats() demux.Stats {
	return d.pipeline.Stats()
}
