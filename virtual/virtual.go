// Package virtual is an in-process backend. It tunes instantly, locks
// according to a predicate and replays a recorded transport stream.
package virtual

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/Comcast/gots/packet"
	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/dvbtuner/backend"
	"github.com/jrwynneiii/dvbtuner/transponder"
)

type Tuner struct {
	id            string
	name          string
	types         transponder.TransmissionType
	caps          backend.Capabilities
	locks         func(t transponder.Transponder) bool
	signal        int
	snr           int
	signalKnown   bool
	refused       map[int]bool
	source        io.ReadSeeker
	blockInterval time.Duration

	mu       sync.Mutex
	acquired bool
	tuned    transponder.Transponder
	pids     map[int]bool
	buf      backend.Buffer
	calls    []string
	stop     context.CancelFunc
	done     chan struct{}
}

type Option func(*Tuner)

func WithName(id, name string) Option {
	return func(v *Tuner) {
		v.id = id
		v.name = name
	}
}

func WithTransmissionTypes(types transponder.TransmissionType) Option {
	return func(v *Tuner) {
		v.types = types
	}
}

func WithCapabilities(caps backend.Capabilities) Option {
	return func(v *Tuner) {
		v.caps = caps
	}
}

// WithLock decides whether the tuner reports a lock for the last tuned
// transponder. It is called once per IsTuned.
func WithLock(locks func(t transponder.Transponder) bool) Option {
	return func(v *Tuner) {
		v.locks = locks
	}
}

func WithSignal(signal, snr int) Option {
	return func(v *Tuner) {
		v.signal = signal
		v.snr = snr
		v.signalKnown = true
	}
}

// WithoutSignal makes the tuner unable to report signal and SNR.
func WithoutSignal() Option {
	return func(v *Tuner) {
		v.signalKnown = false
	}
}

// WithRefusedPIDs makes AddPID fail for pids, like a frontend out of
// hardware filters.
func WithRefusedPIDs(pids ...int) Option {
	return func(v *Tuner) {
		for _, pid := range pids {
			v.refused[pid] = true
		}
	}
}

// WithSource replays src, in a loop, while the tuner is tuned. Only packets
// of added PIDs are delivered.
func WithSource(src io.ReadSeeker) Option {
	return func(v *Tuner) {
		v.source = src
	}
}

// WithBlockInterval sets the pause between two delivered blocks.
func WithBlockInterval(interval time.Duration) Option {
	return func(v *Tuner) {
		if interval > 0 {
			v.blockInterval = interval
		}
	}
}

// Always locks on anything.
func Always(transponder.Transponder) bool {
	return true
}

// Never locks.
func Never(transponder.Transponder) bool {
	return false
}

// LockAfter locks from the nth lock check after each tune.
func LockAfter(n int) func(transponder.Transponder) bool {
	var (
		last   transponder.Transponder
		checks int
	)
	return func(t transponder.Transponder) bool {
		if t != last {
			last = t
			checks = 0
		}
		checks++
		return checks >= n
	}
}

// LockOn locks only on terrestrial transponders matching want.
func LockOn(want func(t transponder.Terrestrial) bool) func(transponder.Transponder) bool {
	return func(t transponder.Transponder) bool {
		terrestrial, ok := t.(transponder.Terrestrial)
		return ok && want(terrestrial)
	}
}

func New(opts ...Option) *Tuner {
	v := &Tuner{
		id:            "virtual0",
		name:          "Virtual DVB Frontend",
		types:         transponder.TypeCable | transponder.TypeSatellite | transponder.TypeTerrestrial | transponder.TypeAtsc,
		locks:         Always,
		signal:        80,
		snr:           60,
		signalKnown:   true,
		refused:       map[int]bool{},
		blockInterval: 5 * time.Millisecond,
		pids:          map[int]bool{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Tuner) record(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, fmt.Sprintf(format, args...))
}

// Calls lists every tone, voltage, DiSEqC and tune request received so far.
func (v *Tuner) Calls() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.calls)
}

func (v *Tuner) DeviceID() string                                { return v.id }
func (v *Tuner) FrontendName() string                            { return v.name }
func (v *Tuner) TransmissionTypes() transponder.TransmissionType { return v.types }
func (v *Tuner) Capabilities() backend.Capabilities              { return v.caps }

func (v *Tuner) Acquire() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.acquired = true
	return nil
}

func (v *Tuner) SetTone(tone backend.Tone) error {
	v.record("tone %s", tone)
	return nil
}

func (v *Tuner) SetVoltage(voltage backend.Voltage) error {
	v.record("voltage %s", voltage)
	return nil
}

func (v *Tuner) SendMessage(message []byte) error {
	if len(message) < 3 || len(message) > 6 {
		return fmt.Errorf("invalid DiSEqC message length %d", len(message))
	}
	v.record("message % X", message)
	return nil
}

func (v *Tuner) SendBurst(burst backend.Burst) error {
	v.record("burst %s", burst)
	return nil
}

func (v *Tuner) Tune(t transponder.Transponder) error {
	if !v.types.Has(t.TransmissionType()) {
		return fmt.Errorf("%w: %s not supported", backend.ErrRejected, t.TransmissionType())
	}
	v.stopCapture()
	v.record("tune %s", t)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.tuned = t
	if v.source != nil {
		ctx, cancel := context.WithCancel(context.Background())
		v.stop = cancel
		v.done = make(chan struct{})
		go v.capture(ctx, v.done)
	}
	return nil
}

func (v *Tuner) Signal() (int, bool) {
	return v.signal, v.signalKnown
}

func (v *Tuner) SNR() (int, bool) {
	return v.snr, v.signalKnown
}

func (v *Tuner) IsTuned() bool {
	v.mu.Lock()
	tuned := v.tuned
	v.mu.Unlock()
	return tuned != nil && v.locks(tuned)
}

func (v *Tuner) AddPID(pid int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.refused[pid] {
		return fmt.Errorf("%w: no free filter for pid %d", backend.ErrRejected, pid)
	}
	v.pids[pid] = true
	return nil
}

func (v *Tuner) RemovePID(pid int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.pids, pid)
}

func (v *Tuner) PIDs() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	pids := make([]int, 0, len(v.pids))
	for pid := range v.pids {
		pids = append(pids, pid)
	}
	slices.Sort(pids)
	return pids
}

func (v *Tuner) Release() {
	v.stopCapture()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tuned = nil
	v.acquired = false
}

func (v *Tuner) SetBuffer(buf backend.Buffer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.buf = buf
}

// stopCapture returns once the replay goroutine has exited, so a Buffer
// never has two producers.
func (v *Tuner) stopCapture() {
	v.mu.Lock()
	stop, done := v.stop, v.done
	v.stop, v.done = nil, nil
	v.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	<-done
}

func (v *Tuner) capture(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(v.blockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := v.fill(); err != nil {
			log.Errorf("Replay of %s stopped: %v", v.id, err)
			return
		}
	}
}

// fill delivers one block of wanted packets from the source.
func (v *Tuner) fill() error {
	v.mu.Lock()
	buf := v.buf
	wanted := make(map[int]bool, len(v.pids))
	for pid := range v.pids {
		wanted[pid] = true
	}
	v.mu.Unlock()
	if buf == nil || len(wanted) == 0 {
		return nil
	}

	blk := buf.Reserve()
	n := min(len(blk), buf.Size()/packet.PacketSize)
	count := 0
	for count < n {
		pkt := &blk[count]
		if _, err := io.ReadFull(v.source, pkt[:]); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				return err
			}
			if _, err := v.source.Seek(0, io.SeekStart); err != nil {
				return err
			}
			break
		}
		if pkt[0] != packet.SyncByte || !wanted[pkt.PID()] {
			continue
		}
		count++
	}

	if count > 0 {
		buf.Commit(count)
	}
	return nil
}
