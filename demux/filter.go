package demux

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Comcast/gots/packet"
	"github.com/charmbracelet/log"
)

const MaxPID = 0x1fff

var (
	ErrPidRejected    = errors.New("pid filter rejected")
	ErrFilterNotFound = errors.New("trying to remove a nonexistent filter")
	ErrInvalidPID     = errors.New("invalid pid")
)

// Filter receives every packet of the PIDs it is registered for. The packet
// points into capture memory and is only valid during the call.
//
// Filters are compared by identity, so implementations should be pointers.
// The same filter may be registered for several PIDs.
type Filter interface {
	ProcessPacket(pkt *packet.Packet)
}

// PIDController starts and stops hardware capture of a PID.
type PIDController interface {
	AddPID(pid int) error
	RemovePID(pid int)
}

type nopFilter struct{}

func (nopFilter) ProcessPacket(*packet.Packet) {}

// placeholder takes the slot of a removed filter in the active table until
// the next reconcile, so slot order never changes under a dispatch pass.
var placeholder Filter = &nopFilter{}

type entry struct {
	pid     int
	filters []Filter
}

// table is sorted by pid, pids are unique.
type table []entry

func (t table) find(pid int) (int, bool) {
	return slices.BinarySearchFunc(t, pid, func(e entry, pid int) int {
		return e.pid - pid
	})
}

func (t table) lookup(pid int) []Filter {
	if i, ok := t.find(pid); ok {
		return t[i].filters
	}
	return nil
}

func (t table) clone() table {
	c := make(table, len(t))
	for i, e := range t {
		c[i] = entry{pid: e.pid, filters: slices.Clone(e.filters)}
	}
	return c
}

// Registry tracks which filters want which PIDs.
//
// pending reflects every add and remove as soon as it happens. active is what
// dispatch passes read: it is published as an immutable table, so a pass
// holding a table never sees it change. Adds and removes publish a modified
// copy that the next pass picks up, and Reconcile replaces active with a copy
// of pending after every pass.
type Registry struct {
	mu      sync.Mutex
	hw      PIDController
	pending table
	active  atomic.Pointer[table]
	logger  *log.Logger
}

type RegistryOption func(*Registry)

func WithRegistryLogger(logger *log.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRegistry(hw PIDController, opts ...RegistryOption) *Registry {
	r := &Registry{hw: hw, logger: log.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.active.Store(&table{})
	return r
}

// SetController swaps the hardware the registry drives and starts the capture
// of every pending PID on it. PIDs the new hardware refuses stay registered
// and are only logged.
func (r *Registry) SetController(hw PIDController) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hw = hw
	if hw == nil {
		return
	}
	for _, e := range r.pending {
		if err := hw.AddPID(e.pid); err != nil {
			r.logger.Warnf("Could not restore pid %d filter: %v", e.pid, err)
		}
	}
}

// Add registers f for pid. The first filter for a PID makes the hardware
// start capturing it; if the hardware refuses, nothing changes.
func (r *Registry) Add(pid int, f Filter) error {
	if pid < 0 || pid > MaxPID {
		return fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i, found := r.pending.find(pid)
	if !found {
		if r.hw == nil {
			return fmt.Errorf("%w: pid %d: no device", ErrPidRejected, pid)
		}
		if err := r.hw.AddPID(pid); err != nil {
			return fmt.Errorf("%w: pid %d: %w", ErrPidRejected, pid, err)
		}
		r.pending = slices.Insert(r.pending, i, entry{pid: pid})
	}

	if slices.Contains(r.pending[i].filters, f) {
		r.logger.Warnf("Using the same filter for pid %d more than once", pid)
		return nil
	}
	r.pending[i].filters = append(r.pending[i].filters, f)

	active := r.active.Load().clone()
	j, ok := active.find(pid)
	if !ok {
		active = slices.Insert(active, j, entry{pid: pid})
	}
	active[j].filters = append(active[j].filters, f)
	r.active.Store(&active)

	r.logger.Debugf("Added filter for pid %d (%d filters)", pid, len(r.pending[i].filters))
	return nil
}

// Remove unregisters f from pid. Removing the last filter of a PID stops its
// capture in hardware.
func (r *Registry) Remove(pid int, f Filter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, found := r.pending.find(pid)
	if !found {
		r.logger.Warnf("Trying to remove a nonexistent filter for pid %d", pid)
		return fmt.Errorf("%w: pid %d", ErrFilterNotFound, pid)
	}
	k := slices.Index(r.pending[i].filters, f)
	if k < 0 {
		r.logger.Warnf("Trying to remove a nonexistent filter for pid %d", pid)
		return fmt.Errorf("%w: pid %d", ErrFilterNotFound, pid)
	}
	r.pending[i].filters = slices.Delete(r.pending[i].filters, k, k+1)

	if len(r.pending[i].filters) == 0 {
		if r.hw != nil {
			r.hw.RemovePID(pid)
		}
		r.pending = slices.Delete(r.pending, i, i+1)
	}

	active := r.active.Load().clone()
	if j, ok := active.find(pid); ok {
		if k := slices.Index(active[j].filters, f); k >= 0 {
			active[j].filters[k] = placeholder
		}
	}
	r.active.Store(&active)

	r.logger.Debugf("Removed filter for pid %d", pid)
	return nil
}

// Reconcile makes active equal to pending. It must only run between
// dispatch passes.
func (r *Registry) Reconcile() {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := r.pending.clone()
	r.active.Store(&active)
}

// RemoveAll drops every filter and stops the capture of every PID.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.pending {
		if r.hw != nil {
			r.hw.RemovePID(e.pid)
		}
	}
	r.pending = nil
	empty := table{}
	r.active.Store(&empty)
}

// PIDs lists the PIDs with at least one filter, in ascending order.
func (r *Registry) PIDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	pids := make([]int, len(r.pending))
	for i, e := range r.pending {
		pids[i] = e.pid
	}
	return pids
}

func (r *Registry) snapshot() table {
	return *r.active.Load()
}
