package demux

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Comcast/gots/packet"
	"github.com/charmbracelet/log"
)

// PacketsPerBlock is the number of transport packets in one capture block.
const PacketsPerBlock = 21

const transportErrorIndicator = 0x80

type block struct {
	packets [PacketsPerBlock]packet.Packet
	count   int
}

type Stats struct {
	Blocks            int
	PacketsCommitted  uint64
	PacketsDispatched uint64
	TransportErrors   uint64
}

// Pipeline is the capture ring between a backend and the filters of a
// Registry. It implements backend.Buffer.
//
// The producer fills the block at the write cursor and commits it; the
// dispatch pass consumes blocks from the read cursor. Blocks live in an
// arena addressed by index, next[i] is the block following i in the ring.
// The ring grows instead of letting the producer wait for the consumer,
// and it never shrinks.
type Pipeline struct {
	registry *Registry
	schedule func()
	kick     chan struct{}
	logger   *log.Logger

	// arenaMu guards the blocks and next slices against growth. The
	// producer takes it only to grow, the consumer once per block.
	arenaMu sync.RWMutex
	blocks  []*block
	next    []int

	write   int // producer owned
	read    int // consumer owned
	pending atomic.Int32

	committed  atomic.Uint64
	dispatched atomic.Uint64
	tei        atomic.Uint64
}

type PipelineOption func(*Pipeline)

// WithScheduler replaces the dispatch goroutine: schedule is called once
// whenever the first block becomes ready, and whoever it notifies must call
// Drain.
func WithScheduler(schedule func()) PipelineOption {
	return func(p *Pipeline) {
		p.schedule = schedule
	}
}

func WithLogger(logger *log.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPipeline(registry *Registry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry: registry,
		logger:   log.Default(),
		kick:     make(chan struct{}, 1),
		blocks:   []*block{new(block)},
		next:     []int{0},
	}
	p.schedule = func() {
		select {
		case p.kick <- struct{}{}:
		default:
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Size() int {
	return PacketsPerBlock * packet.PacketSize
}

// Reserve returns the block the producer has to fill next.
func (p *Pipeline) Reserve() []packet.Packet {
	return p.blocks[p.write].packets[:]
}

// Commit finalizes the reserved block holding n packets.
func (p *Pipeline) Commit(n int) {
	if n < 0 {
		n = 0
	} else if n > PacketsPerBlock {
		n = PacketsPerBlock
	}
	p.blocks[p.write].count = n
	p.committed.Add(uint64(n))

	// the block after this one must not be waiting for dispatch
	if int(p.pending.Load())+1 >= len(p.blocks) {
		p.arenaMu.Lock()
		idx := len(p.blocks)
		p.blocks = append(p.blocks, new(block))
		p.next = append(p.next, p.next[p.write])
		p.next[p.write] = idx
		p.arenaMu.Unlock()
		p.logger.Debugf("Capture ring grown to %d blocks", idx+1)
	}

	p.write = p.next[p.write]

	if p.pending.Add(1) == 1 {
		p.schedule()
	}
}

// Drain is one dispatch pass: it routes every committed block, oldest
// first, to the filters of the active table, then reconciles the registry.
func (p *Pipeline) Drain() {
	if p.pending.Load() == 0 {
		return
	}

	active := p.registry.snapshot()

	for {
		p.arenaMu.RLock()
		b := p.blocks[p.read]
		p.arenaMu.RUnlock()

		for i := 0; i < b.count; i++ {
			pkt := &b.packets[i]
			if pkt[1]&transportErrorIndicator != 0 {
				p.tei.Add(1)
				continue
			}
			filters := active.lookup(pkt.PID())
			for _, f := range filters {
				f.ProcessPacket(pkt)
			}
		}
		p.dispatched.Add(uint64(b.count))

		p.arenaMu.RLock()
		p.read = p.next[p.read]
		p.arenaMu.RUnlock()

		if p.pending.Add(-1) == 0 {
			break
		}
	}

	p.registry.Reconcile()
}

// Run dispatches blocks as they are committed until ctx is done. It is only
// needed when no scheduler was given.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.kick:
			p.Drain()
		}
	}
}

func (p *Pipeline) Stats() Stats {
	p.arenaMu.RLock()
	blocks := len(p.blocks)
	p.arenaMu.RUnlock()
	return Stats{
		Blocks:            blocks,
		PacketsCommitted:  p.committed.Load(),
		PacketsDispatched: p.dispatched.Load(),
		TransportErrors:   p.tei.Load(),
	}
}
