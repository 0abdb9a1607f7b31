package demux

import (
	"sync/atomic"

	"github.com/Comcast/gots/packet"
)

// Counter is a Filter counting the packets it receives, per PID.
type Counter struct {
	counts [MaxPID + 1]atomic.Uint64
}

func (c *Counter) ProcessPacket(pkt *packet.Packet) {
	c.counts[pkt.PID()].Add(1)
}

func (c *Counter) Count(pid int) uint64 {
	if pid < 0 || pid > MaxPID {
		return 0
	}
	return c.counts[pid].Load()
}
