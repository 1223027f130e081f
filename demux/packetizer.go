package demux

import (
	"github.com/Comcast/gots/v2/packet"

	"github.com/arloliu/dvbsi/format"
)

// Packetizer splits sections into transport stream packets, keeping a
// continuity counter per PID. It is the inverse of Demux and is used to
// replay stored tables and to build test streams.
type Packetizer struct {
	cc map[format.PID]uint8
}

// NewPacketizer creates a Packetizer whose counters start at zero.
func NewPacketizer() *Packetizer {
	return &Packetizer{cc: make(map[format.PID]uint8)}
}

// Packets carries sections back to back on pid. The first packet starts
// with a section; the unused end of the last packet is stuffed with 0xff.
func (p *Packetizer) Packets(pid format.PID, sections ...[]byte) []packet.Packet {
	pid &= format.PIDMask

	var data []byte
	starts := make([]int, 0, len(sections))
	for _, s := range sections {
		starts = append(starts, len(data))
		data = append(data, s...)
	}

	var pkts []packet.Packet
	for pos, next := 0, 0; pos < len(data); {
		var pkt packet.Packet
		pkt[0] = packet.SyncByte
		pkt[1] = byte(pid>>8) & 0x1f
		pkt[2] = byte(pid)
		pkt[3] = 0x10 | p.cc[pid]&0x0f
		p.cc[pid]++

		payload := pkt[4:]
		for next < len(starts) && starts[next] < pos {
			next++
		}
		if next < len(starts) && starts[next]-pos < len(payload)-1 {
			pkt[1] |= 0x40
			payload[0] = byte(starts[next] - pos)
			payload = payload[1:]
		}

		n := copy(payload, data[pos:])
		for i := n; i < len(payload); i++ {
			payload[i] = 0xff
		}
		pos += n
		pkts = append(pkts, pkt)
	}

	return pkts
}

// Bytes is Packets flattened into one buffer.
func (p *Packetizer) Bytes(pid format.PID, sections ...[]byte) []byte {
	pkts := p.Packets(pid, sections...)
	out := make([]byte, 0, len(pkts)*packet.PacketSize)
	for i := range pkts {
		out = append(out, pkts[i][:]...)
	}

	return out
}
