package table

import (
	"math/bits"

	"github.com/arloliu/dvbsi/section"
)

// segments tracks the per-segment layout of a segmented sub-table.
// Index i covers section numbers 8*i .. 8*i+7.
type segments struct {
	expected []uint8 // offsets that must be present
	received []uint8 // offsets currently stored
	counts   []uint8 // popcount of expected
}

// segmentMask returns the expected mask of a segment holding size sections.
func segmentMask(size uint8) uint8 {
	return uint8(0xff >> (section.SegmentSize - size))
}

// sizeOf returns the number of sections announced for the section's own segment.
func sizeOf(s *section.Section) uint8 {
	return s.SegmentLastSectionNumber%section.SegmentSize + 1
}

// changed reports whether s disagrees with the recorded layout of its segment.
func (sg *segments) changed(s *section.Section) bool {
	idx := int(s.Segment())
	if idx >= len(sg.expected) {
		return true
	}

	return sg.expected[idx] != segmentMask(sizeOf(s))
}

// resize grows or truncates the arrays to n segments. New segments expect
// all eight sections until a section of theirs says otherwise.
func (sg *segments) resize(n int) {
	for len(sg.expected) < n {
		sg.expected = append(sg.expected, 0xff)
		sg.received = append(sg.received, 0)
		sg.counts = append(sg.counts, section.SegmentSize)
	}
	sg.expected = sg.expected[:n]
	sg.received = sg.received[:n]
	sg.counts = sg.counts[:n]
}

func (sg *segments) setSize(idx int, size uint8) {
	mask := segmentMask(size)
	sg.expected[idx] = mask
	sg.received[idx] &= mask
	sg.counts[idx] = size
}

func (sg *segments) mark(sn uint8) {
	sg.received[sn/section.SegmentSize] |= 1 << (sn % section.SegmentSize)
}

func (sg *segments) clear(sn uint8) {
	idx := int(sn / section.SegmentSize)
	if idx < len(sg.received) {
		sg.received[idx] &^= 1 << (sn % section.SegmentSize)
	}
}

// full reports whether every expected section of every segment is stored.
func (sg *segments) full() bool {
	if len(sg.expected) == 0 {
		return false
	}
	for i, mask := range sg.expected {
		if sg.received[i] != mask {
			return false
		}
	}

	return true
}

func (sg *segments) total() int {
	n := 0
	for _, c := range sg.counts {
		n += int(c)
	}

	return n
}

func (sg *segments) receivedCount() int {
	n := 0
	for _, r := range sg.received {
		n += bits.OnesCount8(r)
	}

	return n
}

func (sg *segments) reset() {
	sg.expected = sg.expected[:0]
	sg.received = sg.received[:0]
	sg.counts = sg.counts[:0]
}
