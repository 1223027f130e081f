package table

import (
	"fmt"
	"maps"
	"slices"

	"github.com/arloliu/dvbsi/section"
)

// SubTable collects the sections of one table instance and decides whether
// the instance is complete.
//
// The uniform layout expects exactly last_section_number+1 sections. The
// segmented layout, used by the EIT family, learns the size of each
// 8-section segment from segment_last_section_number.
type SubTable struct {
	key   Key
	keyFn KeyFunc

	sections          map[uint8]*section.Section
	version           uint8
	hasVersion        bool
	lastSectionNumber uint8
	complete          bool
	obsolete          []*section.Section

	seg *segments // nil for the uniform layout
}

// NewUniformSubTable creates an empty uniform sub-table. keyFn must map every
// section of the instance to key.
func NewUniformSubTable(key Key, keyFn KeyFunc) *SubTable {
	return &SubTable{
		key:      key,
		keyFn:    keyFn,
		sections: make(map[uint8]*section.Section),
	}
}

// NewSegmentedSubTable creates an empty sub-table with the EIT segment layout.
func NewSegmentedSubTable(key Key, keyFn KeyFunc) *SubTable {
	st := NewUniformSubTable(key, keyFn)
	st.seg = &segments{}

	return st
}

// Key returns the identity of the sub-table.
func (st *SubTable) Key() Key {
	return st.key
}

// Version returns the adopted version number; ok is false until a section was stored.
func (st *SubTable) Version() (version uint8, ok bool) {
	return st.version, st.hasVersion
}

// LastSectionNumber returns the adopted last_section_number.
func (st *SubTable) LastSectionNumber() uint8 {
	return st.lastSectionNumber
}

// Segmented reports whether the sub-table uses the EIT segment layout.
func (st *SubTable) Segmented() bool {
	return st.seg != nil
}

// Test classifies s against the stored state without modifying it.
//
// Returns:
//   - Ignored(NotMonitoringSection) if s belongs to another sub-table
//   - Ok with NewVersion or VersionChanged, and NewSection or SectionReplaced
//   - Ok(0) if s is already stored unchanged
func (st *SubTable) Test(s *section.Section) Result {
	if st.keyFn(s) != st.key {
		return Ignored(NotMonitoringSection)
	}

	return Ok(st.test(s))
}

func (st *SubTable) test(s *section.Section) Flags {
	var flags Flags

	switch {
	case !st.hasVersion:
		flags |= NewVersion
	case st.version != s.Version:
		flags |= VersionChanged
	}

	stored, ok := st.sections[s.SectionNumber]
	switch {
	case !ok:
		flags |= NewSection
	case stored.Version != s.Version:
		flags |= SectionReplaced
	case st.seg == nil && stored.CRC != s.CRC:
		// Segmented sub-tables compare versions only.
		flags |= SectionReplaced
	}

	return flags
}

// Save stores s according to the test outcome r. Pass NotTested to let Save
// run Test itself. Ignored and Err results are returned unchanged.
//
// Save panics if s violates section_number <= last_section_number.
func (st *SubTable) Save(s *section.Section, r Result) Result {
	if s.SectionNumber > s.LastSectionNumber {
		panic(fmt.Sprintf("table: section %d exceeds last section %d", s.SectionNumber, s.LastSectionNumber))
	}

	if r.IsNotTested() {
		r = st.Test(s)
	}
	if !r.IsOk() {
		return r
	}

	st.obsolete = nil
	if !st.hasVersion || st.shapeChanged(s) {
		st.reshape(s)
	}

	flags := r.Flags()
	stored := flags.Has(Stored)
	if stored {
		st.version, st.hasVersion = s.Version, true
		st.evict(s.SectionNumber)
		st.sections[s.SectionNumber] = s
		if st.seg != nil {
			st.seg.mark(s.SectionNumber)
		}
	}

	if stored || len(st.obsolete) > 0 {
		st.complete = st.checkComplete()
	}
	if stored && st.complete {
		flags |= CompleteSubTable
	}
	if len(st.obsolete) > 0 {
		flags |= ObsoleteSections
	}

	return Ok(flags)
}

func (st *SubTable) shapeChanged(s *section.Section) bool {
	if st.lastSectionNumber != s.LastSectionNumber {
		return true
	}

	return st.seg != nil && st.seg.changed(s)
}

// reshape adopts the section count announced by s, evicting sections that
// fall outside the new layout.
func (st *SubTable) reshape(s *section.Section) {
	lsn := s.LastSectionNumber
	if st.seg == nil {
		if lsn < st.lastSectionNumber {
			st.evictAbove(lsn)
		}
		st.lastSectionNumber = lsn

		return
	}

	lastSeg := int(lsn / section.SegmentSize)
	if len(st.seg.expected) > lastSeg+1 {
		st.seg.resize(lastSeg + 1)
		st.evictAbove(lsn)
	} else {
		st.seg.resize(lastSeg + 1)
	}
	st.lastSectionNumber = lsn

	// The last segment always ends at last_section_number.
	if idx := int(s.Segment()); idx != lastSeg {
		st.resizeSegment(lastSeg, lsn%section.SegmentSize+1)
	}
	st.resizeSegment(int(s.Segment()), sizeOf(s))
}

func (st *SubTable) resizeSegment(idx int, size uint8) {
	base := idx * section.SegmentSize
	for off := int(size); off < section.SegmentSize; off++ {
		st.evict(uint8(base + off))
	}
	st.seg.setSize(idx, size)
}

func (st *SubTable) evictAbove(lsn uint8) {
	for _, sn := range slices.Sorted(maps.Keys(st.sections)) {
		if sn > lsn {
			st.evict(sn)
		}
	}
}

// evict moves the section stored at sn, if any, to the obsolete list.
func (st *SubTable) evict(sn uint8) {
	old, ok := st.sections[sn]
	if !ok {
		return
	}
	delete(st.sections, sn)
	st.obsolete = append(st.obsolete, old)
	if st.seg != nil {
		st.seg.clear(sn)
	}
}

func (st *SubTable) checkComplete() bool {
	if st.seg == nil {
		if len(st.sections) != int(st.lastSectionNumber)+1 {
			return false
		}
	} else if !st.seg.full() {
		return false
	}

	for _, s := range st.sections {
		if s.Version != st.version || s.LastSectionNumber != st.lastSectionNumber {
			return false
		}
	}

	return true
}

// IsComplete reports whether every expected section is stored at one version.
func (st *SubTable) IsComplete() bool {
	return st.complete
}

// Progress returns the number of stored sections and the number expected.
// received never exceeds expected.
func (st *SubTable) Progress() (received, expected int) {
	if st.seg != nil {
		return len(st.sections), st.seg.total()
	}

	return len(st.sections), int(st.lastSectionNumber) + 1
}

// Section returns the section stored at sn, or nil.
func (st *SubTable) Section(sn uint8) *section.Section {
	return st.sections[sn]
}

// Sections returns the stored sections ordered by section number.
func (st *SubTable) Sections() []*section.Section {
	return st.appendSections(nil)
}

func (st *SubTable) appendSections(dst []*section.Section) []*section.Section {
	for _, sn := range slices.Sorted(maps.Keys(st.sections)) {
		dst = append(dst, st.sections[sn])
	}

	return dst
}

// ObsoleteSections returns the sections evicted by the latest Save. The
// slice is valid until the next Save.
func (st *SubTable) ObsoleteSections() []*section.Section {
	return st.obsolete
}

func (st *SubTable) clearObsolete() {
	st.obsolete = nil
}

// Reset drops every section and forgets the adopted version.
func (st *SubTable) Reset() {
	clear(st.sections)
	st.version, st.hasVersion = 0, false
	st.lastSectionNumber = 0
	st.complete = false
	st.obsolete = nil
	if st.seg != nil {
		st.seg.reset()
	}
}

func (st *SubTable) String() string {
	received, expected := st.Progress()
	state := "incomplete"
	if st.complete {
		state = "complete"
	}
	version := "-"
	if st.hasVersion {
		version = fmt.Sprint(st.version)
	}

	return fmt.Sprintf("SubTable(ver %s, %d/%d) %s %s", version, received, expected, st.key, state)
}
