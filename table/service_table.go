package table

import (
	"iter"

	"github.com/arloliu/dvbsi/format"
	"github.com/arloliu/dvbsi/section"
)

// ScheduleSlots is the number of schedule table ids available to one service.
const ScheduleSlots = 16

// ServiceTable collects the EIT sub-tables of one service: the
// present/following sub-table and up to 16 schedule sub-tables.
//
// Schedule sub-tables live in a fixed slot array indexed by the low nibble of
// the canonical table id. A removed sub-table leaves an empty slot behind;
// the number of slots in use is learned from last_table_id.
type ServiceTable struct {
	key ServiceKey

	pf            *SubTable
	schedule      [ScheduleSlots]*SubTable
	scheduleCount int

	obsoleteSubTables []*SubTable
	touched           *SubTable
}

// NewServiceTableFor creates an empty ServiceTable for key.
func NewServiceTableFor(key ServiceKey) *ServiceTable {
	return &ServiceTable{key: key}
}

// Key returns the service key.
func (t *ServiceTable) Key() ServiceKey {
	return t.key
}

// ScheduleCount returns the number of schedule sub-tables announced by the
// latest stored schedule section, zero before any.
func (t *ServiceTable) ScheduleCount() int {
	return t.scheduleCount
}

func (t *ServiceTable) slot(id format.TableID) **SubTable {
	if id == format.TableEITPFActual {
		return &t.pf
	}

	return &t.schedule[id&0x0f]
}

func (t *ServiceTable) newSubTable(id format.TableID) *SubTable {
	return NewSegmentedSubTable(t.key.SubTableKey(id), canonicalEITKey)
}

// NewSubTable pre-creates the sub-table for tableID. Actual and other table
// ids address the same sub-table. It returns nil for non-EIT table ids.
func (t *ServiceTable) NewSubTable(tableID format.TableID) *SubTable {
	id, ok := CanonicalEITTableID(tableID)
	if !ok {
		return nil
	}

	slot := t.slot(id)
	if *slot == nil {
		*slot = t.newSubTable(id)
	}

	return *slot
}

// SubTable returns the sub-table for tableID, or nil.
func (t *ServiceTable) SubTable(tableID format.TableID) *SubTable {
	id, ok := CanonicalEITTableID(tableID)
	if !ok {
		return nil
	}

	return *t.slot(id)
}

// SubTables iterates over the live sub-tables, present/following first,
// then schedule sub-tables in table id order.
func (t *ServiceTable) SubTables() iter.Seq[*SubTable] {
	return func(yield func(*SubTable) bool) {
		if t.pf != nil && !yield(t.pf) {
			return
		}
		for _, st := range t.schedule {
			if st != nil && !yield(st) {
				return
			}
		}
	}
}

func (t *ServiceTable) check(s *section.Section) (format.TableID, Result, bool) {
	if ServiceKeyOf(s) != t.key {
		return 0, Ignored(NotMonitoringService), false
	}
	id, ok := CanonicalEITTableID(s.TableID)
	if !ok {
		return 0, Ignored(NotMonitoringTable), false
	}

	return id, Result{}, true
}

// Test classifies s without modifying the service table.
func (t *ServiceTable) Test(s *section.Section) Result {
	id, res, ok := t.check(s)
	if !ok {
		return res
	}

	st := *t.slot(id)
	if st == nil {
		return Ok(NewSubTable | NewSection | NewVersion)
	}

	return st.Test(s)
}

// Save stores s. A stored schedule section updates the number of schedule
// sub-tables from its last_table_id: sub-tables beyond the new count are
// removed (ObsoleteSubTables), missing ones below it are created empty
// (NewSubTable|NewVersion).
func (t *ServiceTable) Save(s *section.Section, r Result) Result {
	id, res, ok := t.check(s)
	if !ok {
		return res
	}
	if r.IsNotTested() {
		r = t.Test(s)
	}
	if !r.IsOk() {
		return r
	}

	slot := t.slot(id)
	if *slot == nil && r.Has(NewSubTable) {
		*slot = t.newSubTable(id)
	}
	st := *slot
	if st == nil {
		return Err(ErrorOnSaving)
	}

	t.obsoleteSubTables = nil
	if t.touched != nil && t.touched != st {
		t.touched.clearObsolete()
	}
	t.touched = st

	res = st.Save(s, r)
	if res.Has(Stored) && id.IsEITSchedule() {
		count := int(s.LastTableID&0x0f) + 1
		switch {
		case count < t.scheduleCount:
			t.retire(count)
			res = res.With(ObsoleteSubTables)
		case count > t.scheduleCount:
			res = res.With(t.grow(count))
		}
		t.scheduleCount = count
	}

	if res.Has(CompleteSubTable) && t.IsComplete() {
		res = res.With(CompleteServiceTable)
	}

	return res
}

// retire removes every schedule sub-table at index count or above.
func (t *ServiceTable) retire(count int) {
	for i := count; i < ScheduleSlots; i++ {
		if t.schedule[i] != nil {
			t.obsoleteSubTables = append(t.obsoleteSubTables, t.schedule[i])
			t.schedule[i] = nil
		}
	}
}

// grow creates the missing schedule sub-tables below count.
func (t *ServiceTable) grow(count int) Flags {
	var flags Flags
	for i := range count {
		if t.schedule[i] == nil {
			t.schedule[i] = t.newSubTable(format.TableEITScheduleActual + format.TableID(i))
			flags |= NewSubTable | NewVersion
		}
	}

	return flags
}

// IsComplete reports whether the service has sub-tables and all are complete.
func (t *ServiceTable) IsComplete() bool {
	n := 0
	for st := range t.SubTables() {
		if !st.IsComplete() {
			return false
		}
		n++
	}

	return n > 0
}

// Progress sums the progress of all sub-tables.
func (t *ServiceTable) Progress() (received, expected int) {
	for st := range t.SubTables() {
		r, e := st.Progress()
		received += r
		expected += e
	}

	return received, expected
}

// Sections returns all stored sections ordered by table id, then section number.
func (t *ServiceTable) Sections() []*section.Section {
	return t.appendSections(nil)
}

func (t *ServiceTable) appendSections(dst []*section.Section) []*section.Section {
	for st := range t.SubTables() {
		dst = st.appendSections(dst)
	}

	return dst
}

// ObsoleteSections returns the sections evicted by the latest Save.
func (t *ServiceTable) ObsoleteSections() []*section.Section {
	if t.touched == nil {
		return nil
	}

	return t.touched.ObsoleteSections()
}

// ObsoleteSubTables returns the sub-tables removed by the latest Save.
func (t *ServiceTable) ObsoleteSubTables() []*SubTable {
	return t.obsoleteSubTables
}

func (t *ServiceTable) clearObsolete() {
	t.obsoleteSubTables = nil
	if t.touched != nil {
		t.touched.clearObsolete()
	}
}

// Reset drops all sub-tables and the learned schedule count.
func (t *ServiceTable) Reset() {
	t.pf = nil
	t.schedule = [ScheduleSlots]*SubTable{}
	t.scheduleCount = 0
	t.obsoleteSubTables = nil
	t.touched = nil
}
