package table

import (
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/arloliu/dvbsi/format"
	"github.com/arloliu/dvbsi/internal/options"
	"github.com/arloliu/dvbsi/section"
)

// CanonicalEITTableID folds the actual and other variants of an EIT table id
// onto the actual one: 0x4e/0x4f map to 0x4e and 0x50-0x6f map to
// 0x50-0x5f. ok is false for non-EIT table ids.
//
// Folding assumes a receiver never sees the same service both as actual and
// as other; sections of both variants are merged into one sub-table.
func CanonicalEITTableID(id format.TableID) (format.TableID, bool) {
	switch {
	case id.IsEITPresentFollowing():
		return format.TableEITPFActual, true
	case id.IsEITSchedule():
		return id&0x0f | format.TableEITScheduleActual, true
	default:
		return 0, false
	}
}

// canonicalEITKey is EITKey with the table id folded by CanonicalEITTableID.
func canonicalEITKey(s *section.Section) Key {
	k := EITKey(s)
	if id, ok := CanonicalEITTableID(k.TableID); ok {
		k.TableID = id
	}

	return k
}

// Class selects which EIT table ids a Schedule accepts.
type Class uint8

const (
	ClassAll               Class = iota // present/following and schedule
	ClassPresentFollowing               // 0x4e and 0x4f
	ClassSchedule                       // 0x50 to 0x6f
)

func (c Class) String() string {
	switch c {
	case ClassAll:
		return "all"
	case ClassPresentFollowing:
		return "pf"
	case ClassSchedule:
		return "schedule"
	default:
		return fmt.Sprintf("Class(%d)", uint8(c))
	}
}

func (c Class) accepts(id format.TableID) bool {
	switch c {
	case ClassPresentFollowing:
		return id.IsEITPresentFollowing()
	case ClassSchedule:
		return id.IsEITSchedule()
	default:
		return id.IsEIT()
	}
}

// ScheduleConfig holds the settings of a Schedule.
type ScheduleConfig struct {
	Class Class
}

// ScheduleOption configures a Schedule.
type ScheduleOption = options.Option[*ScheduleConfig]

// WithClass restricts the table ids accepted by a Schedule. Default: ClassAll.
func WithClass(c Class) ScheduleOption {
	return options.New(func(cfg *ScheduleConfig) error {
		if c > ClassSchedule {
			return fmt.Errorf("table: invalid schedule class %d", uint8(c))
		}
		cfg.Class = c

		return nil
	})
}

// Schedule collects EIT sections of many services, one ServiceTable each.
type Schedule struct {
	cfg      ScheduleConfig
	services map[ServiceKey]*ServiceTable
	touched  *ServiceTable
}

// NewSchedule creates an empty Schedule.
func NewSchedule(opts ...ScheduleOption) (*Schedule, error) {
	var cfg ScheduleConfig
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	return &Schedule{
		cfg:      cfg,
		services: make(map[ServiceKey]*ServiceTable),
	}, nil
}

// Class returns the accepted class of table ids.
func (sc *Schedule) Class() Class {
	return sc.cfg.Class
}

// NewServiceTable pre-creates the service table for key. An existing one is
// returned as is.
func (sc *Schedule) NewServiceTable(key ServiceKey) *ServiceTable {
	if st, ok := sc.services[key]; ok {
		return st
	}

	st := NewServiceTableFor(key)
	sc.services[key] = st

	return st
}

// NewSubTable pre-creates the service table and sub-table addressed by key.
// It returns nil if key.TableID is outside the accepted class.
func (sc *Schedule) NewSubTable(key Key) *SubTable {
	if !sc.cfg.Class.accepts(key.TableID) {
		return nil
	}

	st := sc.NewServiceTable(ServiceKey{
		ServiceID:         key.TableIDExt,
		TransportStreamID: key.TransportStreamID,
		OriginalNetworkID: key.OriginalNetworkID,
	})

	return st.NewSubTable(key.TableID)
}

// ServiceTable returns the service table for key, or nil.
func (sc *Schedule) ServiceTable(key ServiceKey) *ServiceTable {
	return sc.services[key]
}

// ServiceTables iterates over the service tables in key order.
func (sc *Schedule) ServiceTables() iter.Seq[*ServiceTable] {
	return func(yield func(*ServiceTable) bool) {
		keys := slices.SortedFunc(maps.Keys(sc.services), ServiceKey.Compare)
		for _, k := range keys {
			if !yield(sc.services[k]) {
				return
			}
		}
	}
}

// Len returns the number of service tables.
func (sc *Schedule) Len() int {
	return len(sc.services)
}

// Test classifies s without modifying the schedule.
func (sc *Schedule) Test(s *section.Section) Result {
	if !sc.cfg.Class.accepts(s.TableID) {
		return Ignored(NotMonitoringTable)
	}

	st := sc.services[ServiceKeyOf(s)]
	if st == nil {
		return Ok(NewServiceTable | NewSubTable | NewSection | NewVersion)
	}

	return st.Test(s)
}

// Save stores s, creating its service table when r reports NewServiceTable.
// CompleteTable is added when every service table is complete.
func (sc *Schedule) Save(s *section.Section, r Result) Result {
	if !sc.cfg.Class.accepts(s.TableID) {
		return Ignored(NotMonitoringTable)
	}
	if r.IsNotTested() {
		r = sc.Test(s)
	}
	if !r.IsOk() {
		return r
	}

	key := ServiceKeyOf(s)
	st := sc.services[key]
	if st == nil && r.Has(NewServiceTable) {
		st = sc.NewServiceTable(key)
	}
	if st == nil {
		return Err(ErrorOnSaving)
	}

	if sc.touched != nil && sc.touched != st {
		sc.touched.clearObsolete()
	}
	sc.touched = st

	res := st.Save(s, r)
	if res.Has(CompleteServiceTable) && sc.IsComplete() {
		res = res.With(CompleteTable)
	}

	return res
}

// IsComplete reports whether the schedule has service tables and all are complete.
func (sc *Schedule) IsComplete() bool {
	if len(sc.services) == 0 {
		return false
	}
	for _, st := range sc.services {
		if !st.IsComplete() {
			return false
		}
	}

	return true
}

// Progress sums the progress of all service tables.
func (sc *Schedule) Progress() (received, expected int) {
	for _, st := range sc.services {
		r, e := st.Progress()
		received += r
		expected += e
	}

	return received, expected
}

// Sections returns all stored sections ordered by service key, table id and
// section number.
func (sc *Schedule) Sections() []*section.Section {
	var out []*section.Section
	for st := range sc.ServiceTables() {
		out = st.appendSections(out)
	}

	return out
}

// ObsoleteSections returns the sections evicted by the latest Save.
func (sc *Schedule) ObsoleteSections() []*section.Section {
	if sc.touched == nil {
		return nil
	}

	return sc.touched.ObsoleteSections()
}

// ObsoleteSubTables returns the schedule sub-tables removed by the latest Save.
func (sc *Schedule) ObsoleteSubTables() []*SubTable {
	if sc.touched == nil {
		return nil
	}

	return sc.touched.ObsoleteSubTables()
}

// Reset drops all service tables.
func (sc *Schedule) Reset() {
	clear(sc.services)
	sc.touched = nil
}
