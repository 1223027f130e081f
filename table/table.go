package table

import (
	"errors"
	"iter"
	"maps"
	"slices"

	"github.com/arloliu/dvbsi/format"
	"github.com/arloliu/dvbsi/internal/options"
	"github.com/arloliu/dvbsi/section"
)

// CreatePolicy decides whether Save may create a sub-table for key on demand.
// Sub-tables created with NewSubTable bypass the policy.
type CreatePolicy func(key Key) bool

// AlwaysCreate is the default CreatePolicy.
func AlwaysCreate(Key) bool { return true }

// Config holds the settings of a Table.
type Config struct {
	KeyFunc      KeyFunc
	Segmented    bool
	CreatePolicy CreatePolicy
}

// Option configures a Table.
type Option = options.Option[*Config]

var errNilFunc = errors.New("table: nil function option")

// WithKeyFunc sets how sections are mapped to sub-table keys. Default: BasicKey.
func WithKeyFunc(fn KeyFunc) Option {
	return options.New(func(c *Config) error {
		if fn == nil {
			return errNilFunc
		}
		c.KeyFunc = fn

		return nil
	})
}

// WithSegmentedSubTables makes the table create sub-tables with the EIT
// segment layout.
func WithSegmentedSubTables() Option {
	return options.NoError(func(c *Config) {
		c.Segmented = true
	})
}

// WithCreatePolicy restricts on-demand sub-table creation. Sections whose
// sub-table may not be created are reported as Err(ErrorOnSaving).
func WithCreatePolicy(p CreatePolicy) Option {
	return options.New(func(c *Config) error {
		if p == nil {
			return errNilFunc
		}
		c.CreatePolicy = p

		return nil
	})
}

// SDTFamily configures a table for SDT sections.
func SDTFamily() Option {
	return WithKeyFunc(SDTKey)
}

// EITFamily configures a table for EIT sections of a single table id.
func EITFamily() Option {
	return options.Group(WithKeyFunc(EITKey), WithSegmentedSubTables())
}

// Table collects the sub-tables of one table id.
//
// Table is not safe for concurrent use; it is meant to be fed from a single
// event loop.
type Table struct {
	id        format.TableID
	cfg       Config
	subTables map[Key]*SubTable
	touched   *SubTable
}

// New creates an empty Table for tableID.
//
// Parameters:
//   - tableID: The only table id the table accepts
//   - opts: Key family, layout and creation policy options
//
// Returns:
//   - *Table: The new table
//   - error: Option validation error
func New(tableID format.TableID, opts ...Option) (*Table, error) {
	cfg := Config{KeyFunc: BasicKey, CreatePolicy: AlwaysCreate}
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	return &Table{
		id:        tableID,
		cfg:       cfg,
		subTables: make(map[Key]*SubTable),
	}, nil
}

// TableID returns the table id the table accepts.
func (t *Table) TableID() format.TableID {
	return t.id
}

// NewSubTable pre-creates an empty sub-table so that completeness waits for
// it before any of its sections arrived. An existing sub-table is returned
// as is. It returns nil if key belongs to another table id.
func (t *Table) NewSubTable(key Key) *SubTable {
	if key.TableID != t.id {
		return nil
	}
	if st, ok := t.subTables[key]; ok {
		return st
	}

	st := NewUniformSubTable(key, t.cfg.KeyFunc)
	if t.cfg.Segmented {
		st = NewSegmentedSubTable(key, t.cfg.KeyFunc)
	}
	t.subTables[key] = st

	return st
}

// SubTable returns the sub-table for key, or nil.
func (t *Table) SubTable(key Key) *SubTable {
	return t.subTables[key]
}

// SubTableOf returns the sub-table s belongs to, or nil.
func (t *Table) SubTableOf(s *section.Section) *SubTable {
	return t.subTables[t.cfg.KeyFunc(s)]
}

// SubTables iterates over the sub-tables in key order.
func (t *Table) SubTables() iter.Seq[*SubTable] {
	return func(yield func(*SubTable) bool) {
		keys := slices.SortedFunc(maps.Keys(t.subTables), Key.Compare)
		for _, k := range keys {
			if !yield(t.subTables[k]) {
				return
			}
		}
	}
}

// Len returns the number of sub-tables.
func (t *Table) Len() int {
	return len(t.subTables)
}

// Test classifies s without modifying the table.
func (t *Table) Test(s *section.Section) Result {
	if s.TableID != t.id {
		return Ignored(NotMonitoringTable)
	}

	st := t.subTables[t.cfg.KeyFunc(s)]
	if st == nil {
		return Ok(NewSubTable | NewSection | NewVersion)
	}

	return st.Test(s)
}

// Save stores s, creating its sub-table when r reports NewSubTable.
// CompleteTable is added when the save completed the last incomplete sub-table.
func (t *Table) Save(s *section.Section, r Result) Result {
	if s.TableID != t.id {
		return Ignored(NotMonitoringTable)
	}
	if r.IsNotTested() {
		r = t.Test(s)
	}
	if !r.IsOk() {
		return r
	}

	key := t.cfg.KeyFunc(s)
	st := t.subTables[key]
	if st == nil && r.Has(NewSubTable) && t.cfg.CreatePolicy(key) {
		st = t.NewSubTable(key)
	}
	if st == nil {
		return Err(ErrorOnSaving)
	}

	t.touch(st)
	res := st.Save(s, r)
	if res.Has(CompleteSubTable) && t.IsComplete() {
		res = res.With(CompleteTable)
	}

	return res
}

// touch makes st the sub-table addressed by the current Save. Obsolete
// sections of the previously addressed sub-table are dropped.
func (t *Table) touch(st *SubTable) {
	if t.touched != nil && t.touched != st {
		t.touched.clearObsolete()
	}
	t.touched = st
}

// IsComplete reports whether the table has sub-tables and all are complete.
func (t *Table) IsComplete() bool {
	if len(t.subTables) == 0 {
		return false
	}
	for _, st := range t.subTables {
		if !st.IsComplete() {
			return false
		}
	}

	return true
}

// Progress sums the progress of all sub-tables.
func (t *Table) Progress() (received, expected int) {
	for _, st := range t.subTables {
		r, e := st.Progress()
		received += r
		expected += e
	}

	return received, expected
}

// Sections returns all stored sections ordered by sub-table key, then
// section number.
func (t *Table) Sections() []*section.Section {
	var out []*section.Section
	for st := range t.SubTables() {
		out = st.appendSections(out)
	}

	return out
}

// ObsoleteSections returns the sections evicted by the latest Save.
func (t *Table) ObsoleteSections() []*section.Section {
	var out []*section.Section
	for _, st := range t.subTables {
		out = append(out, st.ObsoleteSections()...)
	}

	return out
}

// Reset drops all sub-tables, including pre-created ones.
func (t *Table) Reset() {
	clear(t.subTables)
	t.touched = nil
}
