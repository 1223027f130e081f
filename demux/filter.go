package demux

import (
	"fmt"
	"time"

	"github.com/arloliu/dvbsi/errs"
	"github.com/arloliu/dvbsi/format"
)

// FilterDepth is the number of section bytes a Match can compare.
const FilterDepth = 16

// Match compares the leading bytes of a section against Value under Mask,
// the way a Linux DVB section filter does: byte 0 is table_id and byte i > 0
// is section byte i+2, skipping the section_length field.
type Match struct {
	Value []byte
	Mask  []byte
}

// TableMatch matches table ids equal to id under mask.
func TableMatch(id format.TableID, mask uint8) Match {
	return Match{Value: []byte{byte(id)}, Mask: []byte{mask}}
}

// WithExtension narrows m to a table_id_extension.
func (m Match) WithExtension(ext uint16) Match {
	value := make([]byte, 3)
	mask := make([]byte, 3)
	copy(value, m.Value)
	copy(mask, m.Mask)
	value[1], value[2] = byte(ext>>8), byte(ext)
	mask[1], mask[2] = 0xff, 0xff

	return Match{Value: value, Mask: mask}
}

func (m Match) validate() error {
	if len(m.Value) != len(m.Mask) || len(m.Value) > FilterDepth {
		return fmt.Errorf("%w: value %d bytes, mask %d bytes", errs.ErrFilterSize, len(m.Value), len(m.Mask))
	}

	return nil
}

// Matches reports whether sec satisfies m. A section shorter than the
// compared bytes never matches.
func (m Match) Matches(sec []byte) bool {
	for i, mask := range m.Mask {
		if mask == 0 {
			continue
		}
		pos := i
		if i > 0 {
			pos = i + 2
		}
		if pos >= len(sec) || sec[pos]&mask != m.Value[i]&mask {
			return false
		}
	}

	return true
}

// Filter subscribes to the sections of one PID that satisfy Match.
type Filter struct {
	// Name identifies the filter in events and in RemoveFilter.
	Name  string
	PID   format.PID
	Match Match
	// Timeout overrides the demultiplexer's default receive timeout;
	// a negative value disables it.
	Timeout time.Duration
}

// TableFilter builds a filter for the table ids equal to id under mask.
func TableFilter(name string, pid format.PID, id format.TableID, mask uint8) Filter {
	return Filter{Name: name, PID: pid, Match: TableMatch(id, mask)}
}

type filterState struct {
	Filter

	timeout  time.Duration
	deadline time.Time
}

func (f *filterState) rearm(now time.Time) {
	if f.timeout > 0 {
		f.deadline = now.Add(f.timeout)
	}
}

func (f *filterState) expired(now time.Time) bool {
	return f.timeout > 0 && !now.Before(f.deadline)
}
