// Package dvbsi collects MPEG-2 PSI and DVB SI tables from broadcast sections.
//
// Tables are carried as a carousel of sections that repeat continuously and
// change version at any time. The collectors in package table reassemble them:
// each section is tested against what is already stored, saved when it brings
// something new, and the outcome reports new sections, version changes,
// evicted sections and completion at sub-table and table level.
//
// # Core Features
//
//   - Uniform sub-tables for PAT, PMT, NIT, SDT and BAT
//   - Segmented sub-tables for the EIT, whose sections come in segments of up to 8
//   - Per-service EIT collections that follow last_table_id growth and shrinkage
//   - Version fencing: stale sections are evicted and reported for cleanup
//   - Transport stream demultiplexing, snapshots and SQLite persistence
//
// # Basic Usage
//
// Collecting an SDT from parsed sections:
//
//	import "github.com/arloliu/dvbsi"
//
//	sdt, _ := dvbsi.NewTable(format.TableSDTActual)
//	for _, raw := range sections {
//	    s, err := dvbsi.ParseSection(raw)
//	    if err != nil {
//	        continue
//	    }
//	    res := sdt.Save(s, table.NotTested)
//	    if res.Has(table.CompleteTable) {
//	        break
//	    }
//	}
//
// Collecting EIT schedules:
//
//	eit, _ := dvbsi.NewEITSchedule()
//	res := eit.Save(s, table.NotTested)
//	if res.Has(table.ObsoleteSections) {
//	    drop(eit.ObsoleteSections())
//	}
//
// # Package Structure
//
// This package provides constructors for the standard table families. The
// monitor package runs them against a transport stream; the table package
// gives full control over keys, layouts and creation policies.
package dvbsi

import (
	"fmt"

	"github.com/arloliu/dvbsi/errs"
	"github.com/arloliu/dvbsi/format"
	"github.com/arloliu/dvbsi/section"
	"github.com/arloliu/dvbsi/table"
)

// NewTable creates a collector for one table id with the key family DVB
// defines for it.
//
// Key families:
//   - SDT: table id, transport_stream_id and original_network_id
//   - EIT: table id, service_id, transport_stream_id and original_network_id, segmented
//   - everything else: table id and table_id_extension
//
// Parameters:
//   - id: The table id to collect
//   - opts: Additional table options, applied after the family defaults
//
// Returns:
//   - *table.Table: The collector
//   - error: An error if an option is invalid
//
// Example:
//
//	pmt, err := dvbsi.NewTable(format.TablePMT,
//	    table.WithCreatePolicy(func(k table.Key) bool { return k.TableIDExt == 0x0064 }),
//	)
func NewTable(id format.TableID, opts ...table.Option) (*table.Table, error) {
	var family table.Option
	switch {
	case id.IsSDT():
		family = table.SDTFamily()
	case id.IsEIT():
		family = table.EITFamily()
	}

	return table.New(id, append([]table.Option{family}, opts...)...)
}

// NewEITPresentFollowing creates a per-service collection of the
// present/following EIT, actual and other.
func NewEITPresentFollowing() (*table.Schedule, error) {
	return table.NewSchedule(table.WithClass(table.ClassPresentFollowing))
}

// NewEITSchedule creates a per-service collection of the schedule EIT,
// table ids 0x50 to 0x6f.
func NewEITSchedule() (*table.Schedule, error) {
	return table.NewSchedule(table.WithClass(table.ClassSchedule))
}

// NewEITCollection creates a per-service collection of every EIT table id.
func NewEITCollection() (*table.Schedule, error) {
	return table.NewSchedule(table.WithClass(table.ClassAll))
}

// ParseSection decodes one section and verifies its CRC_32.
//
// Parameters:
//   - buf: Exactly one section
//
// Returns:
//   - *section.Section: The decoded section
//   - error: A decoding error from package errs
func ParseSection(buf []byte) (*section.Section, error) {
	return section.Parse(buf, section.WithCRCCheck())
}

// TableIDByName maps the names used in configuration files ("pat",
// "sdt-actual", "eit-schedule", ...) to the first table id they cover.
func TableIDByName(name string) (format.TableID, error) {
	id, ok := tableNames[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", errs.ErrUnknownTableName, name)
	}

	return id, nil
}

var tableNames = map[string]format.TableID{
	"pat":          format.TablePAT,
	"pmt":          format.TablePMT,
	"nit-actual":   format.TableNITActual,
	"nit-other":    format.TableNITOther,
	"sdt-actual":   format.TableSDTActual,
	"sdt-other":    format.TableSDTOther,
	"bat":          format.TableBAT,
	"eit-pf":       format.TableEITPFActual,
	"eit-schedule": format.TableEITScheduleActual,
	"tdt":          format.TableTDT,
	"tot":          format.TableTOT,
}
