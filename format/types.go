package format

import (
	"fmt"
	"strings"
)

type (
	// TableID is the table_id byte carried at offset 0 of every section.
	TableID uint8
	// PID is a 13-bit transport stream packet identifier.
	PID uint16
	// CompressionType selects the codec used for snapshot payloads.
	CompressionType uint8
)

const (
	TablePAT TableID = 0x00 // TablePAT is the program association table.
	TableCAT TableID = 0x01 // TableCAT is the conditional access table.
	TablePMT TableID = 0x02 // TablePMT is the program map table.

	TableTSDT TableID = 0x03 // TableTSDT is the transport stream description table.

	TableNITActual TableID = 0x40 // TableNITActual is the network information table of the actual network.
	TableNITOther  TableID = 0x41 // TableNITOther is the network information table of another network.
	TableSDTActual TableID = 0x42 // TableSDTActual is the service description table of the actual transport stream.
	TableSDTOther  TableID = 0x46 // TableSDTOther is the service description table of another transport stream.
	TableBAT       TableID = 0x4a // TableBAT is the bouquet association table.

	TableEITPFActual TableID = 0x4e // TableEITPFActual is the present/following EIT of the actual transport stream.
	TableEITPFOther  TableID = 0x4f // TableEITPFOther is the present/following EIT of another transport stream.

	TableEITScheduleActual     TableID = 0x50 // TableEITScheduleActual is the first schedule EIT of the actual transport stream.
	TableEITScheduleActualLast TableID = 0x5f // TableEITScheduleActualLast is the last schedule EIT of the actual transport stream.
	TableEITScheduleOther      TableID = 0x60 // TableEITScheduleOther is the first schedule EIT of another transport stream.
	TableEITScheduleOtherLast  TableID = 0x6f // TableEITScheduleOtherLast is the last schedule EIT of another transport stream.

	TableTDT TableID = 0x70 // TableTDT is the time and date table.
	TableTOT TableID = 0x73 // TableTOT is the time offset table.

	TableStuffing TableID = 0xff // TableStuffing marks the end of sections in a packet payload.
)

const (
	PIDPAT  PID = 0x0000 // PIDPAT carries the PAT.
	PIDCAT  PID = 0x0001 // PIDCAT carries the CAT.
	PIDTSDT PID = 0x0002 // PIDTSDT carries the TSDT.
	PIDNIT  PID = 0x0010 // PIDNIT carries NIT sections (default network PID).
	PIDSDT  PID = 0x0011 // PIDSDT carries SDT and BAT sections.
	PIDEIT  PID = 0x0012 // PIDEIT carries EIT sections.
	PIDTDT  PID = 0x0014 // PIDTDT carries TDT and TOT sections.
	PIDNull PID = 0x1fff // PIDNull is the null packet PID.

	PIDMask PID = 0x1fff // PIDMask masks the 13 significant PID bits.
)

const (
	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
)

// IsEITPresentFollowing reports whether t is a present/following EIT table id.
func (t TableID) IsEITPresentFollowing() bool {
	return t == TableEITPFActual || t == TableEITPFOther
}

// IsEITSchedule reports whether t is one of the 32 schedule EIT table ids.
func (t TableID) IsEITSchedule() bool {
	return t >= TableEITScheduleActual && t <= TableEITScheduleOtherLast
}

// IsEIT reports whether t belongs to the EIT family.
func (t TableID) IsEIT() bool {
	return t.IsEITPresentFollowing() || t.IsEITSchedule()
}

// IsSDT reports whether t is an SDT table id.
func (t TableID) IsSDT() bool {
	return t == TableSDTActual || t == TableSDTOther
}

// RequiresLongSyntax reports whether sections of t must use the extended
// section syntax (section_syntax_indicator set, trailing CRC_32).
func (t TableID) RequiresLongSyntax() bool {
	switch {
	case t <= TableTSDT:
		return true
	case t == TableNITActual, t == TableNITOther, t.IsSDT(), t == TableBAT, t.IsEIT():
		return true
	default:
		return false
	}
}

func (t TableID) String() string {
	switch {
	case t == TablePAT:
		return "PAT"
	case t == TableCAT:
		return "CAT"
	case t == TablePMT:
		return "PMT"
	case t == TableTSDT:
		return "TSDT"
	case t == TableNITActual:
		return "NIT-actual"
	case t == TableNITOther:
		return "NIT-other"
	case t == TableSDTActual:
		return "SDT-actual"
	case t == TableSDTOther:
		return "SDT-other"
	case t == TableBAT:
		return "BAT"
	case t == TableEITPFActual:
		return "EIT-pf-actual"
	case t == TableEITPFOther:
		return "EIT-pf-other"
	case t >= TableEITScheduleActual && t <= TableEITScheduleActualLast:
		return fmt.Sprintf("EIT-schedule-actual[%d]", t&0x0f)
	case t >= TableEITScheduleOther && t <= TableEITScheduleOtherLast:
		return fmt.Sprintf("EIT-schedule-other[%d]", t&0x0f)
	case t == TableTDT:
		return "TDT"
	case t == TableTOT:
		return "TOT"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint8(t))
	}
}

func (p PID) String() string {
	return fmt.Sprintf("0x%04x", uint16(p))
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// ParseCompressionType maps a configuration name to a CompressionType.
// Names are matched case-insensitively; the empty string selects CompressionNone.
func ParseCompressionType(name string) (CompressionType, bool) {
	switch strings.ToLower(name) {
	case "", "none":
		return CompressionNone, true
	case "zstd":
		return CompressionZstd, true
	case "s2":
		return CompressionS2, true
	case "lz4":
		return CompressionLZ4, true
	default:
		return 0, false
	}
}
