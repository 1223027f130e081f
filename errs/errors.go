// Package errs defines the sentinel errors returned by the dvbsi packages.
//
// Errors are compared with errors.Is; callers usually receive them wrapped
// with additional context via fmt.Errorf("...: %w", err).
package errs

import "errors"

// Section decoding errors.
var (
	// ErrSectionTooShort is returned when a buffer cannot hold the section header it announces.
	ErrSectionTooShort = errors.New("section buffer too short")
	// ErrSectionLength is returned when section_length disagrees with the buffer size.
	ErrSectionLength = errors.New("invalid section length")
	// ErrSyntaxIndicator is returned when a table requires the long section syntax but the flag is clear.
	ErrSyntaxIndicator = errors.New("section syntax indicator not set")
	// ErrSectionNumber is returned when section_number exceeds last_section_number.
	ErrSectionNumber = errors.New("section number exceeds last section number")
	// ErrSegmentNumber is returned when an EIT section lies outside its own segment bound.
	ErrSegmentNumber = errors.New("section number outside segment")
	// ErrCRCMismatch is returned when the trailing CRC_32 does not match the section bytes.
	ErrCRCMismatch = errors.New("section CRC mismatch")
	// ErrWrongTable is returned when a table specific decoder is given a section of another table.
	ErrWrongTable = errors.New("section belongs to a different table")
	// ErrInvalidTime is returned when a UTC_time field holds non-BCD or out of range digits.
	ErrInvalidTime = errors.New("invalid UTC time")
)

// Transport stream errors.
var (
	// ErrPacketSize is returned when a transport stream packet is not 188 bytes long.
	ErrPacketSize = errors.New("invalid transport stream packet size")
	// ErrPacketSync is returned when a packet does not start with the 0x47 sync byte.
	ErrPacketSync = errors.New("transport stream sync byte not found")
	// ErrFilterExists is returned when a section filter name is registered twice.
	ErrFilterExists = errors.New("section filter already registered")
	// ErrFilterNotFound is returned when removing a section filter that is not registered.
	ErrFilterNotFound = errors.New("section filter not found")
	// ErrFilterSize is returned when a filter value or mask exceeds the filter depth.
	ErrFilterSize = errors.New("invalid section filter size")
	// ErrReceiveTimeout is reported when a filter delivered no section within its timeout.
	ErrReceiveTimeout = errors.New("no section received before timeout")
)

// Snapshot, storage and configuration errors.
var (
	ErrInvalidHeaderSize      = errors.New("invalid snapshot header size")
	ErrInvalidSnapshot        = errors.New("invalid snapshot")
	ErrChecksumMismatch       = errors.New("snapshot checksum mismatch")
	ErrUnsupportedCompression = errors.New("unsupported compression type")
	ErrTableNotFound          = errors.New("table not found")
	ErrInvalidConfig          = errors.New("invalid configuration")
	ErrUnknownTableName       = errors.New("unknown table name")
	ErrMonitorRunning         = errors.New("monitor already running")
)
