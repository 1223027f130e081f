package table

import (
	"fmt"
	"strings"
)

// Flags is the set of positive outcomes of a Test or Save call.
// Several flags may be reported by a single call.
type Flags uint16

const (
	NewSection           Flags = 1 << iota // section number not stored before
	SectionReplaced                        // stored section differs in CRC or version
	ObsoleteSections                       // sections were evicted by this call
	NewSubTable                            // sub-table created
	NewVersion                             // first version seen by the sub-table
	VersionChanged                         // version differs from the adopted one
	ObsoleteSubTables                      // schedule sub-tables were removed
	CompleteSubTable                       // addressed sub-table became or stayed complete
	NewServiceTable                        // service table created
	CompleteServiceTable                   // addressed service table is complete
	CompleteTable                          // whole container is complete
)

// Stored is the set of flags meaning the section was inserted by Save.
const Stored = NewSection | VersionChanged | SectionReplaced

var flagNames = [...]string{
	"NewSection",
	"SectionReplaced",
	"ObsoleteSections",
	"NewSubTable",
	"NewVersion",
	"VersionChanged",
	"ObsoleteSubTables",
	"CompleteSubTable",
	"NewServiceTable",
	"CompleteServiceTable",
	"CompleteTable",
}

// Has reports whether any flag of mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask != 0
}

func (f Flags) String() string {
	if f == 0 {
		return "0"
	}

	var names []string
	for i, name := range flagNames {
		if f&(1<<i) != 0 {
			names = append(names, name)
		}
	}

	return strings.Join(names, "|")
}

// Reason tells why a section was ignored. Ignored sections are outside the
// scope of the container and never an error.
type Reason uint8

const (
	NotMonitoringSection Reason = iota + 1 // section belongs to another sub-table
	NotMonitoringService                   // section belongs to another service
	NotMonitoringTable                     // section belongs to another table
)

func (r Reason) String() string {
	switch r {
	case NotMonitoringSection:
		return "NotMonitoringSection"
	case NotMonitoringService:
		return "NotMonitoringService"
	case NotMonitoringTable:
		return "NotMonitoringTable"
	default:
		return "Unknown"
	}
}

// ErrorKind classifies failures. ErrorOnSaving is raised by the containers;
// the others originate upstream and are reported through the same channel.
type ErrorKind uint8

const (
	ErrorOnSaving     ErrorKind = iota + 1 // container could not create a sub-table
	ErrorOnReceiving                       // demultiplexer read failure
	ReceivingTimedOut                      // filter delivered nothing in time
	ErrorOnParsing                         // section decoding failed
)

func (e ErrorKind) String() string {
	switch e {
	case ErrorOnSaving:
		return "ErrorOnSaving"
	case ErrorOnReceiving:
		return "ErrorOnReceiving"
	case ReceivingTimedOut:
		return "ReceivingTimedOut"
	case ErrorOnParsing:
		return "ErrorOnParsing"
	default:
		return "Unknown"
	}
}

type resultKind uint8

const (
	kindOk resultKind = iota
	kindIgnored
	kindError
	kindNotTested
)

// Result is the outcome of Test and Save: Ok with a set of Flags, Ignored with
// a Reason, or Err with an ErrorKind. The zero value is Ok(0), which means the
// section is already stored unchanged.
//
// NotTested is only an input: passing it to Save makes the container compute
// the Test outcome itself.
type Result struct {
	kind   resultKind
	flags  Flags
	reason Reason
	err    ErrorKind
}

// NotTested asks Save to run Test internally.
var NotTested = Result{kind: kindNotTested}

// Ok returns a successful result carrying flags.
func Ok(flags Flags) Result {
	return Result{kind: kindOk, flags: flags}
}

// Ignored returns a result for a section outside the container's scope.
func Ignored(reason Reason) Result {
	return Result{kind: kindIgnored, reason: reason}
}

// Err returns a failed result.
func Err(kind ErrorKind) Result {
	return Result{kind: kindError, err: kind}
}

// IsOk reports whether r carries flags.
func (r Result) IsOk() bool {
	return r.kind == kindOk
}

// IsNotTested reports whether r is the NotTested sentinel.
func (r Result) IsNotTested() bool {
	return r.kind == kindNotTested
}

// Flags returns the flags of an Ok result and zero otherwise.
func (r Result) Flags() Flags {
	if r.kind != kindOk {
		return 0
	}

	return r.flags
}

// Has reports whether r is Ok and carries any flag of mask.
func (r Result) Has(mask Flags) bool {
	return r.Flags().Has(mask)
}

// Reason returns the reason of an Ignored result.
func (r Result) Reason() (Reason, bool) {
	return r.reason, r.kind == kindIgnored
}

// Error returns the kind of an Err result.
func (r Result) Error() (ErrorKind, bool) {
	return r.err, r.kind == kindError
}

// With returns r with flags added. Non-Ok results are returned unchanged.
func (r Result) With(flags Flags) Result {
	if r.kind != kindOk {
		return r
	}
	r.flags |= flags

	return r
}

// Code returns the numeric code used on the wire of observer logs and the
// status API: the flag bits for Ok results and a negative code otherwise.
func (r Result) Code() int {
	switch r.kind {
	case kindOk:
		return int(r.flags)
	case kindNotTested:
		return -1
	case kindIgnored:
		switch r.reason {
		case NotMonitoringSection:
			return -3
		case NotMonitoringService:
			return -4
		default:
			return -5
		}
	default:
		switch r.err {
		case ErrorOnSaving:
			return -2
		case ErrorOnReceiving:
			return -6
		case ReceivingTimedOut:
			return -7
		default:
			return -8
		}
	}
}

func (r Result) String() string {
	switch r.kind {
	case kindOk:
		return fmt.Sprintf("Ok(%s)", r.flags)
	case kindIgnored:
		return fmt.Sprintf("Ignored(%s)", r.reason)
	case kindError:
		return fmt.Sprintf("Err(%s)", r.err)
	default:
		return "NotTested"
	}
}
