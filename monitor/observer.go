package monitor

import (
	"github.com/arloliu/dvbsi/format"
	"github.com/arloliu/dvbsi/section"
	"github.com/arloliu/dvbsi/table"
)

// Event reports the outcome of one section or failure.
type Event struct {
	// Table is the subscription name, e.g. "sdt-actual".
	Table  string
	PID    format.PID
	Result table.Result
	// Section is nil for failures.
	Section *section.Section
	Err     error

	Received int
	Expected int
}

// Warning reports an inconsistency between tables, such as a PAT and an
// SDT announcing different transport stream ids.
type Warning struct {
	Table   string
	Section *section.Section
	Message string
}

// Observer receives monitor notifications. Calls are made from the
// goroutine feeding the monitor.
type Observer interface {
	OnSection(ev Event)
	OnWarning(w Warning)
}

// ObserverFuncs adapts functions to Observer; nil fields are skipped.
type ObserverFuncs struct {
	Section func(ev Event)
	Warning func(w Warning)
}

func (o ObserverFuncs) OnSection(ev Event) {
	if o.Section != nil {
		o.Section(ev)
	}
}

func (o ObserverFuncs) OnWarning(w Warning) {
	if o.Warning != nil {
		o.Warning(w)
	}
}
