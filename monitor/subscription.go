package monitor

import (
	"fmt"
	"strings"

	"github.com/arloliu/dvbsi/demux"
	"github.com/arloliu/dvbsi/format"
)

// Subscription names.
const (
	PAT                 = "pat"
	PMT                 = "pmt"
	NITActual           = "nit-actual"
	NITOther            = "nit-other"
	SDTActual           = "sdt-actual"
	SDTOther            = "sdt-other"
	BAT                 = "bat"
	EITPresentFollowing = "eit-pf"
	EITSchedule         = "eit-schedule"
	TDT                 = "tdt"
	TOT                 = "tot"
)

// AllTables lists every subscription in start order.
var AllTables = []string{PAT, PMT, NITActual, NITOther, SDTActual, SDTOther, BAT, EITPresentFollowing, EITSchedule, TDT, TOT}

type subscription struct {
	pid     format.PID
	matches []demux.Match
}

func defaultSubscriptions(networkPID format.PID) map[string]subscription {
	return map[string]subscription{
		PAT:       {pid: format.PIDPAT, matches: []demux.Match{demux.TableMatch(format.TablePAT, 0xff)}},
		NITActual: {pid: networkPID, matches: []demux.Match{demux.TableMatch(format.TableNITActual, 0xff)}},
		NITOther:  {pid: networkPID, matches: []demux.Match{demux.TableMatch(format.TableNITOther, 0xff)}},
		SDTActual: {pid: format.PIDSDT, matches: []demux.Match{demux.TableMatch(format.TableSDTActual, 0xff)}},
		SDTOther:  {pid: format.PIDSDT, matches: []demux.Match{demux.TableMatch(format.TableSDTOther, 0xff)}},
		BAT:       {pid: format.PIDSDT, matches: []demux.Match{demux.TableMatch(format.TableBAT, 0xff)}},
		EITPresentFollowing: {pid: format.PIDEIT, matches: []demux.Match{
			demux.TableMatch(format.TableEITPFActual, 0xfe),
		}},
		EITSchedule: {pid: format.PIDEIT, matches: []demux.Match{
			demux.TableMatch(format.TableEITScheduleActual, 0xf0),
			demux.TableMatch(format.TableEITScheduleOther, 0xf0),
		}},
		TDT: {pid: format.PIDTDT, matches: []demux.Match{demux.TableMatch(format.TableTDT, 0xff)}},
		TOT: {pid: format.PIDTDT, matches: []demux.Match{demux.TableMatch(format.TableTOT, 0xff)}},
	}
}

// filterName names the i-th demux filter of a subscription.
func filterName(name string, i int) string {
	if i == 0 {
		return name
	}

	return fmt.Sprintf("%s/%d", name, i)
}

// pmtFilterName names the filter of one program's PMT.
func pmtFilterName(program uint16) string {
	return fmt.Sprintf("%s/0x%04x", PMT, program)
}

// subscriptionOf maps a filter name back to its subscription.
func subscriptionOf(filter string) string {
	name, _, _ := strings.Cut(filter, "/")
	return name
}
