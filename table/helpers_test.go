package table

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/dvbsi/format"
	"github.com/arloliu/dvbsi/section"
)

func pmt(version, sn, lsn uint8) *section.Section {
	return section.NewBuilder(format.TablePMT, 0xf15a).
		Version(version).
		Number(sn, lsn).
		MustSection()
}

func sdt(ext uint16, version, sn, lsn uint8) *section.Section {
	return section.NewBuilder(format.TableSDTActual, ext).
		Version(version).
		Number(sn, lsn).
		OriginalNetworkID(0x1234).
		MustSection()
}

type eitParams struct {
	tableID     format.TableID
	serviceID   uint16
	version     uint8
	sn, lsn     uint8
	segLast     uint8
	lastTableID format.TableID
}

func eit(p eitParams) *section.Section {
	if p.tableID == 0 {
		p.tableID = format.TableEITScheduleOther
	}
	if p.serviceID == 0 {
		p.serviceID = 0xf15a
	}
	if p.lastTableID == 0 {
		p.lastTableID = p.tableID
	}

	return section.NewBuilder(p.tableID, p.serviceID).
		Version(p.version).
		Number(p.sn, p.lsn).
		TransportStreamID(0x1234).
		OriginalNetworkID(0x5678).
		Segment(p.segLast, p.lastTableID).
		MustSection()
}

type saver interface {
	Test(s *section.Section) Result
	Save(s *section.Section, r Result) Result
}

// requireSave tests and saves s, checking the flags of both steps.
func requireSave(t *testing.T, c saver, s *section.Section, tested, saved Flags) {
	t.Helper()

	require.Equal(t, Ok(tested), c.Test(s), "test %s", s)
	require.Equal(t, Ok(saved), c.Save(s, NotTested), "save %s", s)
}

func requireStored(t *testing.T, c saver, s *section.Section) {
	t.Helper()

	require.Equal(t, Ok(0), c.Test(s), "test %s", s)
	require.Equal(t, Ok(0), c.Save(s, NotTested), "save %s", s)
}
