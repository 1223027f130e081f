package table

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/dvbsi/format"
	"github.com/arloliu/dvbsi/section"
)

const created = NewSubTable | NewSection | NewVersion

func newTable(t *testing.T, id format.TableID, opts ...Option) *Table {
	t.Helper()

	tbl, err := New(id, opts...)
	require.NoError(t, err)

	return tbl
}

func TestTable_SingleSection(t *testing.T) {
	sec6 := pmt(6, 0, 0)
	sec7 := pmt(7, 0, 0)
	tbl := newTable(t, format.TablePMT)

	require.False(t, tbl.IsComplete())
	require.Empty(t, tbl.Sections())

	// Test never modifies the table.
	require.Equal(t, Ok(created), tbl.Test(sec6))
	require.Equal(t, Ok(created), tbl.Test(sec6))
	require.Empty(t, tbl.Sections())

	require.Equal(t, Ok(created|CompleteSubTable|CompleteTable), tbl.Save(sec6, tbl.Test(sec6)))
	require.True(t, tbl.IsComplete())
	require.Equal(t, []*section.Section{sec6}, tbl.Sections())

	requireStored(t, tbl, sec6)
	require.Equal(t, Ok(0), tbl.Save(sec6, Ok(0)))
	require.True(t, tbl.IsComplete())

	require.Equal(t, Ok(VersionChanged|SectionReplaced), tbl.Test(sec7))
	require.Equal(t, Ok(0), tbl.Test(sec6))
	require.Equal(t, []*section.Section{sec6}, tbl.Sections())

	require.Equal(t,
		Ok(VersionChanged|SectionReplaced|ObsoleteSections|CompleteSubTable|CompleteTable),
		tbl.Save(sec7, NotTested))
	require.True(t, tbl.IsComplete())
	require.Equal(t, []*section.Section{sec7}, tbl.Sections())
	require.Equal(t, []*section.Section{sec6}, tbl.ObsoleteSections())

	tbl.Reset()
	require.False(t, tbl.IsComplete())
	require.Empty(t, tbl.Sections())
	require.Zero(t, tbl.Len())

	require.Equal(t, Ok(created|CompleteSubTable|CompleteTable), tbl.Save(sec6, NotTested))
	require.True(t, tbl.IsComplete())
	require.Equal(t, []*section.Section{sec6}, tbl.Sections())
}

func TestTable_MultipleSections(t *testing.T) {
	sec8 := []*section.Section{pmt(8, 0, 1), pmt(8, 1, 1)}
	sec9 := []*section.Section{pmt(9, 0, 1), pmt(9, 1, 1)}
	tbl := newTable(t, format.TablePMT)

	requireSave(t, tbl, sec8[0], created, created)
	require.False(t, tbl.IsComplete())
	requireSave(t, tbl, sec8[1], NewSection, NewSection|CompleteSubTable|CompleteTable)
	require.True(t, tbl.IsComplete())

	requireStored(t, tbl, sec8[1])
	requireStored(t, tbl, sec8[0])

	requireSave(t, tbl, sec9[0], VersionChanged|SectionReplaced, VersionChanged|SectionReplaced|ObsoleteSections)
	require.False(t, tbl.IsComplete())
	requireSave(t, tbl, sec9[1], SectionReplaced, SectionReplaced|ObsoleteSections|CompleteSubTable|CompleteTable)
	require.True(t, tbl.IsComplete())
	requireStored(t, tbl, sec9[0])
	requireStored(t, tbl, sec9[1])

	// Versions are not ordered: going back is a change like any other.
	require.Equal(t, Ok(VersionChanged|SectionReplaced|ObsoleteSections), tbl.Save(sec8[0], NotTested))
	require.False(t, tbl.IsComplete())
	require.Equal(t, Ok(SectionReplaced|ObsoleteSections|CompleteSubTable|CompleteTable), tbl.Save(sec8[1], NotTested))
	require.True(t, tbl.IsComplete())
	requireStored(t, tbl, sec8[0])

	tbl.Reset()
	require.Equal(t, Ok(created), tbl.Save(sec8[0], NotTested))
	require.Equal(t, Ok(NewSection|CompleteSubTable|CompleteTable), tbl.Save(sec8[1], NotTested))
	require.Equal(t, sec8, tbl.Sections())
}

func TestTable_SectionCountChange(t *testing.T) {
	sec8 := pmt(8, 0, 0)
	sec9 := []*section.Section{pmt(9, 0, 1), pmt(9, 1, 1)}
	tbl := newTable(t, format.TablePMT)

	require.Equal(t, Ok(created|CompleteSubTable|CompleteTable), tbl.Save(sec8, NotTested))

	requireSave(t, tbl, sec9[0], VersionChanged|SectionReplaced, VersionChanged|SectionReplaced|ObsoleteSections)
	require.False(t, tbl.IsComplete())
	require.Equal(t, Ok(NewSection|CompleteSubTable|CompleteTable), tbl.Save(sec9[1], NotTested))
	require.True(t, tbl.IsComplete())

	// Shrinking back to one section evicts the sections beyond it first.
	require.Equal(t,
		Ok(VersionChanged|SectionReplaced|ObsoleteSections|CompleteSubTable|CompleteTable),
		tbl.Save(sec8, NotTested))
	require.Equal(t, []*section.Section{sec9[1], sec9[0]}, tbl.ObsoleteSections())
	require.Equal(t, []*section.Section{sec8}, tbl.Sections())
	requireStored(t, tbl, sec8)
}

func TestTable_DifferentCRC(t *testing.T) {
	build := func(sn uint8, crc uint32) *section.Section {
		return section.NewBuilder(format.TablePMT, 0xf15a).Version(8).Number(sn, 1).CRC(crc).MustSection()
	}
	sec00 := build(0, 0xc1c2c3c4)
	sec10 := build(1, 0xc1c2c3c5)
	sec01 := build(0, 0xc1c2c3c6)
	sec11 := build(1, 0xc1c2c3c7)
	tbl := newTable(t, format.TablePMT)

	require.Equal(t, Ok(created), tbl.Save(sec00, NotTested))
	require.Equal(t, Ok(NewSection|CompleteSubTable|CompleteTable), tbl.Save(sec10, NotTested))
	requireStored(t, tbl, sec00)
	requireStored(t, tbl, sec10)

	requireSave(t, tbl, sec01, SectionReplaced, SectionReplaced|ObsoleteSections|CompleteSubTable|CompleteTable)
	require.Equal(t, []*section.Section{sec00}, tbl.ObsoleteSections())
	requireSave(t, tbl, sec11, SectionReplaced, SectionReplaced|ObsoleteSections|CompleteSubTable|CompleteTable)
	require.True(t, tbl.IsComplete())

	requireStored(t, tbl, sec01)
	requireStored(t, tbl, sec11)
}

func TestTable_DifferentTableID(t *testing.T) {
	cat := section.NewBuilder(format.TableCAT, 0xf15a).Version(6).MustSection()
	other := pmt(6, 0, 0)
	tbl := newTable(t, format.TableCAT)

	require.Equal(t, Ok(created|CompleteSubTable|CompleteTable), tbl.Save(cat, NotTested))
	require.Equal(t, Ignored(NotMonitoringTable), tbl.Test(other))
	require.Equal(t, Ignored(NotMonitoringTable), tbl.Save(other, NotTested))
	require.Equal(t, Ignored(NotMonitoringTable), tbl.Save(other, Ok(created)))
	require.True(t, tbl.IsComplete())
	requireStored(t, tbl, cat)

	tbl.Reset()
	require.Equal(t, Ignored(NotMonitoringTable), tbl.Save(other, NotTested))
	require.False(t, tbl.IsComplete())
	require.Nil(t, tbl.NewSubTable(BasicKey(other)))
}

func TestTable_PassThrough(t *testing.T) {
	tbl := newTable(t, format.TablePMT)
	s := pmt(1, 0, 0)

	require.Equal(t, Err(ErrorOnReceiving), tbl.Save(s, Err(ErrorOnReceiving)))
	require.Equal(t, Ignored(NotMonitoringSection), tbl.Save(s, Ignored(NotMonitoringSection)))
	require.Zero(t, tbl.Len())

	// A stale test outcome cannot create a sub-table.
	require.Equal(t, Err(ErrorOnSaving), tbl.Save(s, Ok(NewSection)))
	require.Zero(t, tbl.Len())
}

func TestTable_SDT(t *testing.T) {
	t.Run("two sub-tables", func(t *testing.T) {
		sec0, sec1 := sdt(0xf15a, 8, 0, 0), sdt(0xf15b, 8, 0, 0)
		tbl := newTable(t, format.TableSDTActual, SDTFamily())

		requireSave(t, tbl, sec0, created, created|CompleteSubTable|CompleteTable)
		requireSave(t, tbl, sec1, created, created|CompleteSubTable|CompleteTable)
		require.Equal(t, 2, tbl.Len())

		tbl.Reset()
		require.False(t, tbl.IsComplete())
		requireSave(t, tbl, sec0, created, created|CompleteSubTable|CompleteTable)
	})

	t.Run("pre-created sub-tables", func(t *testing.T) {
		sec0, sec1 := sdt(0xf15a, 8, 0, 0), sdt(0xf15b, 8, 0, 0)
		tbl := newTable(t, format.TableSDTActual, SDTFamily())

		st0 := tbl.NewSubTable(SDTKey(sec0))
		require.NotNil(t, st0)
		require.Same(t, st0, tbl.NewSubTable(SDTKey(sec0)))
		require.NotNil(t, tbl.NewSubTable(SDTKey(sec1)))
		require.False(t, tbl.IsComplete())

		received, expected := tbl.Progress()
		require.Equal(t, 0, received)
		require.Equal(t, 2, expected)

		requireSave(t, tbl, sec0, NewSection|NewVersion, NewSection|NewVersion|CompleteSubTable)
		require.False(t, tbl.IsComplete())
		requireSave(t, tbl, sec1, NewSection|NewVersion, NewSection|NewVersion|CompleteSubTable|CompleteTable)
		require.True(t, tbl.IsComplete())
	})

	t.Run("multiple sections interleaved", func(t *testing.T) {
		sec00, sec01 := sdt(0xf15a, 8, 0, 1), sdt(0xf15a, 8, 1, 1)
		sec10, sec11 := sdt(0xf15b, 8, 0, 1), sdt(0xf15b, 8, 1, 1)
		tbl := newTable(t, format.TableSDTActual, SDTFamily())

		requireSave(t, tbl, sec00, created, created)
		requireSave(t, tbl, sec10, created, created)
		requireSave(t, tbl, sec01, NewSection, NewSection|CompleteSubTable)
		require.False(t, tbl.IsComplete())
		requireSave(t, tbl, sec11, NewSection, NewSection|CompleteSubTable|CompleteTable)
		require.True(t, tbl.IsComplete())

		require.Equal(t, []*section.Section{sec00, sec01, sec10, sec11}, tbl.Sections())

		var keys []Key
		for st := range tbl.SubTables() {
			keys = append(keys, st.Key())
		}
		require.Equal(t, []Key{SDTKey(sec00), SDTKey(sec10)}, keys)
	})

	t.Run("other network is a different sub-table", func(t *testing.T) {
		a := sdt(0xf15a, 1, 0, 0)
		b := section.NewBuilder(format.TableSDTActual, 0xf15a).Version(1).OriginalNetworkID(0x9999).MustSection()
		tbl := newTable(t, format.TableSDTActual, SDTFamily())

		require.Equal(t, Ok(created|CompleteSubTable|CompleteTable), tbl.Save(a, NotTested))
		require.Equal(t, Ok(created), tbl.Test(b))
	})
}

func TestTable_CreatePolicy(t *testing.T) {
	allowed := pmt(1, 0, 0)
	denied := section.NewBuilder(format.TablePMT, 0x0001).Version(1).MustSection()

	tbl := newTable(t, format.TablePMT, WithCreatePolicy(func(k Key) bool {
		return k.TableIDExt == 0xf15a
	}))

	require.Equal(t, Ok(created|CompleteSubTable|CompleteTable), tbl.Save(allowed, NotTested))
	require.Equal(t, Err(ErrorOnSaving), tbl.Save(denied, NotTested))
	require.Equal(t, 1, tbl.Len())

	// Pre-created sub-tables bypass the policy.
	require.NotNil(t, tbl.NewSubTable(BasicKey(denied)))
	require.Equal(t, Ok(NewSection|NewVersion|CompleteSubTable|CompleteTable), tbl.Save(denied, NotTested))
}

func TestTable_Options(t *testing.T) {
	_, err := New(format.TablePMT, WithKeyFunc(nil))
	require.Error(t, err)

	_, err = New(format.TablePMT, WithCreatePolicy(nil))
	require.Error(t, err)

	tbl := newTable(t, format.TableEITScheduleActual, EITFamily())
	s := eit(eitParams{tableID: format.TableEITScheduleActual, sn: 0, lsn: 8})
	require.Equal(t, Ok(created), tbl.Save(s, NotTested))
	require.True(t, tbl.SubTableOf(s).Segmented())

	received, expected := tbl.Progress()
	require.Equal(t, 1, received)
	require.Equal(t, 2, expected)
}

func TestTable_ObsoleteSectionsFollowLatestSave(t *testing.T) {
	a6, a7 := pmt(6, 0, 0), pmt(7, 0, 0)
	b := section.NewBuilder(format.TablePMT, 0x0002).Version(1).MustSection()
	tbl := newTable(t, format.TablePMT)

	tbl.Save(a6, NotTested)
	tbl.Save(a7, NotTested)
	require.Equal(t, []*section.Section{a6}, tbl.ObsoleteSections())

	tbl.Save(b, NotTested)
	require.Empty(t, tbl.ObsoleteSections())
}

func TestTable_OrderIndependence(t *testing.T) {
	secs := []*section.Section{pmt(3, 0, 3), pmt(3, 1, 3), pmt(3, 2, 3), pmt(3, 3, 3)}
	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {2, 0, 3, 1}}

	for _, order := range orders {
		tbl := newTable(t, format.TablePMT)
		for i, idx := range order {
			res := tbl.Save(secs[idx], NotTested)
			require.Equal(t, i == len(order)-1, res.Has(CompleteTable))
		}
		require.True(t, tbl.IsComplete())
		require.Equal(t, secs, tbl.Sections())
	}
}
