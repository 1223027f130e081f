package section

import (
	"testing"
	"time"

	"github.com/arloliu/dvbsi/errs"
	"github.com/arloliu/dvbsi/format"
	"github.com/stretchr/testify/require"
)

func TestPrograms(t *testing.T) {
	var payload []byte
	payload = AppendProgram(payload, Program{Number: 0, PID: 0x0010})
	payload = AppendProgram(payload, Program{Number: 0x0101, PID: 0x0100})
	payload = AppendProgram(payload, Program{Number: 0x0102, PID: 0x1fff})

	s := NewBuilder(format.TablePAT, 0x0401).Payload(payload).MustSection()
	programs, err := Programs(s)
	require.NoError(t, err)
	require.Equal(t, []Program{
		{Number: 0, PID: 0x0010},
		{Number: 0x0101, PID: 0x0100},
		{Number: 0x0102, PID: 0x1fff},
	}, programs)
	require.True(t, programs[0].IsNetwork())
	require.False(t, programs[1].IsNetwork())

	t.Run("wrong table", func(t *testing.T) {
		_, err := Programs(NewBuilder(format.TablePMT, 1).MustSection())
		require.ErrorIs(t, err, errs.ErrWrongTable)
	})

	t.Run("ragged loop", func(t *testing.T) {
		s := NewBuilder(format.TablePAT, 1).Payload([]byte{0x00, 0x01, 0xe0}).MustSection()
		_, err := Programs(s)
		require.ErrorIs(t, err, errs.ErrSectionLength)
	})
}

func TestTransports(t *testing.T) {
	want := []Transport{
		{TransportStreamID: 0x0401, OriginalNetworkID: 0x2174, Descriptors: []byte{0x41, 0x03, 0x01, 0x01, 0x01}},
		{TransportStreamID: 0x0402, OriginalNetworkID: 0x2174, Descriptors: []byte{}},
	}
	payload := AppendTransportLoop(nil, want)

	for _, id := range []format.TableID{format.TableNITActual, format.TableNITOther, format.TableBAT} {
		t.Run(id.String(), func(t *testing.T) {
			s := NewBuilder(id, 0x3001).Payload(payload).MustSection()
			got, err := Transports(s)
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}

	t.Run("skips network descriptors", func(t *testing.T) {
		p := []byte{0xf0, 0x03, 0x40, 0x01, 0x41}
		p = append(p, payload[2:]...)
		s := NewBuilder(format.TableNITActual, 0x3001).Payload(p).MustSection()
		got, err := Transports(s)
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, uint16(0x0402), got[1].TransportStreamID)
	})

	t.Run("loop overrun", func(t *testing.T) {
		s := NewBuilder(format.TableNITActual, 0x3001).Payload([]byte{0xf0, 0x00, 0xf0, 0x10, 0x00}).MustSection()
		_, err := Transports(s)
		require.ErrorIs(t, err, errs.ErrSectionLength)
	})

	t.Run("wrong table", func(t *testing.T) {
		_, err := Transports(NewBuilder(format.TablePAT, 1).MustSection())
		require.ErrorIs(t, err, errs.ErrWrongTable)
	})
}

func TestUTCTime(t *testing.T) {
	ts := time.Date(2021, time.March, 19, 12, 30, 5, 0, time.UTC)

	payload := AppendUTCTime(nil, ts)
	require.Equal(t, []byte{0xe7, 0x9c, 0x12, 0x30, 0x05}, payload)

	tdt := NewShortBuilder(format.TableTDT).Payload(payload).MustSection()
	got, err := UTCTime(tdt)
	require.NoError(t, err)
	require.Equal(t, ts, got)

	t.Run("TOT", func(t *testing.T) {
		tot := NewShortBuilder(format.TableTOT).Payload(append(payload, 0xf0, 0x00)).MustSection()
		got, err := UTCTime(tot)
		require.NoError(t, err)
		require.Equal(t, ts, got)
	})

	t.Run("invalid BCD", func(t *testing.T) {
		bad := NewShortBuilder(format.TableTDT).Payload([]byte{0xe7, 0x9c, 0x1a, 0x30, 0x00}).MustSection()
		_, err := UTCTime(bad)
		require.ErrorIs(t, err, errs.ErrInvalidTime)
	})

	t.Run("short", func(t *testing.T) {
		short := NewShortBuilder(format.TableTDT).Payload([]byte{0xe7, 0x9c}).MustSection()
		_, err := UTCTime(short)
		require.ErrorIs(t, err, errs.ErrSectionTooShort)
	})

	t.Run("wrong table", func(t *testing.T) {
		pat := NewBuilder(format.TablePAT, 1).MustSection()
		_, err := UTCTime(pat)
		require.ErrorIs(t, err, errs.ErrWrongTable)
	})
}
