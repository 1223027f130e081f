package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableID_String(t *testing.T) {
	tests := []struct {
		id   TableID
		want string
	}{
		{TablePAT, "PAT"},
		{TablePMT, "PMT"},
		{TableNITActual, "NIT-actual"},
		{TableSDTOther, "SDT-other"},
		{TableBAT, "BAT"},
		{TableEITPFActual, "EIT-pf-actual"},
		{TableEITScheduleActual, "EIT-schedule-actual[0]"},
		{0x5a, "EIT-schedule-actual[10]"},
		{0x61, "EIT-schedule-other[1]"},
		{TableTOT, "TOT"},
		{0x80, "Unknown(0x80)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, tt.id.String())
		})
	}
}

func TestTableID_Families(t *testing.T) {
	require.True(t, TableEITPFOther.IsEITPresentFollowing())
	require.False(t, TableEITPFOther.IsEITSchedule())
	require.True(t, TableID(0x6f).IsEITSchedule())
	require.False(t, TableID(0x70).IsEIT())
	require.True(t, TableSDTOther.IsSDT())
	require.False(t, TableBAT.IsSDT())
}

func TestParseCompressionType(t *testing.T) {
	ct, ok := ParseCompressionType("ZSTD")
	require.True(t, ok)
	require.Equal(t, CompressionZstd, ct)

	ct, ok = ParseCompressionType("")
	require.True(t, ok)
	require.Equal(t, CompressionNone, ct)

	_, ok = ParseCompressionType("brotli")
	require.False(t, ok)
	require.Equal(t, "Unknown", CompressionType(0x9).String())
}

func TestTableID_RequiresLongSyntax(t *testing.T) {
	require.True(t, TablePAT.RequiresLongSyntax())
	require.True(t, TablePMT.RequiresLongSyntax())
	require.True(t, TableBAT.RequiresLongSyntax())
	require.True(t, TableID(0x55).RequiresLongSyntax())
	require.False(t, TableTDT.RequiresLongSyntax())
	require.False(t, TableTOT.RequiresLongSyntax())
	require.False(t, TableID(0x80).RequiresLongSyntax())
}
