package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/dvbsi/demux"
	"github.com/arloliu/dvbsi/format"
	"github.com/arloliu/dvbsi/internal/config"
	"github.com/arloliu/dvbsi/monitor"
	"github.com/arloliu/dvbsi/section"
	"github.com/arloliu/dvbsi/store"
)

func writeStream(t *testing.T) string {
	t.Helper()

	pat := section.NewBuilder(format.TablePAT, 0x0401).
		Version(1).
		Payload(section.AppendProgram(nil, section.Program{Number: 0, PID: format.PIDNIT})).
		Bytes()
	sdt := section.NewBuilder(format.TableSDTActual, 0x0401).
		Version(2).
		OriginalNetworkID(0x20fa).
		Bytes()

	p := demux.NewPacketizer()
	var buf bytes.Buffer
	buf.Write(p.Bytes(format.PIDPAT, pat))
	buf.Write(p.Bytes(format.PIDSDT, sdt))

	path := filepath.Join(t.TempDir(), "mux.ts")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	return path
}

func TestRun(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Input = writeStream(t)
	cfg.Tables = []string{monitor.PAT, monitor.SDTActual}
	cfg.Log.Level = "error"
	cfg.Store.Path = filepath.Join(dir, "si.sqlite")
	require.NoError(t, cfg.Normalize())

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, &out))

	summary := out.String()
	require.Contains(t, summary, "transport stream 0x0401, original network 0x20fa")
	require.Regexp(t, `pat\s+true\s+true\s+1/1`, summary)
	require.Regexp(t, `sdt-actual\s+true\s+true\s+1/1`, summary)

	st, err := store.Open(cfg.Store.Path)
	require.NoError(t, err)
	defer st.Close()

	tables, err := st.Tables()
	require.NoError(t, err)
	require.Len(t, tables, 2)
	require.Equal(t, monitor.PAT, tables[0].Name)
	require.Equal(t, monitor.SDTActual, tables[1].Name)
}

func TestRunMissingInput(t *testing.T) {
	cfg := config.Default()
	cfg.Input = filepath.Join(t.TempDir(), "absent.ts")

	err := run(context.Background(), cfg, &bytes.Buffer{})
	require.ErrorIs(t, err, os.ErrNotExist)
}
