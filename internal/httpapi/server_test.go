package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/dvbsi/demux"
	"github.com/arloliu/dvbsi/format"
	"github.com/arloliu/dvbsi/monitor"
	"github.com/arloliu/dvbsi/section"
	"github.com/arloliu/dvbsi/store"
)

type fakeSource struct {
	status []monitor.Status
	info   monitor.Info
	stats  demux.Stats
}

func (f *fakeSource) Status() []monitor.Status { return f.status }
func (f *fakeSource) Info() monitor.Info       { return f.info }
func (f *fakeSource) Stats() demux.Stats       { return f.stats }

type failingTables struct{}

func (failingTables) Tables() ([]store.TableInfo, error) {
	return nil, errors.New("database is locked")
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func get(t *testing.T, srv *Server, path string) (int, envelope) {
	t.Helper()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var env envelope
	if rec.Code != http.StatusMethodNotAllowed {
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}

	return rec.Code, env
}

func newFakeSource() *fakeSource {
	tdt := section.NewShortBuilder(format.TableTDT).
		Payload(section.AppendUTCTime(nil, time.Date(2024, time.May, 2, 18, 4, 0, 0, time.UTC))).
		MustSection()

	return &fakeSource{
		status: []monitor.Status{
			{Name: monitor.PAT, Active: true, Complete: true, Received: 1, Expected: 1},
			{Name: monitor.SDTActual, Active: true, Received: 1, Expected: 3},
		},
		info: monitor.Info{
			NetworkPID:        format.PIDNIT,
			TransportStreamID: 0x0401,
			OriginalNetworkID: 0x20fa,
			NetworkID:         0x3001,
			Programs:          []section.Program{{Number: 0x64, PID: 0x100}},
			Transports:        []section.Transport{{TransportStreamID: 0x0401, OriginalNetworkID: 0x20fa}},
			TDT:               tdt,
		},
		stats: demux.Stats{Packets: 1200, Sections: 40, Repeated: 12},
	}
}

func TestStatus(t *testing.T) {
	srv, err := New(newFakeSource())
	require.NoError(t, err)

	code, env := get(t, srv, "/api/v1/status")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", env.Msg)

	var status []monitor.Status
	require.NoError(t, json.Unmarshal(env.Data, &status))
	require.Len(t, status, 2)
	require.Equal(t, 3, status[1].Expected)

	t.Run("one table", func(t *testing.T) {
		code, env := get(t, srv, "/api/v1/status/sdt-actual")
		require.Equal(t, http.StatusOK, code)
		require.JSONEq(t, `{"name":"sdt-actual","active":true,"complete":false,"received":1,"expected":3}`, string(env.Data))
	})

	t.Run("unknown table", func(t *testing.T) {
		code, env := get(t, srv, "/api/v1/status/bat")
		require.Equal(t, http.StatusNotFound, code)
		require.Equal(t, http.StatusNotFound, env.Code)
		require.Contains(t, env.Msg, "bat")
	})

	t.Run("method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/status", nil))
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestInfo(t *testing.T) {
	srv, err := New(newFakeSource())
	require.NoError(t, err)

	code, env := get(t, srv, "/api/v1/info")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{
		"network_pid": "0x0010",
		"tsid": 1025,
		"onid": 8442,
		"nid": 12289,
		"programs": [{"number": 100, "pid": "0x0100"}],
		"transports": [{"tsid": 1025, "onid": 8442}],
		"utc": "2024-05-02T18:04:00Z"
	}`, string(env.Data))

	t.Run("empty", func(t *testing.T) {
		srv, err := New(&fakeSource{})
		require.NoError(t, err)

		_, env := get(t, srv, "/api/v1/info")
		require.JSONEq(t, `{"network_pid":"0x0000","tsid":0,"onid":0,"nid":0,"programs":[],"transports":[]}`, string(env.Data))
	})
}

func TestStats(t *testing.T) {
	srv, err := New(newFakeSource())
	require.NoError(t, err)

	code, env := get(t, srv, "/api/v1/stats")
	require.Equal(t, http.StatusOK, code)

	var stats demux.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	require.Equal(t, uint64(1200), stats.Packets)
	require.Equal(t, uint64(12), stats.Repeated)
}

func TestTables(t *testing.T) {
	t.Run("no store", func(t *testing.T) {
		srv, err := New(newFakeSource())
		require.NoError(t, err)

		code, _ := get(t, srv, "/api/v1/tables")
		require.Equal(t, http.StatusNotFound, code)
	})

	t.Run("store", func(t *testing.T) {
		st, err := store.Open(":memory:", store.WithCompression(format.CompressionS2))
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })

		pat := section.NewBuilder(format.TablePAT, 0x0401).
			Payload(section.AppendProgram(nil, section.Program{Number: 0x64, PID: 0x100})).
			MustSection()
		require.NoError(t, st.SaveTable(monitor.PAT, []*section.Section{pat}))

		srv, err := New(newFakeSource(), WithTables(st))
		require.NoError(t, err)

		code, env := get(t, srv, "/api/v1/tables")
		require.Equal(t, http.StatusOK, code)

		var tables []tableInfo
		require.NoError(t, json.Unmarshal(env.Data, &tables))
		require.Len(t, tables, 1)
		require.Equal(t, monitor.PAT, tables[0].Name)
		require.Equal(t, 1, tables[0].Sections)
		require.Positive(t, tables[0].Size)
	})

	t.Run("store error", func(t *testing.T) {
		srv, err := New(newFakeSource(), WithTables(failingTables{}))
		require.NoError(t, err)

		code, env := get(t, srv, "/api/v1/tables")
		require.Equal(t, http.StatusInternalServerError, code)
		require.Contains(t, env.Msg, "locked")
	})
}
