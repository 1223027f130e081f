// Package httpapi serves the progress of a running monitor as JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/arloliu/dvbsi/demux"
	"github.com/arloliu/dvbsi/internal/options"
	"github.com/arloliu/dvbsi/monitor"
	"github.com/arloliu/dvbsi/section"
	"github.com/arloliu/dvbsi/store"
)

// Source is the monitor surface read by the server.
type Source interface {
	Status() []monitor.Status
	Info() monitor.Info
	Stats() demux.Stats
}

// Tables lists persisted tables. *store.Store satisfies it.
type Tables interface {
	Tables() ([]store.TableInfo, error)
}

// Config holds server settings.
type Config struct {
	Logger *zap.Logger
	Tables Tables
}

// Option configures a Server.
type Option = options.Option[*Config]

// WithLogger sets the request error logger.
func WithLogger(l *zap.Logger) Option {
	return options.NoError(func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	})
}

// WithTables enables the /api/v1/tables route.
func WithTables(t Tables) Option {
	return options.NoError(func(c *Config) {
		c.Tables = t
	})
}

// Server routes the status API.
type Server struct {
	cfg    Config
	src    Source
	router *mux.Router
}

type response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

type program struct {
	Number uint16 `json:"number"`
	PID    string `json:"pid"`
}

type transport struct {
	TransportStreamID uint16 `json:"tsid"`
	OriginalNetworkID uint16 `json:"onid"`
}

type info struct {
	NetworkPID        string      `json:"network_pid"`
	TransportStreamID uint16      `json:"tsid"`
	OriginalNetworkID uint16      `json:"onid"`
	NetworkID         uint16      `json:"nid"`
	Programs          []program   `json:"programs"`
	Transports        []transport `json:"transports"`
	UTC               *time.Time  `json:"utc,omitempty"`
}

type tableInfo struct {
	Name        string    `json:"name"`
	Compression string    `json:"compression"`
	Sections    int       `json:"sections"`
	Size        int       `json:"size"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// New creates a server reading from src.
func New(src Source, opts ...Option) (*Server, error) {
	cfg := Config{Logger: zap.NewNop()}
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, src: src, router: mux.NewRouter()}
	s.router.HandleFunc("/api/v1/status", s.onStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/status/{table}", s.onTableStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/info", s.onInfo).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/stats", s.onStats).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/tables", s.onTables).Methods(http.MethodGet)

	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Handler:      s.router,
		Addr:         addr,
		WriteTimeout: 30 * time.Second,
		ReadTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.cfg.Logger.Info("status api listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	}
}

func (s *Server) onStatus(w http.ResponseWriter, _ *http.Request) {
	s.responseOK(w, s.src.Status())
}

func (s *Server) onTableStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["table"]
	for _, st := range s.src.Status() {
		if st.Name == name {
			s.responseOK(w, st)
			return
		}
	}

	s.response(w, http.StatusNotFound, "table not monitored: "+name, nil)
}

func (s *Server) onInfo(w http.ResponseWriter, _ *http.Request) {
	in := s.src.Info()

	out := info{
		NetworkPID:        in.NetworkPID.String(),
		TransportStreamID: in.TransportStreamID,
		OriginalNetworkID: in.OriginalNetworkID,
		NetworkID:         in.NetworkID,
		Programs:          make([]program, 0, len(in.Programs)),
		Transports:        make([]transport, 0, len(in.Transports)),
	}
	for _, p := range in.Programs {
		out.Programs = append(out.Programs, program{Number: p.Number, PID: p.PID.String()})
	}
	for _, t := range in.Transports {
		out.Transports = append(out.Transports, transport{TransportStreamID: t.TransportStreamID, OriginalNetworkID: t.OriginalNetworkID})
	}

	// TDT first, TOT as fallback
	for _, ts := range []*section.Section{in.TDT, in.TOT} {
		if ts == nil {
			continue
		}
		if utc, err := section.UTCTime(ts); err == nil {
			out.UTC = &utc
			break
		}
	}

	s.responseOK(w, out)
}

func (s *Server) onStats(w http.ResponseWriter, _ *http.Request) {
	s.responseOK(w, s.src.Stats())
}

func (s *Server) onTables(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.Tables == nil {
		s.response(w, http.StatusNotFound, "no store configured", nil)
		return
	}

	list, err := s.cfg.Tables.Tables()
	if err != nil {
		s.cfg.Logger.Error("list tables", zap.Error(err))
		s.response(w, http.StatusInternalServerError, err.Error(), nil)

		return
	}

	out := make([]tableInfo, 0, len(list))
	for _, t := range list {
		out = append(out, tableInfo{
			Name:        t.Name,
			Compression: t.Compression.String(),
			Sections:    t.Sections,
			Size:        t.Size,
			UpdatedAt:   t.UpdatedAt.UTC(),
		})
	}

	s.responseOK(w, out)
}

func (s *Server) responseOK(w http.ResponseWriter, data any) {
	s.response(w, http.StatusOK, "ok", data)
}

func (s *Server) response(w http.ResponseWriter, status int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response{Code: status, Msg: msg, Data: data}); err != nil {
		s.cfg.Logger.Warn("write response", zap.Error(err))
	}
}
