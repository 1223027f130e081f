// Command sicollect reads an MPEG transport stream and collects its PSI/SI
// tables, optionally persisting them to SQLite and serving progress over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/arloliu/dvbsi/internal/config"
	"github.com/arloliu/dvbsi/internal/httpapi"
	"github.com/arloliu/dvbsi/internal/log"
	"github.com/arloliu/dvbsi/monitor"
	"github.com/arloliu/dvbsi/section"
	"github.com/arloliu/dvbsi/store"
)

func main() {
	configFile := flag.String("config", "", "YAML configuration file")
	input := flag.String("input", "", "Input MPEG TS file (use - for stdin)")
	db := flag.String("db", "", "SQLite database for completed tables")
	httpAddr := flag.String("http", "", "Serve status JSON on this address, e.g. :8080")
	tables := flag.String("tables", "", "Comma separated tables to collect (default all)")
	timeout := flag.Duration("timeout", 0, "Stop a table after receiving nothing for this long")
	level := flag.String("log-level", "", "Log level: debug, info, warn, error")
	writeConfig := flag.String("write-config", "", "Write the effective configuration to this file and exit")

	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Input = *input
		case "db":
			cfg.Store.Path = *db
		case "http":
			cfg.HTTP.Addr = *httpAddr
		case "tables":
			cfg.Tables = strings.Split(*tables, ",")
		case "timeout":
			cfg.Timeout = *timeout
		case "log-level":
			cfg.Log.Level = *level
		}
	})
	if err := cfg.Normalize(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *writeConfig != "" {
		if err := cfg.Write(*writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, out io.Writer) error {
	logger, closeLog := log.New(cfg.Log, os.Stderr)
	defer func() { _ = closeLog() }()

	r, closeInput, err := openInput(cfg.Input)
	if err != nil {
		return err
	}
	defer closeInput()

	opts := []monitor.Option{
		monitor.WithLogger(logger),
		monitor.WithTimeout(cfg.Timeout),
	}
	if len(cfg.Tables) > 0 {
		opts = append(opts, monitor.WithTables(cfg.Tables...))
	}

	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.Open(cfg.Store.Path,
			store.WithCompression(cfg.Compression()),
			store.WithLogger(logger))
		if err != nil {
			return err
		}
		defer st.Close()

		opts = append(opts, monitor.WithSink(st))
	}

	m, err := monitor.New(opts...)
	if err != nil {
		return err
	}

	warnings := 0
	m.AddObserver(monitor.ObserverFuncs{
		Warning: func(w monitor.Warning) {
			warnings++
			logger.Warn(w.Message, zap.String("table", w.Table))
		},
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpDone := make(chan error, 1)
	if cfg.HTTP.Addr != "" {
		var apiOpts []httpapi.Option
		apiOpts = append(apiOpts, httpapi.WithLogger(logger))
		if st != nil {
			apiOpts = append(apiOpts, httpapi.WithTables(st))
		}
		srv, err := httpapi.New(m, apiOpts...)
		if err != nil {
			return err
		}
		go func() {
			httpDone <- srv.ListenAndServe(runCtx, cfg.HTTP.Addr)
		}()
	} else {
		close(httpDone)
	}

	start := time.Now()
	runErr := m.Run(runCtx, r)
	cancel()

	if err := <-httpDone; err != nil {
		logger.Error("status api", zap.Error(err))
	}

	printSummary(out, m, warnings, time.Since(start))

	if errors.Is(runErr, context.Canceled) {
		logger.Info("interrupted")
		return nil
	}

	return runErr
}

func openInput(name string) (io.Reader, func(), error) {
	if name == "-" {
		return os.Stdin, func() {}, nil
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}

	return f, func() { _ = f.Close() }, nil
}

func printSummary(out io.Writer, m *monitor.Monitor, warnings int, elapsed time.Duration) {
	info := m.Info()
	stats := m.Stats()

	fmt.Fprintf(out, "transport stream 0x%04x, original network 0x%04x, network 0x%04x (NIT on %s)\n",
		info.TransportStreamID, info.OriginalNetworkID, info.NetworkID, info.NetworkPID)
	fmt.Fprintf(out, "%d programs, %d transport streams\n", len(info.Programs), len(info.Transports))
	if info.TDT != nil {
		if utc, err := section.UTCTime(info.TDT); err == nil {
			fmt.Fprintf(out, "stream time %s\n", utc.Format(time.RFC3339))
		}
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tACTIVE\tCOMPLETE\tSECTIONS")
	for _, st := range m.Status() {
		fmt.Fprintf(w, "%s\t%t\t%t\t%d/%d\n", st.Name, st.Active, st.Complete, st.Received, st.Expected)
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\n%d packets, %d sections (%d repeated), %d discontinuities, %d parse errors, %d timeouts, %d warnings in %s\n",
		stats.Packets, stats.Sections, stats.Repeated, stats.Discontinuities, stats.ParseErrors, stats.Timeouts,
		warnings, elapsed.Round(time.Millisecond))
}
