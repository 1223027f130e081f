// Package monitor collects the PSI/SI tables of a transport stream.
//
// A Monitor owns one collector per subscription (PAT, PMT, NIT actual and
// other, SDT actual and other, BAT, EIT present/following, EIT schedule),
// installs the matching demux filters and routes every section to exactly one
// collector. Completed tables drive dependent ones: the PAT announces the PMTs
// and the network PID, the NIT actual announces the transport streams whose
// SDT other is expected.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arloliu/dvbsi"
	"github.com/arloliu/dvbsi/demux"
	"github.com/arloliu/dvbsi/errs"
	"github.com/arloliu/dvbsi/format"
	"github.com/arloliu/dvbsi/internal/options"
	"github.com/arloliu/dvbsi/section"
	"github.com/arloliu/dvbsi/table"
)

// Collector is the common surface of table.Table and table.Schedule.
type Collector interface {
	Save(s *section.Section, r table.Result) table.Result
	IsComplete() bool
	Progress() (received, expected int)
	Sections() []*section.Section
	ObsoleteSections() []*section.Section
	Reset()
}

// Sink persists collected tables. *store.Store satisfies it.
type Sink interface {
	SaveTable(name string, sections []*section.Section) error
	DeleteSections(name string, obsolete []*section.Section) (int, error)
}

// Config holds monitor settings.
type Config struct {
	Tables       []string
	Timeout      time.Duration
	Logger       *zap.Logger
	Sink         Sink
	DemuxOptions []demux.Option
}

// Option configures a Monitor.
type Option = options.Option[*Config]

// WithTables selects the subscriptions started by Start. Default: AllTables.
func WithTables(names ...string) Option {
	return options.New(func(c *Config) error {
		for _, name := range names {
			if _, err := dvbsi.TableIDByName(name); err != nil {
				return err
			}
		}
		c.Tables = slices.Clone(names)

		return nil
	})
}

// WithTimeout stops a subscription that receives nothing for d. Zero, the
// default, waits forever.
func WithTimeout(d time.Duration) Option {
	return options.New(func(c *Config) error {
		if d < 0 {
			return fmt.Errorf("%w: negative timeout %s", errs.ErrInvalidConfig, d)
		}
		c.Timeout = d

		return nil
	})
}

// WithLogger sets the logger of the monitor and its demultiplexer.
func WithLogger(l *zap.Logger) Option {
	return options.NoError(func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	})
}

// WithSink persists every completed table and prunes obsolete sections.
func WithSink(s Sink) Option {
	return options.NoError(func(c *Config) {
		c.Sink = s
	})
}

// WithDemuxOptions passes options to the demultiplexer.
func WithDemuxOptions(opts ...demux.Option) Option {
	return options.NoError(func(c *Config) {
		c.DemuxOptions = append(c.DemuxOptions, opts...)
	})
}

// Info holds what the monitor learned about the transport stream.
type Info struct {
	NetworkPID        format.PID
	TransportStreamID uint16
	OriginalNetworkID uint16
	NetworkID         uint16
	Programs          []section.Program
	Transports        []section.Transport
	// TDT and TOT are the latest time sections.
	TDT *section.Section
	TOT *section.Section
}

// Status is the progress of one subscription.
type Status struct {
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Complete bool   `json:"complete"`
	Received int    `json:"received"`
	Expected int    `json:"expected"`
}

// Monitor routes demultiplexed sections to table collectors.
//
// Start, StartTable, StopTable, Feed and Run must be called from one
// goroutine. Stop, Status, Info, IsAllComplete and Stats may be called from
// any. Observers run with the monitor locked and must not call its methods.
type Monitor struct {
	mu sync.Mutex

	cfg        Config
	demux      *demux.Demux
	subs       map[string]subscription
	collectors map[string]Collector
	active     map[string]bool
	pmtFilters []string
	observers  []Observer
	info       Info

	cancel   context.CancelFunc
	finished bool
	stopping bool
}

// New creates a monitor with empty collectors. No filter is installed until
// Start or Run.
func New(opts ...Option) (*Monitor, error) {
	cfg := Config{
		Tables: slices.Clone(AllTables),
		Logger: zap.NewNop(),
	}
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	m := &Monitor{
		cfg:        cfg,
		subs:       defaultSubscriptions(format.PIDNIT),
		collectors: make(map[string]Collector),
		active:     make(map[string]bool),
		info:       Info{NetworkPID: format.PIDNIT},
	}

	for _, name := range []string{PAT, PMT, NITActual, NITOther, SDTActual, SDTOther, BAT} {
		id, err := dvbsi.TableIDByName(name)
		if err != nil {
			return nil, err
		}
		t, err := dvbsi.NewTable(id)
		if err != nil {
			return nil, err
		}
		m.collectors[name] = t
	}

	pf, err := dvbsi.NewEITPresentFollowing()
	if err != nil {
		return nil, err
	}
	schedule, err := dvbsi.NewEITSchedule()
	if err != nil {
		return nil, err
	}
	m.collectors[EITPresentFollowing] = pf
	m.collectors[EITSchedule] = schedule

	demuxOpts := append([]demux.Option{
		demux.WithLogger(cfg.Logger),
		demux.WithTimeout(cfg.Timeout),
	}, cfg.DemuxOptions...)
	m.demux, err = demux.New(m.handle, demuxOpts...)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// AddObserver registers o for notifications.
func (m *Monitor) AddObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.observers = append(m.observers, o)
}

// Collector returns the collector of a subscription, or nil for TDT, TOT and
// unknown names. The collector must not be used while the monitor runs.
func (m *Monitor) Collector(name string) Collector {
	return m.collectors[name]
}

// Start installs the filters of the configured subscriptions. The PMT
// subscription starts when the PAT completes.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range m.cfg.Tables {
		if name == PMT {
			continue
		}
		if err := m.startTable(name); err != nil {
			return err
		}
	}

	return nil
}

// StartTable resets and (re)starts one subscription.
func (m *Monitor) StartTable(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.startTable(name)
}

// StopTable removes the filters of one subscription. Its collector keeps
// the sections received so far.
func (m *Monitor) StopTable(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stopTable(name)
}

// Stop removes every filter. A running Run is canceled and removes the
// filters when it returns; Stop may be called from any goroutine for that.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.stopping = true
		m.cancel()

		return
	}
	m.stopAll()
}

func (m *Monitor) stopAll() {
	for _, name := range AllTables {
		if err := m.stopTable(name); err != nil {
			m.cfg.Logger.Warn("stop table", zap.String("table", name), zap.Error(err))
		}
	}
}

func (m *Monitor) startTable(name string) error {
	if m.active[name] {
		if err := m.stopTable(name); err != nil {
			return err
		}
	}
	if name == PMT {
		return m.startPMT()
	}

	sub, ok := m.subs[name]
	if !ok {
		return fmt.Errorf("%w: %q", errs.ErrUnknownTableName, name)
	}

	if c := m.collectors[name]; c != nil {
		c.Reset()
	}
	if name == SDTOther {
		m.expectSDTOther()
	}

	for i, match := range sub.matches {
		err := m.demux.AddFilter(demux.Filter{Name: filterName(name, i), PID: sub.pid, Match: match})
		if err != nil {
			return fmt.Errorf("start %s: %w", name, err)
		}
	}
	m.active[name] = true

	m.cfg.Logger.Info("table started", zap.String("table", name), zap.Stringer("pid", sub.pid))

	return nil
}

// startPMT expects one PMT sub-table per program of the PAT.
func (m *Monitor) startPMT() error {
	pmt, _ := m.collectors[PMT].(*table.Table)
	pmt.Reset()

	if len(m.info.Programs) == 0 {
		m.cfg.Logger.Info("no programs announced, PMT not started")
		return nil
	}

	for _, p := range m.info.Programs {
		pmt.NewSubTable(table.Key{TableID: format.TablePMT, TableIDExt: p.Number})

		name := pmtFilterName(p.Number)
		err := m.demux.AddFilter(demux.Filter{
			Name:  name,
			PID:   p.PID,
			Match: demux.TableMatch(format.TablePMT, 0xff).WithExtension(p.Number),
		})
		if err != nil {
			return fmt.Errorf("start %s: %w", name, err)
		}
		m.pmtFilters = append(m.pmtFilters, name)
	}
	m.active[PMT] = true

	m.cfg.Logger.Info("table started", zap.String("table", PMT), zap.Int("programs", len(m.info.Programs)))

	return nil
}

func (m *Monitor) stopTable(name string) error {
	if !m.active[name] {
		return nil
	}
	delete(m.active, name)

	filters := m.pmtFilters
	if name == PMT {
		m.pmtFilters = nil
	} else {
		filters = nil
		for i := range m.subs[name].matches {
			filters = append(filters, filterName(name, i))
		}
	}

	for _, f := range filters {
		if err := m.demux.RemoveFilter(f); err != nil {
			return fmt.Errorf("stop %s: %w", name, err)
		}
	}

	m.cfg.Logger.Info("table stopped", zap.String("table", name))

	return nil
}

// expectSDTOther pre-creates an SDT other sub-table for every transport
// stream of the NIT actual except the actual one.
func (m *Monitor) expectSDTOther() {
	sdt, _ := m.collectors[SDTOther].(*table.Table)
	for _, tr := range m.info.Transports {
		if tr.TransportStreamID == m.info.TransportStreamID &&
			(m.info.OriginalNetworkID == 0 || tr.OriginalNetworkID == m.info.OriginalNetworkID) {
			continue
		}
		sdt.NewSubTable(table.Key{
			TableID:           format.TableSDTOther,
			TableIDExt:        tr.TransportStreamID,
			TransportStreamID: tr.TransportStreamID,
			OriginalNetworkID: tr.OriginalNetworkID,
		})
	}
}

// Feed processes one transport stream packet.
func (m *Monitor) Feed(pkt []byte) error {
	return m.demux.Feed(pkt)
}

// Run starts the configured subscriptions and feeds r until every active
// table is complete, no subscription is left, r is exhausted or ctx is done.
//
// Parameters:
//   - ctx: Cancels the run
//   - r: A transport stream of 188-byte packets
//
// Returns:
//   - error: nil when the run finished or the input ended, ctx.Err() when
//     canceled, ErrMonitorRunning when already running, or a read error
func (m *Monitor) Run(ctx context.Context, r io.Reader) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return errs.ErrMonitorRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.finished = false
	m.mu.Unlock()

	defer func() {
		cancel()
		m.mu.Lock()
		m.cancel = nil
		if m.stopping {
			m.stopping = false
			m.stopAll()
		}
		m.mu.Unlock()
	}()

	if len(m.activeNames()) == 0 {
		if err := m.Start(); err != nil {
			return err
		}
	}

	err := m.demux.Run(runCtx, r)

	m.mu.Lock()
	finished := m.finished || m.stopping
	m.mu.Unlock()
	if finished && errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return nil
	}

	return err
}

func (m *Monitor) activeNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	for name := range m.active {
		names = append(names, name)
	}

	return names
}

// IsAllComplete reports whether at least one table subscription is active
// and every active one is complete.
func (m *Monitor) IsAllComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.isAllComplete()
}

func (m *Monitor) isAllComplete() bool {
	n := 0
	for name := range m.active {
		c := m.collectors[name]
		if c == nil {
			continue
		}
		if !c.IsComplete() {
			return false
		}
		n++
	}

	return n > 0
}

func (m *Monitor) collecting() bool {
	for name := range m.active {
		if m.collectors[name] != nil {
			return true
		}
	}

	return false
}

// Status returns the progress of the configured subscriptions in start order.
func (m *Monitor) Status() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Status
	for _, name := range AllTables {
		if !slices.Contains(m.cfg.Tables, name) {
			continue
		}
		st := Status{Name: name, Active: m.active[name]}
		if c := m.collectors[name]; c != nil {
			st.Complete = c.IsComplete()
			st.Received, st.Expected = c.Progress()
		}
		out = append(out, st)
	}

	return out
}

// Info returns a copy of the stream information learned so far.
func (m *Monitor) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := m.info
	info.Programs = slices.Clone(m.info.Programs)
	info.Transports = slices.Clone(m.info.Transports)

	return info
}

// Stats returns the demultiplexer counters.
func (m *Monitor) Stats() demux.Stats {
	return m.demux.Stats()
}

func (m *Monitor) handle(ev demux.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := subscriptionOf(ev.Filter)
	if ev.Kind != 0 {
		m.onFailure(name, ev)
		return
	}

	s := ev.Section
	switch name {
	case TDT, TOT:
		if name == TDT {
			m.info.TDT = s
		} else {
			m.info.TOT = s
		}
		m.notify(Event{Table: name, PID: ev.PID, Result: table.Ok(table.NewSection), Section: s})

		return
	}

	c := m.collectors[name]
	if c == nil {
		return
	}

	res := c.Save(s, table.NotTested)
	if !res.IsOk() {
		if _, failed := res.Error(); failed {
			m.cfg.Logger.Warn("section not saved", sectionFields(name, ev.PID, s, res)...)
			m.notify(Event{Table: name, PID: ev.PID, Result: res, Section: s})
		}

		return
	}
	if !res.Has(table.Stored) {
		return
	}

	m.track(name, s)
	if res.Has(table.ObsoleteSections | table.ObsoleteSubTables) {
		m.prune(name, ev.PID, c, res)
	}
	if res.Has(table.CompleteTable) {
		m.onComplete(name, c)
	}

	received, expected := c.Progress()
	m.cfg.Logger.Debug("section stored", append(sectionFields(name, ev.PID, s, res),
		zap.Int("received", received),
		zap.Int("expected", expected))...)
	m.notify(Event{
		Table:    name,
		PID:      ev.PID,
		Result:   res,
		Section:  s,
		Received: received,
		Expected: expected,
	})

	m.checkFinished()
}

func (m *Monitor) onFailure(name string, ev demux.Event) {
	res := table.Err(ev.Kind)
	m.cfg.Logger.Warn("table failure",
		zap.String("table", name),
		zap.Stringer("pid", ev.PID),
		zap.Stringer("result", res),
		zap.Error(ev.Err))
	m.notify(Event{Table: name, PID: ev.PID, Result: res, Err: ev.Err})

	if ev.Kind == table.ReceivingTimedOut {
		if err := m.stopTable(name); err != nil {
			m.cfg.Logger.Warn("stop table", zap.String("table", name), zap.Error(err))
		}
		m.checkFinished()
	}
}

func (m *Monitor) checkFinished() {
	if m.cancel == nil || m.finished {
		return
	}

	switch {
	case m.isAllComplete():
		m.cfg.Logger.Info("all tables complete")
	case !m.collecting():
		m.cfg.Logger.Info("no table left to collect")
	default:
		return
	}

	m.finished = true
	m.cancel()
}

// track records the actual network identifiers and warns when tables disagree.
func (m *Monitor) track(name string, s *section.Section) {
	switch name {
	case PAT:
		if s.TableIDExt != m.info.TransportStreamID {
			if m.info.TransportStreamID != 0 {
				m.warn(name, s, fmt.Sprintf("PAT tsid mismatch (%04x != %04x)", s.TableIDExt, m.info.TransportStreamID))
			}
			m.info.TransportStreamID = s.TableIDExt
		}
	case SDTActual:
		if s.TransportStreamID != m.info.TransportStreamID {
			if m.info.TransportStreamID != 0 {
				m.warn(name, s, fmt.Sprintf("SDT tsid mismatch (%04x != %04x)", s.TransportStreamID, m.info.TransportStreamID))
			} else {
				m.info.TransportStreamID = s.TransportStreamID
			}
		}
		m.info.OriginalNetworkID = s.OriginalNetworkID
	case NITActual:
		m.info.NetworkID = s.TableIDExt
	}
}

func (m *Monitor) onComplete(name string, c Collector) {
	received, _ := c.Progress()
	m.cfg.Logger.Info("table complete", zap.String("table", name), zap.Int("sections", received))

	switch name {
	case PAT:
		m.onCompletePAT(c)
	case NITActual:
		m.onCompleteNIT(c)
	}

	if m.cfg.Sink != nil {
		if err := m.cfg.Sink.SaveTable(name, c.Sections()); err != nil {
			m.cfg.Logger.Warn("save table", zap.String("table", name), zap.Error(err))
		}
	}
}

func (m *Monitor) onCompletePAT(c Collector) {
	networkPID := format.PIDNIT
	var programs []section.Program
	for _, s := range c.Sections() {
		entries, err := section.Programs(s)
		if err != nil {
			m.warn(PAT, s, err.Error())
			continue
		}
		for _, p := range entries {
			if p.IsNetwork() {
				networkPID = p.PID
			} else {
				programs = append(programs, p)
			}
		}
	}
	m.info.Programs = programs

	if networkPID != m.info.NetworkPID {
		m.info.NetworkPID = networkPID
		for _, name := range []string{NITActual, NITOther} {
			sub := m.subs[name]
			sub.pid = networkPID
			m.subs[name] = sub
			if m.active[name] {
				if err := m.startTable(name); err != nil {
					m.cfg.Logger.Warn("restart table", zap.String("table", name), zap.Error(err))
				}
			}
		}
	}

	if slices.Contains(m.cfg.Tables, PMT) {
		if err := m.startTable(PMT); err != nil {
			m.cfg.Logger.Warn("start table", zap.String("table", PMT), zap.Error(err))
		}
	}
}

func (m *Monitor) onCompleteNIT(c Collector) {
	var transports []section.Transport
	for _, s := range c.Sections() {
		entries, err := section.Transports(s)
		if err != nil {
			m.warn(NITActual, s, err.Error())
			continue
		}
		transports = append(transports, entries...)
	}
	m.info.Transports = transports

	if m.active[SDTOther] {
		m.expectSDTOther()
	}
}

// prune forgets evicted sections in the demux, so their next broadcast is
// delivered again, and removes them from the sink.
func (m *Monitor) prune(name string, pid format.PID, c Collector, res table.Result) {
	obsolete := slices.Clone(c.ObsoleteSections())
	if sc, ok := c.(*table.Schedule); ok && res.Has(table.ObsoleteSubTables) {
		for _, st := range sc.ObsoleteSubTables() {
			obsolete = append(obsolete, st.Sections()...)
		}
	}
	if len(obsolete) == 0 {
		return
	}

	raws := make([][]byte, 0, len(obsolete))
	for _, s := range obsolete {
		raws = append(raws, s.Raw())
	}
	if n := m.demux.Forget(pid, raws...); n > 0 {
		m.cfg.Logger.Debug("fingerprints dropped", zap.String("table", name), zap.Int("sections", n))
	}

	if m.cfg.Sink == nil {
		return
	}

	n, err := m.cfg.Sink.DeleteSections(name, obsolete)
	if err != nil {
		m.cfg.Logger.Warn("delete obsolete sections", zap.String("table", name), zap.Error(err))
		return
	}
	m.cfg.Logger.Debug("obsolete sections deleted", zap.String("table", name), zap.Int("sections", n))
}

func (m *Monitor) notify(ev Event) {
	for _, o := range m.observers {
		o.OnSection(ev)
	}
}

func (m *Monitor) warn(name string, s *section.Section, msg string) {
	m.cfg.Logger.Warn(msg, zap.String("table", name))
	for _, o := range m.observers {
		o.OnWarning(Warning{Table: name, Section: s, Message: msg})
	}
}

func sectionFields(name string, pid format.PID, s *section.Section, res table.Result) []zap.Field {
	return []zap.Field{
		zap.String("table", name),
		zap.Stringer("table_id", s.TableID),
		zap.Stringer("pid", pid),
		zap.Uint16("ext", s.TableIDExt),
		zap.Uint8("version", s.Version),
		zap.Uint8("section", s.SectionNumber),
		zap.Stringer("result", res),
	}
}
