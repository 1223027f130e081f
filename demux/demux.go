package demux

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/Comcast/gots/v2/packet"
	"go.uber.org/zap"

	"github.com/arloliu/dvbsi/endian"
	"github.com/arloliu/dvbsi/errs"
	"github.com/arloliu/dvbsi/format"
	"github.com/arloliu/dvbsi/internal/hash"
	"github.com/arloliu/dvbsi/internal/options"
	"github.com/arloliu/dvbsi/internal/pool"
	"github.com/arloliu/dvbsi/section"
	"github.com/arloliu/dvbsi/table"
)

// maxFingerprints bounds the duplicate suppression memory of one PID.
const maxFingerprints = 1 << 14

// Event is delivered to the Handler for every section a filter accepts and
// for every failure attributed to a filter.
type Event struct {
	Filter string
	PID    format.PID
	// Section is nil when Kind is set.
	Section *section.Section
	// Kind is ErrorOnParsing or ReceivingTimedOut for failures, zero otherwise.
	Kind table.ErrorKind
	Err  error
}

// Handler receives demultiplexer events. It may add and remove filters.
type Handler func(ev Event)

// Config holds demultiplexer settings.
type Config struct {
	Timeout            time.Duration
	VerifyCRC          bool
	SuppressDuplicates bool
	Now                func() time.Time
	Logger             *zap.Logger
}

// Option configures a Demux.
type Option = options.Option[*Config]

// WithTimeout sets the default receive timeout of filters. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return options.New(func(c *Config) error {
		if d < 0 {
			return fmt.Errorf("negative timeout %s", d)
		}
		c.Timeout = d

		return nil
	})
}

// WithoutCRCCheck delivers sections without verifying their CRC_32.
func WithoutCRCCheck() Option {
	return options.NoError(func(c *Config) {
		c.VerifyCRC = false
	})
}

// WithoutDuplicateSuppression delivers every repetition of a section.
func WithoutDuplicateSuppression() Option {
	return options.NoError(func(c *Config) {
		c.SuppressDuplicates = false
	})
}

// WithClock sets the clock used for receive timeouts.
func WithClock(now func() time.Time) Option {
	return options.NoError(func(c *Config) {
		if now != nil {
			c.Now = now
		}
	})
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return options.NoError(func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	})
}

// Stats counts demultiplexer activity. Counters may be read concurrently
// with Feed.
type Stats struct {
	Packets         uint64 `json:"packets"`
	Sections        uint64 `json:"sections"`
	Repeated        uint64 `json:"repeated"`
	Discontinuities uint64 `json:"discontinuities"`
	ParseErrors     uint64 `json:"parse_errors"`
	Timeouts        uint64 `json:"timeouts"`
	SyncLosses      uint64 `json:"sync_losses"`
}

type counters struct {
	packets, sections, repeated, discontinuities atomic.Uint64
	parseErrors, timeouts, syncLosses            atomic.Uint64
}

type sectionID struct {
	tableID uint8
	number  uint8
	ext     uint16
	extra   uint32
}

type pidState struct {
	pid        format.PID
	filters    []*filterState
	buf        *pool.ByteBuffer
	assembling bool
	cc         int
	seen       map[sectionID]uint64
	closed     bool
}

func (st *pidState) drop() {
	st.buf.Reset()
	st.assembling = false
}

// Demux assembles PSI/SI sections from 188-byte transport stream packets and
// hands the sections accepted by its filters to a Handler.
//
// Demux is not safe for concurrent use except for Stats.
type Demux struct {
	cfg      Config
	handler  Handler
	pids     map[format.PID]*pidState
	names    map[string]*filterState
	stats    counters
	parse    []section.ParseOption
	busy     bool
	released []*pidState
}

// New creates a demultiplexer without filters.
//
// Parameters:
//   - handler: Receives sections and failures
//   - opts: Timeout, CRC, duplicate suppression, clock and logger options
//
// Returns:
//   - *Demux: The demultiplexer
//   - error: Option validation error
func New(handler Handler, opts ...Option) (*Demux, error) {
	if handler == nil {
		return nil, errors.New("demux: nil handler")
	}

	cfg := Config{
		VerifyCRC:          true,
		SuppressDuplicates: true,
		Now:                time.Now,
		Logger:             zap.NewNop(),
	}
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	d := &Demux{
		cfg:     cfg,
		handler: handler,
		pids:    make(map[format.PID]*pidState),
		names:   make(map[string]*filterState),
	}
	if cfg.VerifyCRC {
		d.parse = []section.ParseOption{section.WithCRCCheck()}
	}

	return d, nil
}

// AddFilter starts delivering the sections that satisfy f. Adding a filter
// forgets the sections already seen on its PID, so a restarted table
// receives every section again.
func (d *Demux) AddFilter(f Filter) error {
	if _, ok := d.names[f.Name]; ok {
		return fmt.Errorf("%w: %s", errs.ErrFilterExists, f.Name)
	}
	if err := f.Match.validate(); err != nil {
		return fmt.Errorf("filter %s: %w", f.Name, err)
	}

	fs := &filterState{Filter: f, timeout: f.Timeout}
	if f.Timeout == 0 {
		fs.timeout = d.cfg.Timeout
	}
	fs.rearm(d.cfg.Now())

	pid := f.PID & format.PIDMask
	st, ok := d.pids[pid]
	if !ok {
		st = &pidState{pid: pid, buf: pool.GetSectionBuffer(), cc: -1}
		d.pids[pid] = st
	}
	st.filters = append(st.filters, fs)
	st.seen = make(map[sectionID]uint64)
	d.names[f.Name] = fs

	d.cfg.Logger.Debug("filter added",
		zap.String("filter", f.Name),
		zap.Stringer("pid", pid),
		zap.Duration("timeout", fs.timeout))

	return nil
}

// Forget drops the fingerprints of raws on pid, so identical copies are
// delivered again. A fingerprint is only dropped while it still belongs to
// the given bytes. Collectors call this after evicting sections they may
// need to receive again.
//
// Parameters:
//   - pid: PID the sections were received on
//   - raws: raw bytes of the evicted sections
//
// Returns:
//   - int: Number of fingerprints dropped
func (d *Demux) Forget(pid format.PID, raws ...[]byte) int {
	st, ok := d.pids[pid&format.PIDMask]
	if !ok || len(st.seen) == 0 {
		return 0
	}

	n := 0
	for _, raw := range raws {
		if len(raw) < section.ShortHeaderSize {
			continue
		}
		id := identify(raw)
		if prev, ok := st.seen[id]; ok && prev == hash.Sum(raw) {
			delete(st.seen, id)
			n++
		}
	}

	return n
}

// RemoveFilter stops the named filter.
func (d *Demux) RemoveFilter(name string) error {
	fs, ok := d.names[name]
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrFilterNotFound, name)
	}
	delete(d.names, name)

	pid := fs.PID & format.PIDMask
	st := d.pids[pid]
	for i, f := range st.filters {
		if f == fs {
			st.filters = append(st.filters[:i], st.filters[i+1:]...)
			break
		}
	}

	if len(st.filters) == 0 {
		delete(d.pids, pid)
		st.closed = true
		if d.busy {
			d.released = append(d.released, st)
		} else {
			pool.PutSectionBuffer(st.buf)
		}
	}

	d.cfg.Logger.Debug("filter removed", zap.String("filter", name), zap.Stringer("pid", pid))

	return nil
}

// Filters returns the names of the active filters.
func (d *Demux) Filters() []string {
	names := make([]string, 0, len(d.names))
	for name := range d.names {
		names = append(names, name)
	}

	return names
}

// Stats returns a copy of the activity counters.
func (d *Demux) Stats() Stats {
	return Stats{
		Packets:         d.stats.packets.Load(),
		Sections:        d.stats.sections.Load(),
		Repeated:        d.stats.repeated.Load(),
		Discontinuities: d.stats.discontinuities.Load(),
		ParseErrors:     d.stats.parseErrors.Load(),
		Timeouts:        d.stats.timeouts.Load(),
		SyncLosses:      d.stats.syncLosses.Load(),
	}
}

// Feed processes one transport stream packet.
func (d *Demux) Feed(b []byte) error {
	if len(b) != packet.PacketSize {
		return fmt.Errorf("%w: %d bytes", errs.ErrPacketSize, len(b))
	}

	var pkt packet.Packet
	copy(pkt[:], b)

	return d.FeedPacket(&pkt)
}

// FeedPacket processes one transport stream packet and then reports the
// filters whose receive timeout expired.
func (d *Demux) FeedPacket(pkt *packet.Packet) error {
	if pkt[0] != packet.SyncByte {
		return errs.ErrPacketSync
	}
	d.stats.packets.Add(1)

	d.busy = true
	now := d.cfg.Now()
	if st, ok := d.pids[format.PID(pkt.PID())]; ok {
		d.process(st, pkt, now)
	}
	d.checkTimeouts(now)
	d.busy = false

	for _, st := range d.released {
		pool.PutSectionBuffer(st.buf)
	}
	clear(d.released)
	d.released = d.released[:0]

	return nil
}

// CheckTimeouts reports expired filters without feeding a packet, for inputs
// that may stall.
func (d *Demux) CheckTimeouts() {
	d.checkTimeouts(d.cfg.Now())
}

func (d *Demux) process(st *pidState, pkt *packet.Packet, now time.Time) {
	if pkt.TransportErrorIndicator() {
		d.discontinuity(st, "transport error")
		return
	}
	if !pkt.HasPayload() {
		return
	}

	cc := pkt.ContinuityCounter()
	if st.cc >= 0 {
		if cc == st.cc {
			// duplicate packet
			return
		}
		if cc != (st.cc+1)&0x0f && st.assembling {
			d.discontinuity(st, "continuity counter")
		}
	}
	st.cc = cc

	payload, err := pkt.Payload()
	if err != nil || len(payload) == 0 {
		return
	}

	if !pkt.PayloadUnitStartIndicator() {
		if st.assembling {
			d.consume(st, payload, now)
		}
		return
	}

	pointer := int(payload[0])
	payload = payload[1:]
	if pointer > len(payload) {
		d.discontinuity(st, "pointer field")
		return
	}
	if st.assembling {
		d.consume(st, payload[:pointer], now)
		if st.closed {
			return
		}
	}
	st.drop()
	st.assembling = true
	d.consume(st, payload[pointer:], now)
}

func (d *Demux) discontinuity(st *pidState, reason string) {
	d.stats.discontinuities.Add(1)
	d.cfg.Logger.Debug("section assembly reset",
		zap.Stringer("pid", st.pid),
		zap.String("reason", reason),
		zap.Int("dropped", st.buf.Len()))
	st.drop()
}

// consume appends data to the partial section of st and delivers every
// complete section it holds.
func (d *Demux) consume(st *pidState, data []byte, now time.Time) {
	engine := endian.GetBigEndianEngine()

	st.buf.MustWrite(data)
	for st.assembling && !st.closed {
		b := st.buf.Bytes()
		if len(b) == 0 {
			return
		}
		if b[0] == byte(format.TableStuffing) {
			st.drop()
			return
		}
		if len(b) < section.ShortHeaderSize {
			return
		}

		size := section.ShortHeaderSize + int(endian.Uint12(engine, b[1:]))
		if size > section.MaxSectionSize {
			d.fail(st, b, fmt.Errorf("%w: %d bytes", errs.ErrSectionLength, size))
			st.drop()
			return
		}
		if len(b) < size {
			return
		}

		d.deliver(st, b[:size], now)
		if st.closed {
			return
		}
		st.buf.Discard(size)
	}
}

func (d *Demux) matching(st *pidState, raw []byte) []*filterState {
	var matched []*filterState
	for _, f := range st.filters {
		if f.Match.Matches(raw) {
			matched = append(matched, f)
		}
	}

	return matched
}

func (d *Demux) deliver(st *pidState, raw []byte, now time.Time) {
	matched := d.matching(st, raw)
	if len(matched) == 0 {
		return
	}
	for _, f := range matched {
		f.rearm(now)
	}

	var id sectionID
	var sum uint64
	if d.cfg.SuppressDuplicates {
		id, sum = identify(raw), hash.Sum(raw)
		if prev, ok := st.seen[id]; ok && prev == sum {
			d.stats.repeated.Add(1)
			return
		}
	}

	s, err := section.Parse(raw, d.parse...)
	if err != nil {
		d.emitError(matched, st.pid, table.ErrorOnParsing, err)
		return
	}

	if d.cfg.SuppressDuplicates {
		if len(st.seen) >= maxFingerprints {
			clear(st.seen)
		}
		st.seen[id] = sum
	}

	d.stats.sections.Add(1)
	for _, f := range matched {
		if d.names[f.Name] != f {
			continue
		}
		d.handler(Event{Filter: f.Name, PID: st.pid, Section: s})
	}
}

func (d *Demux) fail(st *pidState, raw []byte, err error) {
	matched := d.matching(st, raw)
	d.emitError(matched, st.pid, table.ErrorOnParsing, err)
}

func (d *Demux) emitError(filters []*filterState, pid format.PID, kind table.ErrorKind, err error) {
	if len(filters) == 0 {
		return
	}
	if kind == table.ErrorOnParsing {
		d.stats.parseErrors.Add(1)
	} else {
		d.stats.timeouts.Add(1)
	}

	for _, f := range filters {
		if d.names[f.Name] != f {
			continue
		}
		d.cfg.Logger.Debug("filter error",
			zap.String("filter", f.Name),
			zap.Stringer("pid", pid),
			zap.Stringer("result", kind),
			zap.Error(err))
		d.handler(Event{Filter: f.Name, PID: pid, Kind: kind, Err: err})
	}
}

func (d *Demux) checkTimeouts(now time.Time) {
	var expired []*filterState
	for _, f := range d.names {
		if f.expired(now) {
			expired = append(expired, f)
		}
	}

	for _, f := range expired {
		f.rearm(now)
		d.emitError([]*filterState{f}, f.PID&format.PIDMask, table.ReceivingTimedOut,
			fmt.Errorf("%w: %s after %s", errs.ErrReceiveTimeout, f.Name, f.timeout))
	}
}

// Run feeds packets read from r until r is exhausted or ctx is done. Bytes
// preceding a lost sync byte are skipped.
func (d *Demux) Run(ctx context.Context, r io.Reader) error {
	br := bufio.NewReaderSize(r, packet.PacketSize*256)

	var pkt packet.Packet
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := io.ReadFull(br, pkt[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}

			return fmt.Errorf("read packet: %w", err)
		}

		if pkt[0] != packet.SyncByte {
			d.stats.syncLosses.Add(1)
			if err := resync(br, &pkt); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return nil
				}

				return fmt.Errorf("resync: %w", err)
			}
		}

		if err := d.FeedPacket(&pkt); err != nil {
			return err
		}
	}
}

func resync(br *bufio.Reader, pkt *packet.Packet) error {
	for pkt[0] != packet.SyncByte {
		i := bytes.IndexByte(pkt[1:], packet.SyncByte)
		if i < 0 {
			if _, err := io.ReadFull(br, pkt[:]); err != nil {
				return err
			}
			continue
		}

		n := copy(pkt[:], pkt[i+1:])
		if _, err := io.ReadFull(br, pkt[n:]); err != nil {
			return err
		}
	}

	return nil
}

// identify returns the fields that distinguish sections of one PID, so that
// a newer version replaces the fingerprint of an older one.
func identify(raw []byte) sectionID {
	id := sectionID{tableID: raw[0]}
	if raw[1]&section.SyntaxIndicatorMask == 0 || len(raw) < section.LongHeaderSize {
		return id
	}

	engine := endian.GetBigEndianEngine()
	id.ext = engine.Uint16(raw[3:])
	id.number = raw[6]

	tid := format.TableID(raw[0])
	switch {
	case tid.IsEIT() && len(raw) >= section.EITHeaderSize:
		id.extra = engine.Uint32(raw[8:])
	case tid.IsSDT() && len(raw) >= section.SDTHeaderSize:
		id.extra = uint32(engine.Uint16(raw[8:]))
	}

	return id
}
