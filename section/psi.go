package section

import (
	"fmt"
	"time"

	"github.com/arloliu/dvbsi/endian"
	"github.com/arloliu/dvbsi/errs"
	"github.com/arloliu/dvbsi/format"
)

// Program is one entry of the PAT program loop.
type Program struct {
	Number uint16
	PID    format.PID
}

// IsNetwork reports whether the entry announces the network PID rather than a PMT.
func (p Program) IsNetwork() bool {
	return p.Number == 0
}

// Transport is one entry of the NIT/BAT transport stream loop.
// Descriptors are returned undecoded.
type Transport struct {
	TransportStreamID uint16
	OriginalNetworkID uint16
	Descriptors       []byte
}

// Programs decodes the program loop of a PAT section.
func Programs(s *Section) ([]Program, error) {
	if s.TableID != format.TablePAT {
		return nil, fmt.Errorf("program loop of %s: %w", s.TableID, errs.ErrWrongTable)
	}

	payload := s.Payload()
	if len(payload)%4 != 0 {
		return nil, fmt.Errorf("%w: PAT program loop of %d bytes", errs.ErrSectionLength, len(payload))
	}

	engine := endian.GetBigEndianEngine()
	programs := make([]Program, 0, len(payload)/4)
	for i := 0; i < len(payload); i += 4 {
		programs = append(programs, Program{
			Number: engine.Uint16(payload[i:]),
			PID:    format.PID(engine.Uint16(payload[i+2:])) & format.PIDMask,
		})
	}

	return programs, nil
}

// Transports decodes the transport stream loop of a NIT or BAT section,
// skipping the leading network or bouquet descriptors.
func Transports(s *Section) ([]Transport, error) {
	switch s.TableID {
	case format.TableNITActual, format.TableNITOther, format.TableBAT:
	default:
		return nil, fmt.Errorf("transport loop of %s: %w", s.TableID, errs.ErrWrongTable)
	}

	engine := endian.GetBigEndianEngine()
	payload := s.Payload()

	if len(payload) < 2 {
		return nil, fmt.Errorf("%w: missing descriptors length", errs.ErrSectionTooShort)
	}
	pos := 2 + int(endian.Uint12(engine, payload))
	if len(payload) < pos+2 {
		return nil, fmt.Errorf("%w: missing transport stream loop length", errs.ErrSectionTooShort)
	}
	loopEnd := pos + 2 + int(endian.Uint12(engine, payload[pos:]))
	pos += 2
	if loopEnd > len(payload) {
		return nil, fmt.Errorf("%w: transport stream loop exceeds section", errs.ErrSectionLength)
	}

	var transports []Transport
	for pos+6 <= loopEnd {
		descLen := int(endian.Uint12(engine, payload[pos+4:]))
		if pos+6+descLen > loopEnd {
			return nil, fmt.Errorf("%w: transport descriptors exceed loop", errs.ErrSectionLength)
		}
		transports = append(transports, Transport{
			TransportStreamID: engine.Uint16(payload[pos:]),
			OriginalNetworkID: engine.Uint16(payload[pos+2:]),
			Descriptors:       payload[pos+6 : pos+6+descLen],
		})
		pos += 6 + descLen
	}

	return transports, nil
}

// AppendProgram appends a PAT program loop entry to dst.
func AppendProgram(dst []byte, p Program) []byte {
	engine := endian.GetBigEndianEngine()
	dst = engine.AppendUint16(dst, p.Number)

	return engine.AppendUint16(dst, uint16(0xe000|p.PID&format.PIDMask))
}

// AppendTransportLoop appends empty network descriptors followed by a
// transport stream loop to dst, producing a NIT/BAT payload.
func AppendTransportLoop(dst []byte, transports []Transport) []byte {
	engine := endian.GetBigEndianEngine()
	dst = engine.AppendUint16(dst, 0xf000)

	loopLen := 0
	for _, t := range transports {
		loopLen += 6 + len(t.Descriptors)
	}
	dst = engine.AppendUint16(dst, uint16(0xf000|loopLen&DescriptorLengthMask))

	for _, t := range transports {
		dst = engine.AppendUint16(dst, t.TransportStreamID)
		dst = engine.AppendUint16(dst, t.OriginalNetworkID)
		dst = engine.AppendUint16(dst, uint16(0xf000|len(t.Descriptors)&DescriptorLengthMask))
		dst = append(dst, t.Descriptors...)
	}

	return dst
}

var mjdEpoch = time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)

// UTCTime decodes the UTC_time field leading a TDT or TOT: a 16-bit
// modified Julian date followed by hours, minutes and seconds in BCD.
func UTCTime(s *Section) (time.Time, error) {
	if s.TableID != format.TableTDT && s.TableID != format.TableTOT {
		return time.Time{}, fmt.Errorf("UTC time of %s: %w", s.TableID, errs.ErrWrongTable)
	}

	payload := s.Payload()
	if len(payload) < 5 {
		return time.Time{}, fmt.Errorf("%w: UTC time of %d bytes", errs.ErrSectionTooShort, len(payload))
	}

	mjd := endian.GetBigEndianEngine().Uint16(payload)
	hour, minute, sec := fromBCD(payload[2]), fromBCD(payload[3]), fromBCD(payload[4])
	if !isBCD(payload[2:5]) || hour > 23 || minute > 59 || sec > 60 {
		return time.Time{}, fmt.Errorf("%w: %02x:%02x:%02x", errs.ErrInvalidTime, payload[2], payload[3], payload[4])
	}

	return mjdEpoch.AddDate(0, 0, int(mjd)).Add(
		time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(sec)*time.Second), nil
}

// AppendUTCTime appends t as a UTC_time field to dst.
func AppendUTCTime(dst []byte, t time.Time) []byte {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	mjd := uint16(day.Sub(mjdEpoch) / (24 * time.Hour))

	dst = endian.GetBigEndianEngine().AppendUint16(dst, mjd)

	return append(dst, toBCD(t.Hour()), toBCD(t.Minute()), toBCD(t.Second()))
}

func fromBCD(b byte) int {
	return int(b>>4)*10 + int(b&0x0f)
}

func isBCD(b []byte) bool {
	for _, v := range b {
		if v>>4 > 9 || v&0x0f > 9 {
			return false
		}
	}

	return true
}

func toBCD(v int) byte {
	return byte(v/10)<<4 | byte(v%10)
}
