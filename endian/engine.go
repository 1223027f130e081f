// Package endian provides the byte order engines used for binary fields.
//
// DVB/MPEG sections are big endian on the wire; the snapshot archive framing
// uses little endian. Both are exposed through EndianEngine, which combines
// binary.ByteOrder and binary.AppendByteOrder so encoders can append fields
// without temporary buffers:
//
//	engine := endian.GetBigEndianEngine()
//	buf = engine.AppendUint16(buf, programNumber)
//	pid := engine.Uint16(payload[2:]) & 0x1fff
//
// The returned engines are stateless and safe for concurrent use.
package endian

import "encoding/binary"

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetBigEndianEngine returns the network byte order engine used for section fields.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}

// GetLittleEndianEngine returns the little-endian engine used for snapshot framing.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// Uint12 reads the 12-bit length field found in section and descriptor loop headers.
func Uint12(engine EndianEngine, b []byte) uint16 {
	return engine.Uint16(b) & 0x0fff
}
