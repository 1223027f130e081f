package section

// crcPoly is the MPEG-2 CRC_32 generator polynomial, processed MSB first.
const crcPoly = 0x04c11db7

var crcTable = makeCRCTable()

func makeCRCTable() *[256]uint32 {
	var t [256]uint32
	for i := range t {
		crc := uint32(i) << 24
		for range 8 {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ crcPoly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}

	return &t
}

// CRC32 computes the MPEG-2 CRC_32 (initial value 0xffffffff, no reflection,
// no final xor) of data.
func CRC32(data []byte) uint32 {
	crc := uint32(0xffffffff)
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^b]
	}

	return crc
}

// VerifyCRC reports whether a section including its trailing CRC_32 is intact.
// Running the CRC over the whole section yields zero when it is.
func VerifyCRC(section []byte) bool {
	if len(section) < CRCSize {
		return false
	}

	return CRC32(section) == 0
}
