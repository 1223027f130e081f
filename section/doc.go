// Package section decodes and encodes MPEG-2/DVB private sections.
//
// A section is the unit a demultiplexer delivers for a PSI/SI table: one
// fragment of a table instance, identified by table_id and table_id_extension
// and numbered 0..last_section_number. This package turns raw section bytes
// into a validated Section value and back; it knows nothing about how
// sections combine into tables (see package table for that).
//
// # Wire Layout
//
// Every section starts with a 3-byte generic header. Sections with the
// section_syntax_indicator set carry a 5-byte extended header and end with a
// CRC_32 over all preceding bytes:
//
//	Bytes | Field                        | Notes
//	------|------------------------------|-------------------------------------
//	0     | table_id                     |
//	1-2   | syntax(1) private(1) rsv(2)  | section_length: low 12 bits
//	      | section_length(12)           | number of bytes following byte 2
//	3-4   | table_id_extension           | tsid, program, network, bouquet or service id
//	5     | rsv(2) version(5) cur_next(1)|
//	6     | section_number               |
//	7     | last_section_number          | section_number <= last_section_number
//	...   | table specific fields        |
//	N-4   | CRC_32                       | MPEG-2 CRC, big endian
//
// Two families carry extra fixed fields right after the extended header:
//
//	SDT: 8-9 original_network_id, 10 reserved
//	EIT: 8-9 transport_stream_id, 10-11 original_network_id,
//	     12 segment_last_section_number, 13 last_table_id
//
// # Decoding
//
//	sec, err := section.Parse(buf, section.WithCRCCheck())
//	if err != nil {
//	    return fmt.Errorf("parse section: %w", err)
//	}
//
// Parse always copies buf, so the caller may reuse its read buffer.
//
// # Encoding
//
// Builder produces byte-exact sections. It is mostly used to construct
// fixtures and to re-emit collected tables:
//
//	raw := section.NewBuilder(format.TablePMT, 0x0101).
//	    Version(3).
//	    Number(0, 0).
//	    Payload(body).
//	    Bytes()
package section
