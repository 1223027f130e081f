// Package compress provides the codecs used to shrink section snapshots
// before they are written to storage.
//
// A snapshot of a complete SI table is a concatenation of raw sections. Large
// parts of it repeat (descriptor loops, service names, event texts), so a
// general-purpose codec typically halves its size. The supported codecs are:
//   - None: payload stored as is
//   - Zstd: best ratio, used for long-lived archives
//   - S2: fast, good ratio
//   - LZ4: fastest decompression
//
// Codecs are stateless values and safe for concurrent use:
//
//	codec, err := compress.GetCodec(format.CompressionZstd)
//	if err != nil {
//		return err
//	}
//	packed, err := codec.Compress(payload)
//	...
//	payload, err = codec.Decompress(packed, len(payload))
//
// The uncompressed size travels in the snapshot header, so every codec
// restores into an exactly sized buffer and rejects sizes above
// MaxPayloadSize before allocating.
//
// The Zstd codec uses the pure Go klauspost/compress implementation. Building
// with cgo and the gozstd tag switches it to the libzstd binding.
package compress
