// Package hash wraps xxHash64 for fingerprinting sections and snapshots.
package hash

import "github.com/cespare/xxhash/v2"

// Sum computes the xxHash64 of data.
func Sum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Checksum32 folds the xxHash64 of data into 32 bits.
func Checksum32(data []byte) uint32 {
	h := xxhash.Sum64(data)
	return uint32(h) ^ uint32(h>>32)
}
