package blake2b

import "runtime"

// load64 reads a little-endian uint64 from at least 8 bytes.
func load64(b []byte) uint64 {
	_ = b[7]
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

// store64 writes w into the first 8 bytes of b in little-endian order.
func store64(b []byte, w uint64) {
	_ = b[7]
	b[0] = byte(w)
	b[1] = byte(w >> 8)
	b[2] = byte(w >> 16)
	b[3] = byte(w >> 24)
	b[4] = byte(w >> 32)
	b[5] = byte(w >> 40)
	b[6] = byte(w >> 48)
	b[7] = byte(w >> 56)
}

// wipe zeroes b. The KeepAlive keeps the stores observable so the clear
// cannot be dropped as dead.
func wipe(b []byte) {
	clear(b)
	runtime.KeepAlive(b)
}
