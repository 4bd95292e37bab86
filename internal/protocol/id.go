package protocol

import "hash/fnv"

// DeriveID derives a stable 32-bit KGP placement identifier from the
// process id. Each of the three octets used as SGR/diacritic channels
// (after a constant rotation) is nudged to be >= 0x10: the identifier is
// carried both as a foreground RGB color and as a diacritic index, and
// small values in either channel risk colliding with near-zero "reset" or
// "default" behavior on some terminals. Fixed for the process lifetime so
// the terminal's own image cache is deterministically overwritten instead
// of accumulating stale copies across runs.
func DeriveID(pid int) uint32 {
	h := fnv.New32a()
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(pid >> (8 * (i % 4)))
	}
	_, _ = h.Write(buf[:])
	sum := h.Sum32()

	// Rotate so the three octets that double as color/diacritic channels
	// aren't simply the raw hash's low bytes.
	rotated := (sum << 8) | (sum >> 24)

	b0 := bump(byte(rotated))
	b1 := bump(byte(rotated >> 8))
	b2 := bump(byte(rotated >> 16))
	b3 := byte(rotated >> 24)

	return uint32(b3)<<24 | uint32(b2)<<16 | uint32(b1)<<8 | uint32(b0)
}

// bump nudges a near-zero octet to a safe minimum (0x10) without changing
// octets that are already safe.
func bump(b byte) byte {
	if b < 0x10 {
		return b + 0x10
	}
	return b
}
