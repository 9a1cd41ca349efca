package layout

// Random number helpers shared by the tracer and every kernel implementation.
// The kernel sources implement the same functions so all backends consume
// identical random streams.

// Advance a xorshift32 state and return the new value. The state must not be
// zero.
func RandomUInt(seed *uint32) uint32 {
	*seed ^= *seed << 13
	*seed ^= *seed >> 17
	*seed ^= *seed << 5
	return *seed
}

// Return a random float in [0, 1).
func RandomFloat(seed *uint32) float32 {
	return float32(RandomUInt(seed)>>8) * (1.0 / 16777216.0)
}

// Scramble an integer into a well distributed non-zero seed.
func WangHash(s uint32) uint32 {
	s = (s ^ 61) ^ (s >> 16)
	s *= 9
	s = s ^ (s >> 4)
	s *= 0x27d4eb2d
	s = s ^ (s >> 15)
	if s == 0 {
		s = 1
	}
	return s
}
