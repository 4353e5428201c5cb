package blosc2

// ShuffleBytes performs the byte-level shuffle of one block.
//
// For an array of elements typeSize bytes wide, the shuffle rearranges
// bytes so that all first bytes of each element are together, then all
// second bytes, and so on. This improves compression for typed data
// because similar bytes (e.g. exponent bits of floats) end up adjacent.
//
// Example for 4-byte elements [A0 A1 A2 A3] [B0 B1 B2 B3] [C0 C1 C2 C3]:
// after shuffle: [A0 B0 C0] [A1 B1 C1] [A2 B2 C2] [A3 B3 C3]
//
// Trailing bytes that do not fill a whole element are copied unshuffled.
// dst and src must have equal length and must not alias.
func ShuffleBytes(dst, src []byte, typeSize int) {
	n := len(src)
	if typeSize <= 1 || n < typeSize {
		copy(dst, src)
		return
	}

	neblock := n / typeSize
	for j := 0; j < typeSize; j++ {
		for i := 0; i < neblock; i++ {
			dst[j*neblock+i] = src[i*typeSize+j]
		}
	}

	if rem := n % typeSize; rem > 0 {
		copy(dst[n-rem:], src[n-rem:])
	}
}

// UnshuffleBytes reverses ShuffleBytes.
func UnshuffleBytes(dst, src []byte, typeSize int) {
	n := len(src)
	if typeSize <= 1 || n < typeSize {
		copy(dst, src)
		return
	}

	neblock := n / typeSize
	for i := 0; i < neblock; i++ {
		for j := 0; j < typeSize; j++ {
			dst[i*typeSize+j] = src[j*neblock+i]
		}
	}

	if rem := n % typeSize; rem > 0 {
		copy(dst[n-rem:], src[n-rem:])
	}
}
