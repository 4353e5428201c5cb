package blosc2

import (
	"encoding/binary"
	"fmt"
)

// BloscLZ: a FastLZ-derived LZ77 codec tuned for shuffled blocks.
//
// The stream alternates literal runs and matches. A control byte below 32
// means "copy that many plus one literal bytes". Otherwise its high three
// bits carry a biased match length (7 escapes to extension bytes) and its
// low five bits the high part of the match distance. Distances above
// maxDistance switch to a far encoding with a sentinel byte and a 16-bit
// big-endian remainder. Bit 5 of the first control byte marks the BloscLZ
// format.

const (
	blosclzMaxCopy        = 32
	blosclzMaxDistance    = 8191
	blosclzMaxFarDistance = 65535 + blosclzMaxDistance - 1
	blosclzHashLog        = 14
	blosclzMinLength      = 4
	blosclzIPShift        = 4
)

// Hash table width per compression level. Level 0 never reaches the codec.
var blosclzHashLogs = [10]uint{
	0,
	blosclzHashLog - 2,
	blosclzHashLog - 1,
	blosclzHashLog,
	blosclzHashLog,
	blosclzHashLog,
	blosclzHashLog,
	blosclzHashLog,
	blosclzHashLog,
	blosclzHashLog,
}

// Minimum compression ratio the entropy probe must observe on its sample
// before the real pass is attempted. Lower levels demand more.
var blosclzMinRatios = [10]float64{0, 2.0, 1.5, 1.2, 1.2, 1.2, 1.2, 1.15, 1.1, 1.0}

func blosclzHash(seq uint32, hashlog uint) uint32 {
	return (seq * 2654435761) >> (32 - hashlog)
}

// blosclzCompress compresses src into dst at the given level (1-9) and
// returns the number of bytes produced. A return of 0 means the input is
// incompressible or the output did not fit; the caller is expected to fall
// back to a verbatim copy.
func blosclzCompress(level int, src, dst []byte) int {
	length := len(src)
	maxout := len(dst)
	if length < 16 || maxout < 66 {
		return 0
	}
	if level < 1 {
		level = 1
	} else if level > 9 {
		level = 9
	}

	hashlog := blosclzHashLogs[level]
	htab := make([]uint32, 1<<hashlog)

	// Probe a level-dependent prefix first: if even the sample does not
	// reach the level's minimum ratio, reject the whole block now.
	var probeLen int
	switch {
	case level < 2:
		probeLen = length / 8
	case level < 4:
		probeLen = length / 4
	case level < 7:
		probeLen = length / 2
	default:
		probeLen = length
	}
	if probeLen >= 16 {
		if blosclzProbe(src[:probeLen], htab, hashlog, level) < blosclzMinRatios[level] {
			return 0
		}
		clear(htab)
	}

	ipBound := length - 1
	ipLimit := length - (blosclzMinLength + blosclzIPShift + 4)

	// The stream opens with a forced 4-byte literal run; its control byte
	// doubles as the format-marker carrier and is patched when the run
	// closes.
	op := 0
	dst[op] = blosclzMaxCopy - 1
	op++
	copy(dst[op:], src[:4])
	op += 4
	ip := 4
	literals := 4

	for ip < ipLimit {
		anchor := ip
		seq := binary.LittleEndian.Uint32(src[ip:])
		hval := blosclzHash(seq, hashlog)
		ref := int(htab[hval])
		htab[hval] = uint32(anchor)

		distance := anchor - ref
		matched := distance != 0 && distance < blosclzMaxFarDistance &&
			binary.LittleEndian.Uint32(src[ref:]) == seq

		var mlen int
		if matched {
			// Extend past the four hashed bytes.
			ip = anchor + 4
			refp := ref + 4
			for ip < ipBound && src[ip] == src[refp] {
				ip++
				refp++
			}
			mlen = ip - anchor
			// Short far matches cost more than their literals.
			if mlen < blosclzMinLength || (mlen <= 5 && distance >= blosclzMaxDistance) {
				matched = false
			}
		}

		if !matched {
			if op+2 > maxout {
				return 0
			}
			dst[op] = src[anchor]
			op++
			ip = anchor + 1
			literals++
			if literals == blosclzMaxCopy {
				literals = 0
				dst[op] = blosclzMaxCopy - 1
				op++
			}
			continue
		}

		// Close the pending literal run.
		if literals > 0 {
			dst[op-literals-1] = byte(literals - 1)
		} else {
			op--
		}
		literals = 0

		distance--
		var ok bool
		op, ok = blosclzEmitMatch(dst, op, maxout, mlen, distance)
		if !ok {
			return 0
		}

		// Refresh the hash table near the match boundary so the next
		// positions remain findable.
		if ip+2 <= length {
			seq = binary.LittleEndian.Uint32(src[ip-2:])
			htab[blosclzHash(seq, hashlog)] = uint32(ip - 2)
			if level == 9 {
				htab[blosclzHash(seq>>8, hashlog)] = uint32(ip - 1)
			}
		}

		// Open the next literal run.
		if op+1 > maxout {
			return 0
		}
		dst[op] = blosclzMaxCopy - 1
		op++
	}

	for ip <= ipBound {
		if op+2 > maxout {
			return 0
		}
		dst[op] = src[ip]
		op++
		ip++
		literals++
		if literals == blosclzMaxCopy {
			literals = 0
			dst[op] = blosclzMaxCopy - 1
			op++
		}
	}

	if literals > 0 {
		dst[op-literals-1] = byte(literals - 1)
	} else {
		op--
	}

	// Bit 5 of the first control byte marks the BloscLZ format.
	dst[0] |= 1 << 5

	return op
}

// blosclzEmitMatch encodes one match token at dst[op] and returns the new
// write position. distance is already biased by -1.
func blosclzEmitMatch(dst []byte, op, maxout, mlen, distance int) (int, bool) {
	if distance < blosclzMaxDistance {
		if mlen <= 8 {
			if op+2 > maxout {
				return op, false
			}
			dst[op] = byte((mlen-2)<<5) | byte(distance>>8)
			dst[op+1] = byte(distance)
			return op + 2, true
		}
		if op+1 > maxout {
			return op, false
		}
		dst[op] = 7<<5 | byte(distance>>8)
		op++
		l := mlen - 9
		for ; l >= 255; l -= 255 {
			if op+1 > maxout {
				return op, false
			}
			dst[op] = 255
			op++
		}
		if op+2 > maxout {
			return op, false
		}
		dst[op] = byte(l)
		dst[op+1] = byte(distance)
		return op + 2, true
	}

	far := distance - blosclzMaxDistance
	if mlen <= 8 {
		if op+4 > maxout {
			return op, false
		}
		dst[op] = byte((mlen-2)<<5) | 31
		dst[op+1] = 255
		dst[op+2] = byte(far >> 8)
		dst[op+3] = byte(far)
		return op + 4, true
	}
	if op+1 > maxout {
		return op, false
	}
	dst[op] = 7<<5 | 31
	op++
	l := mlen - 9
	for ; l >= 255; l -= 255 {
		if op+1 > maxout {
			return op, false
		}
		dst[op] = 255
		op++
	}
	if op+4 > maxout {
		return op, false
	}
	dst[op] = byte(l)
	dst[op+1] = 255
	dst[op+2] = byte(far >> 8)
	dst[op+3] = byte(far)
	return op + 4, true
}

// blosclzMatchCost returns the encoded size of a match token.
func blosclzMatchCost(mlen, distance int) int {
	cost := 2
	if distance >= blosclzMaxDistance {
		cost = 4
	}
	if mlen > 8 {
		cost += (mlen-9)/255 + 1
	}
	return cost
}

// blosclzProbe simulates compression of sample without emitting output and
// returns the compression ratio it would achieve. The shared hash table is
// left dirty; the caller zeroes it before the real pass.
func blosclzProbe(sample []byte, htab []uint32, hashlog uint, level int) float64 {
	length := len(sample)
	ipBound := length - 1
	ipLimit := length - (blosclzMinLength + blosclzIPShift + 4)

	oc := 5 // opening control byte plus four literals
	ip := 4
	literals := 4

	for ip < ipLimit {
		anchor := ip
		seq := binary.LittleEndian.Uint32(sample[ip:])
		hval := blosclzHash(seq, hashlog)
		ref := int(htab[hval])
		htab[hval] = uint32(anchor)

		distance := anchor - ref
		matched := distance != 0 && distance < blosclzMaxFarDistance &&
			binary.LittleEndian.Uint32(sample[ref:]) == seq

		var mlen int
		if matched {
			ip = anchor + 4
			refp := ref + 4
			for ip < ipBound && sample[ip] == sample[refp] {
				ip++
				refp++
			}
			mlen = ip - anchor
			if mlen < blosclzMinLength || (mlen <= 5 && distance >= blosclzMaxDistance) {
				matched = false
			}
		}

		if !matched {
			oc++
			ip = anchor + 1
			literals++
			if literals == blosclzMaxCopy {
				literals = 0
				oc++
			}
			continue
		}

		if literals == 0 {
			oc--
		}
		literals = 0
		oc += blosclzMatchCost(mlen, distance-1)

		if ip+2 <= length {
			seq = binary.LittleEndian.Uint32(sample[ip-2:])
			htab[blosclzHash(seq, hashlog)] = uint32(ip - 2)
			if level == 9 {
				htab[blosclzHash(seq>>8, hashlog)] = uint32(ip - 1)
			}
		}

		oc++ // next literal run's control byte
	}

	tail := length - ip
	oc += tail + (literals+tail)/blosclzMaxCopy
	if (literals+tail)%blosclzMaxCopy == 0 {
		oc--
	}

	return float64(length) / float64(oc)
}

// blosclzDecompress decompresses src into dst and returns the number of
// bytes produced. Every read and write is bounds-checked so corrupted
// input is reported as ErrMalformedInput instead of corrupting memory.
func blosclzDecompress(src, dst []byte) (int, error) {
	length := len(src)
	maxout := len(dst)
	if length == 0 {
		return 0, fmt.Errorf("%w: empty blosclz stream", ErrMalformedInput)
	}

	ip := 0
	op := 0
	// The first control byte carries the format marker in its high bits.
	ctrl := int(src[ip] & 31)
	ip++

	for {
		if ctrl >= 32 {
			mlen := (ctrl >> 5) - 1
			ofs := (ctrl & 31) << 8

			if mlen == 7-1 {
				// Long match: accumulate length extension bytes.
				for {
					if ip >= length {
						return 0, fmt.Errorf("%w: truncated match length", ErrMalformedInput)
					}
					ext := int(src[ip])
					ip++
					mlen += ext
					if ext != 255 {
						break
					}
				}
			}

			if ip >= length {
				return 0, fmt.Errorf("%w: truncated match distance", ErrMalformedInput)
			}
			code := int(src[ip])
			ip++
			mlen += 3

			if code == 255 && ofs == 31<<8 {
				// Far match: 16-bit big-endian distance remainder.
				if ip+1 >= length {
					return 0, fmt.Errorf("%w: truncated far distance", ErrMalformedInput)
				}
				ofs = int(src[ip]) << 8
				ip++
				ofs += int(src[ip])
				ip++
				ofs += blosclzMaxDistance
			} else {
				ofs += code
			}
			ofs++

			if op+mlen > maxout {
				return 0, fmt.Errorf("%w: match overflows output", ErrMalformedInput)
			}
			if ofs > op {
				return 0, fmt.Errorf("%w: match references before output start", ErrMalformedInput)
			}

			// Byte-wise copy: the ranges may overlap when the match repeats
			// a short pattern.
			start := op - ofs
			for i := 0; i < mlen; i++ {
				dst[op+i] = dst[start+i]
			}
			op += mlen
		} else {
			run := ctrl + 1
			if op+run > maxout {
				return 0, fmt.Errorf("%w: literal run overflows output", ErrMalformedInput)
			}
			if ip+run > length {
				return 0, fmt.Errorf("%w: truncated literal run", ErrMalformedInput)
			}
			copy(dst[op:op+run], src[ip:ip+run])
			op += run
			ip += run
		}

		if ip >= length {
			break
		}
		ctrl = int(src[ip])
		ip++
	}

	return op, nil
}
