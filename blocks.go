package blosc2

// Cache-derived reference sizes used by the automatic blocksize tuner.
const (
	l1Size = 32 * 1024
)

// isHCRCodec reports whether a codec targets high compression ratios.
// Those codecs amortize a larger setup cost and receive bigger blocks.
func isHCRCodec(c Codec) bool {
	switch c {
	case LZ4HC, ZLIB, ZSTD:
		return true
	}
	return false
}

// splitBlocks decides whether blocks are compressed as typesize separate
// byte streams. The forward-compatible heuristic fires only when all of
// these hold: the filter is exactly byte shuffle, the codec is fast
// (BloscLZ, LZ4, or ZSTD at level 5 or below), the typesize is at most 16,
// and each stream would span at least 32 bytes.
func splitBlocks(mode SplitMode, c Codec, level, typeSize, blockSize int, filter Filter) bool {
	switch mode {
	case SplitAlways:
		return true
	case SplitNever:
		return false
	}
	return (c == BloscLZ || c == LZ4 || (c == ZSTD && level <= 5)) &&
		filter == FilterShuffle &&
		typeSize <= maxStreams &&
		blockSize/typeSize >= minBufferSize
}

// automaticBlocksize picks the block size for one buffer the way the C
// library's tuner does: start from the L1 cache size, scale by codec class and
// compression level, then switch to a typesize-proportional ladder for
// splittable configurations. The result is clamped to the buffer size and
// rounded down to a multiple of the typesize.
func automaticBlocksize(c Codec, level, typeSize, nbytes, userBlockSize int, filter Filter, mode SplitMode) int {
	if nbytes < typeSize {
		return 1
	}

	blocksize := nbytes
	split := splitBlocks(mode, c, level, typeSize, nbytes, filter)

	if userBlockSize != 0 {
		blocksize = userBlockSize
	} else {
		if nbytes >= l1Size {
			blocksize = l1Size
			if isHCRCodec(c) {
				blocksize *= 2
			}
			switch level {
			case 0:
				blocksize /= 4
			case 1:
				blocksize /= 2
			case 2:
				// keep the base size
			case 3:
				blocksize *= 2
			case 4, 5:
				blocksize *= 4
			case 6, 7, 8:
				blocksize *= 8
			case 9:
				blocksize *= 8
				if isHCRCodec(c) {
					blocksize *= 2
				}
			}
		}

		// Splittable codecs get blocks proportional to the typesize so each
		// stream stays a sensible size, capped at 4 MiB and floored at the
		// L1 reference.
		if level > 0 && split {
			switch {
			case level <= 3:
				blocksize = 32 * 1024
			case level <= 6:
				blocksize = 64 * 1024
			case level == 7:
				blocksize = 128 * 1024
			case level == 8:
				blocksize = 256 * 1024
			default:
				blocksize = 512 * 1024
			}
			blocksize *= typeSize
			if blocksize > 4*1024*1024 {
				blocksize = 4 * 1024 * 1024
			}
			if blocksize < l1Size {
				blocksize = l1Size
			}
		}
	}

	if blocksize > nbytes {
		blocksize = nbytes
	}
	// Blocks must hold whole elements so the filters stay block-local.
	if blocksize > typeSize {
		blocksize = blocksize / typeSize * typeSize
	}
	return blocksize
}
