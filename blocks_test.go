package blosc2

import "testing"

func TestSplitRule(t *testing.T) {
	cases := []struct {
		name      string
		mode      SplitMode
		codec     Codec
		level     int
		typeSize  int
		blockSize int
		filter    Filter
		want      bool
	}{
		{"blosclz shuffle", SplitForwardCompat, BloscLZ, 5, 4, 131072, FilterShuffle, true},
		{"lz4 shuffle", SplitForwardCompat, LZ4, 5, 4, 131072, FilterShuffle, true},
		{"zstd low level", SplitForwardCompat, ZSTD, 5, 4, 131072, FilterShuffle, true},
		{"zstd high level", SplitForwardCompat, ZSTD, 6, 4, 131072, FilterShuffle, false},
		{"zlib", SplitForwardCompat, ZLIB, 5, 4, 131072, FilterShuffle, false},
		{"lz4hc", SplitForwardCompat, LZ4HC, 5, 4, 131072, FilterShuffle, false},
		{"no filter", SplitForwardCompat, BloscLZ, 5, 4, 131072, FilterNone, false},
		{"bitshuffle", SplitForwardCompat, BloscLZ, 5, 4, 131072, FilterBitShuffle, false},
		{"typesize 16", SplitForwardCompat, BloscLZ, 5, 16, 131072, FilterShuffle, true},
		{"typesize 17", SplitForwardCompat, BloscLZ, 5, 17, 131072, FilterShuffle, false},
		{"stream 32 bytes", SplitForwardCompat, BloscLZ, 5, 4, 128, FilterShuffle, true},
		{"stream under 32", SplitForwardCompat, BloscLZ, 5, 4, 124, FilterShuffle, false},
		{"always wins", SplitAlways, ZLIB, 9, 32, 64, FilterNone, true},
		{"never wins", SplitNever, BloscLZ, 5, 4, 131072, FilterShuffle, false},
		{"auto is heuristic", SplitAuto, BloscLZ, 5, 4, 131072, FilterShuffle, true},
	}

	for _, tc := range cases {
		got := splitBlocks(tc.mode, tc.codec, tc.level, tc.typeSize, tc.blockSize, tc.filter)
		if got != tc.want {
			t.Errorf("%s: split = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAutomaticBlocksize(t *testing.T) {
	cases := []struct {
		name     string
		codec    Codec
		level    int
		typeSize int
		nbytes   int
		filter   Filter
		want     int
	}{
		// Buffers below the L1 reference keep their own size.
		{"small buffer", BloscLZ, 5, 4, 8192, FilterBitShuffle, 8192},
		// Split ladder: level 5 gives 64 KiB per stream times the typesize.
		{"split ladder", BloscLZ, 5, 4, 1 << 24, FilterShuffle, 256 * 1024},
		{"split ladder level 9", BloscLZ, 9, 4, 1 << 24, FilterShuffle, 2 * 1024 * 1024},
		// The split ladder is capped at 4 MiB.
		{"split ladder cap", BloscLZ, 9, 16, 1 << 26, FilterShuffle, 4 * 1024 * 1024},
		// Non-splittable: the L1-based ladder.
		{"plain level 5", BloscLZ, 5, 1, 1 << 24, FilterNone, 128 * 1024},
		{"plain level 1", BloscLZ, 1, 1, 1 << 24, FilterNone, 16 * 1024},
		{"plain level 9", BloscLZ, 9, 1, 1 << 24, FilterNone, 256 * 1024},
		// High-ratio codecs double the base.
		{"hcr level 5", ZLIB, 5, 1, 1 << 24, FilterNone, 256 * 1024},
		{"hcr level 9", ZLIB, 9, 1, 1 << 24, FilterNone, 1024 * 1024},
		// Clamped to the buffer and rounded to whole elements.
		{"clamped", BloscLZ, 5, 4, 262144, FilterShuffle, 262144},
		{"tiny", BloscLZ, 5, 8, 4, FilterNone, 1},
	}

	for _, tc := range cases {
		got := automaticBlocksize(tc.codec, tc.level, tc.typeSize, tc.nbytes, 0, tc.filter, SplitForwardCompat)
		if got != tc.want {
			t.Errorf("%s: blocksize = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestAutomaticBlocksizeUserOverride(t *testing.T) {
	got := automaticBlocksize(BloscLZ, 5, 4, 1<<20, 10000, FilterShuffle, SplitForwardCompat)
	if got != 10000 {
		t.Errorf("user blocksize = %d, want 10000", got)
	}

	// Overrides are still rounded to whole elements.
	got = automaticBlocksize(BloscLZ, 5, 8, 1<<20, 10001, FilterShuffle, SplitForwardCompat)
	if got != 10000 {
		t.Errorf("rounded user blocksize = %d, want 10000", got)
	}
}

func TestHCRClassification(t *testing.T) {
	for codec, want := range map[Codec]bool{
		BloscLZ: false,
		LZ4:     false,
		Snappy:  false,
		LZ4HC:   true,
		ZLIB:    true,
		ZSTD:    true,
	} {
		if got := isHCRCodec(codec); got != want {
			t.Errorf("isHCRCodec(%s) = %v, want %v", codec, got, want)
		}
	}
}
