// Package blosc2 provides a pure Go implementation of the Blosc2
// block-compression container.
//
// Blosc2 is a meta-codec optimized for typed binary data, commonly used in
// scientific computing and VFX applications. It partitions a buffer into
// independent blocks, applies an optional byte-shuffle or bit-shuffle
// filter to each block to concentrate redundancy, then hands the result to
// an inner codec (BloscLZ, LZ4, ZSTD, ZLIB, Snappy) and assembles the
// pieces into a self-describing frame readable by any conforming Blosc2
// implementation.
//
// # Basic Usage
//
//	// Compress data
//	compressed, err := blosc2.Compress(data, blosc2.BloscLZ, 5, blosc2.FilterShuffle, 4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Decompress data
//	decompressed, err := blosc2.Decompress(compressed)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Filters
//
// Blosc2 supports three filter modes that rearrange bytes before
// compression:
//
//   - FilterNone: No preprocessing, data compressed as-is
//   - FilterShuffle: Byte shuffle - groups bytes by position within elements
//   - FilterBitShuffle: Bit-level shuffle for maximum compression of typed data
//
// # Supported Codecs
//
//   - BloscLZ: Fast LZ77 codec implemented in-tree (default)
//   - LZ4 / LZ4HC: Very fast compression/decompression
//   - ZSTD: High compression ratio with good speed
//   - ZLIB: Standard deflate compression
//   - Snappy: Google's fast compression codec
//
// # Thread Safety
//
// The compression and decompression functions are safe for concurrent use:
// every call owns its scratch buffers. The one piece of shared mutable state
// is the codec registry: RegisterCodec writes it without locking, so it must
// not run concurrently with any other call of this package.
package blosc2

import (
	"fmt"
)

// Version constants
const (
	Version = "1.0.0"

	// Version1Format is the format generation written in plain 16-byte
	// frames (Blosc 1.x stable series).
	Version1Format = 2

	// Version2Format is the format generation written in extended 32-byte
	// frames (Blosc 2.x stable series).
	Version2Format = 5
)

// Header size constants.
const (
	// HeaderSize is the size of the fixed (v1) frame header.
	HeaderSize = 16

	// ExtendedHeaderSize is the size of the extended (v2) frame header,
	// signaled by setting both shuffle-flag bits.
	ExtendedHeaderSize = 32

	// MaxOverhead is the worst-case number of bytes by which a frame can
	// exceed its input: a compressed frame, offset table included, is kept
	// smaller than the verbatim copy, whose only addition is the header.
	MaxOverhead = ExtendedHeaderSize
)

// Internal capacity limits, matching the C Blosc2 library.
const (
	maxBufferSize  = 1<<31 - 1 - MaxOverhead // single-buffer cap
	maxBlockSize   = 536866816
	maxTypeSize    = 255
	minBufferSize  = 32 // below this, buffers are stored verbatim
	maxFilterSlots = 6  // slots in the extended-header filter pipeline
	maxStreams     = 16 // largest typesize eligible for split streams
)

// Codec identifies the inner compression algorithm.
type Codec uint8

const (
	BloscLZ Codec = iota // BloscLZ (implemented in-tree)
	LZ4                  // LZ4 compression
	LZ4HC                // LZ4 High Compression
	Snappy               // Snappy compression
	ZLIB                 // ZLIB/deflate compression
	ZSTD                 // Zstandard compression
)

// String returns the codec name.
func (c Codec) String() string {
	switch c {
	case BloscLZ:
		return "blosclz"
	case LZ4:
		return "lz4"
	case LZ4HC:
		return "lz4hc"
	case Snappy:
		return "snappy"
	case ZLIB:
		return "zlib"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// Filter selects the byte/bit reordering applied to each block before the
// inner codec runs. Filters are block-local and exactly invertible.
type Filter uint8

const (
	FilterNone       Filter = 0 // no filter
	FilterShuffle    Filter = 1 // byte shuffle
	FilterBitShuffle Filter = 2 // bit shuffle
)

// String returns the filter name.
func (f Filter) String() string {
	switch f {
	case FilterNone:
		return "nofilter"
	case FilterShuffle:
		return "shuffle"
	case FilterBitShuffle:
		return "bitshuffle"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// SplitMode controls whether a shuffled block is compressed as typesize
// separate byte streams.
type SplitMode uint8

const (
	// SplitForwardCompat decides per the compatibility heuristic: split for
	// fast codecs with byte shuffle and small typesizes. This is the
	// default and the mode other Blosc implementations expect.
	SplitForwardCompat SplitMode = 0

	// SplitAlways splits every full block regardless of codec.
	SplitAlways SplitMode = 1

	// SplitNever keeps each block as a single stream.
	SplitNever SplitMode = 2

	// SplitAuto currently behaves like SplitForwardCompat.
	SplitAuto SplitMode = 3
)

// Flag bits in byte 2 of the frame header.
const (
	flagShuffle    = 0x01 // byte shuffle requested
	flagBitShuffle = 0x02 // bit shuffle requested
	flagMemcpy     = 0x04 // body is a raw copy, no blocks, no streams
	flagNoSplit    = 0x10 // block streams were NOT split
	// The three high bits (0xE0) carry the codec code. Setting both
	// shuffle bits at once is the extended-header marker, not a filter
	// request.
)

// Options configures Blosc2 compression behavior.
type Options struct {
	Codec     Codec     // Inner codec (BloscLZ, LZ4, LZ4HC, Snappy, ZLIB, ZSTD)
	Level     int       // Compression level (0-9; 0 stores verbatim)
	Filter    Filter    // Filter mode (FilterNone, FilterShuffle, FilterBitShuffle)
	TypeSize  int       // Element size in bytes for the filters (1-255)
	BlockSize int       // Block size in bytes (0 = automatic)
	SplitMode SplitMode // Stream-splitting policy (default SplitForwardCompat)

	// ExtendedHeader emits the 32-byte v2 header carrying an explicit
	// filter pipeline and authoritative codec code. The default 16-byte
	// header is understood by every Blosc generation.
	ExtendedHeader bool
}

// DefaultOptions returns the default compression options.
func DefaultOptions() Options {
	return Options{
		Codec:    BloscLZ,
		Level:    5,
		Filter:   FilterShuffle,
		TypeSize: 4,
	}
}

// Compress compresses data into a self-contained Blosc2 frame.
//
// Parameters:
//   - data: input buffer to compress
//   - codec: inner codec (BloscLZ, LZ4, LZ4HC, Snappy, ZLIB, ZSTD)
//   - level: compression level (0-9; 0 stores verbatim)
//   - filter: filter mode applied per block before the codec
//   - typeSize: element size in bytes the filters operate on (1-255)
//
// Returns the compressed frame, or an error.
func Compress(data []byte, codec Codec, level int, filter Filter, typeSize int) ([]byte, error) {
	return CompressWithOptions(data, Options{
		Codec:    codec,
		Level:    level,
		Filter:   filter,
		TypeSize: typeSize,
	})
}

// CompressWithOptions compresses data using the specified options,
// allocating a destination of the worst-case frame size.
func CompressWithOptions(data []byte, opts Options) ([]byte, error) {
	dst := make([]byte, MaxCompressedSize(len(data)))
	n, err := CompressInto(dst, data, opts)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// Decompress decompresses a Blosc2 frame, allocating the output from the
// size recorded in the header.
func Decompress(data []byte) ([]byte, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, h.NBytes)
	n, err := DecompressInto(dst, data)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// MaxCompressedSize returns the destination capacity that always suffices
// to compress n input bytes: compression falls back to a verbatim copy
// rather than ever expanding past the fixed overhead.
func MaxCompressedSize(n int) int {
	return n + MaxOverhead
}

// GetInfo parses and returns the frame header without decompressing.
func GetInfo(data []byte) (*Header, error) {
	return ParseHeader(data)
}

// GetDecompressedSize returns the original size recorded in a frame.
func GetDecompressedSize(data []byte) (int, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return 0, err
	}
	return int(h.NBytes), nil
}

// Sizes returns the uncompressed size, the total frame size, and the block
// size recorded in a frame header.
func Sizes(data []byte) (nbytes, cbytes, blocksize int, err error) {
	h, err := ParseHeader(data)
	if err != nil {
		return 0, 0, 0, err
	}
	return int(h.NBytes), int(h.CBytes), int(h.BlockSize), nil
}

// MetaInfo returns the typesize and the raw flag byte recorded in a frame
// header.
func MetaInfo(data []byte) (typeSize int, flags byte, err error) {
	h, err := ParseHeader(data)
	if err != nil {
		return 0, 0, err
	}
	return int(h.TypeSize), h.Flags, nil
}

// Validate checks that data holds a well-formed frame whose recorded total
// size matches cbytes. It does not decompress the payload.
func Validate(data []byte, cbytes int) error {
	h, err := ParseHeader(data)
	if err != nil {
		return err
	}
	if int(h.CBytes) != cbytes {
		return fmt.Errorf("%w: recorded cbytes %d does not match buffer length %d",
			ErrMalformedInput, h.CBytes, cbytes)
	}
	return nil
}
