package blosc2

import (
	"encoding/binary"
	"fmt"
)

// Header represents a Blosc2 frame header. The fixed 16-byte layout is
// shared by every format generation; the extended fields are present only
// when both shuffle-flag bits are set in Flags (the v2 marker). The two
// marker bits do not themselves request any filter: an extended header
// carries the filter pipeline explicitly.
type Header struct {
	Version   uint8  // format generation (2 for v1 frames, 5 for v2)
	VersionLZ uint8  // inner codec format generation
	Flags     uint8  // filter, memcpy and split flags plus codec code
	TypeSize  uint8  // element size for the filters
	NBytes    uint32 // original (uncompressed) size
	BlockSize uint32 // block size used for compression
	CBytes    uint32 // total frame size (including this header)

	// Extended (v2) fields, valid only when Extended is true.
	Extended    bool
	Filters     [maxFilterSlots]uint8 // filter pipeline, slot 0 applied first
	CompCode    uint8                 // codec code, authoritative in v2
	FiltersMeta [maxFilterSlots]uint8 // per-slot filter metadata
}

// ParseHeader parses and validates a frame header.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: buffer shorter than header", ErrMalformedInput)
	}

	h := &Header{
		Version:   data[0],
		VersionLZ: data[1],
		Flags:     data[2],
		TypeSize:  data[3],
		NBytes:    binary.LittleEndian.Uint32(data[4:8]),
		BlockSize: binary.LittleEndian.Uint32(data[8:12]),
		CBytes:    binary.LittleEndian.Uint32(data[12:16]),
	}

	if h.Flags&(flagShuffle|flagBitShuffle) == flagShuffle|flagBitShuffle {
		h.Extended = true
		if len(data) < ExtendedHeaderSize {
			return nil, fmt.Errorf("%w: buffer shorter than extended header", ErrMalformedInput)
		}
		if h.CBytes < ExtendedHeaderSize {
			return nil, fmt.Errorf("%w: cbytes %d below extended header size", ErrMalformedInput, h.CBytes)
		}
		copy(h.Filters[:], data[16:22])
		h.CompCode = data[22]
		copy(h.FiltersMeta[:], data[24:30])
	}

	if h.Version < Version1Format || h.Version > Version2Format {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrMalformedInput, h.Version)
	}
	if int(h.CBytes) < h.Len() {
		return nil, fmt.Errorf("%w: cbytes %d below header size", ErrMalformedInput, h.CBytes)
	}
	if h.TypeSize == 0 {
		return nil, fmt.Errorf("%w: zero typesize", ErrMalformedInput)
	}
	if h.BlockSize == 0 || h.BlockSize > maxBlockSize {
		return nil, fmt.Errorf("%w: blocksize %d out of range", ErrMalformedInput, h.BlockSize)
	}
	if h.NBytes > 0 && h.BlockSize > h.NBytes {
		return nil, fmt.Errorf("%w: blocksize %d exceeds nbytes %d", ErrMalformedInput, h.BlockSize, h.NBytes)
	}
	if h.NBytes > maxBufferSize {
		return nil, fmt.Errorf("%w: nbytes %d exceeds maximum buffer size", ErrMalformedInput, h.NBytes)
	}

	return h, nil
}

// Len returns the on-wire header length: 16 bytes, or 32 when the
// extended-header marker is present.
func (h *Header) Len() int {
	if h.Extended {
		return ExtendedHeaderSize
	}
	return HeaderSize
}

// Bytes serializes the header.
func (h *Header) Bytes() []byte {
	buf := make([]byte, h.Len())
	h.encode(buf)
	return buf
}

// encode writes the header into dst, which must hold Len() bytes, and
// returns the number of bytes written.
func (h *Header) encode(dst []byte) int {
	dst[0] = h.Version
	dst[1] = h.VersionLZ
	dst[2] = h.Flags
	dst[3] = h.TypeSize
	binary.LittleEndian.PutUint32(dst[4:8], h.NBytes)
	binary.LittleEndian.PutUint32(dst[8:12], h.BlockSize)
	binary.LittleEndian.PutUint32(dst[12:16], h.CBytes)
	if !h.Extended {
		return HeaderSize
	}
	copy(dst[16:22], h.Filters[:])
	dst[22] = h.CompCode
	dst[23] = 0
	copy(dst[24:30], h.FiltersMeta[:])
	dst[30] = 0
	dst[31] = 0
	return ExtendedHeaderSize
}

// IsMemcpy returns true if the body is a raw copy of the original buffer.
func (h *Header) IsMemcpy() bool {
	return h.Flags&flagMemcpy != 0
}

// CodecID returns the inner codec code: the authoritative extended-header
// byte for v2 frames, the three high flag bits otherwise.
func (h *Header) CodecID() Codec {
	if h.Extended {
		return Codec(h.CompCode)
	}
	return Codec(h.Flags >> 5)
}

// FilterMode returns the single filter recorded in the header. For v1
// frames it is taken from the flag bits. For v2 frames the pipeline slots
// are authoritative and must reduce to one of none/shuffle/bitshuffle;
// anything else is rejected until chained-filter semantics are pinned
// down by the format.
func (h *Header) FilterMode() (Filter, error) {
	if !h.Extended {
		if h.Flags&flagShuffle != 0 {
			return FilterShuffle, nil
		}
		if h.Flags&flagBitShuffle != 0 {
			return FilterBitShuffle, nil
		}
		return FilterNone, nil
	}
	active := FilterNone
	for slot, code := range h.Filters {
		switch Filter(code) {
		case FilterNone:
		case FilterShuffle, FilterBitShuffle:
			if active != FilterNone {
				return 0, fmt.Errorf("%w: filter pipeline does not reduce to a single filter", ErrMalformedInput)
			}
			active = Filter(code)
		default:
			return 0, fmt.Errorf("%w: unknown filter code %d in slot %d", ErrMalformedInput, code, slot)
		}
	}
	return active, nil
}
