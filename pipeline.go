package blosc2

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CompressInto compresses data into dst using the specified options and
// returns the total frame size. dst must be at least
// MaxCompressedSize(len(data)) bytes to guarantee success; with a smaller
// destination ErrOutputTooSmall is returned once even the verbatim
// fallback cannot fit. dst and data must not overlap.
func CompressInto(dst, data []byte, opts Options) (int, error) {
	if opts.TypeSize < 1 || opts.TypeSize > maxTypeSize {
		return 0, fmt.Errorf("%w: typesize %d", ErrInvalidArgument, opts.TypeSize)
	}
	if opts.Level < 0 || opts.Level > 9 {
		return 0, fmt.Errorf("%w: compression level %d", ErrInvalidArgument, opts.Level)
	}
	if opts.Filter > FilterBitShuffle {
		return 0, fmt.Errorf("%w: filter %d", ErrInvalidArgument, opts.Filter)
	}
	if opts.BlockSize < 0 || opts.BlockSize > maxBlockSize {
		return 0, fmt.Errorf("%w: blocksize %d", ErrInvalidArgument, opts.BlockSize)
	}
	if len(data) > maxBufferSize {
		return 0, fmt.Errorf("%w: buffer of %d bytes exceeds maximum", ErrInvalidArgument, len(data))
	}
	codec, ok := GetCodec(opts.Codec)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCodec, opts.Codec)
	}

	headerLen := HeaderSize
	if opts.ExtendedHeader {
		headerLen = ExtendedHeaderSize
	}

	n := len(data)
	blocksize := automaticBlocksize(opts.Codec, opts.Level, opts.TypeSize, n, opts.BlockSize, opts.Filter, opts.SplitMode)
	if blocksize < 1 {
		blocksize = 1
	}

	// Level 0 and tiny buffers are stored verbatim.
	if opts.Level == 0 || n < minBufferSize {
		return compressMemcpy(dst, data, opts, headerLen, blocksize)
	}

	split := splitBlocks(opts.SplitMode, opts.Codec, opts.Level, opts.TypeSize, blocksize, opts.Filter)
	if split && (blocksize < opts.TypeSize || blocksize%opts.TypeSize != 0) {
		// Streams must cover whole elements.
		split = false
	}

	cbytes, err := compressBlocks(dst, data, opts, codec, headerLen, blocksize, split)
	if err != nil {
		if errors.Is(err, errIncompressible) {
			return compressMemcpy(dst, data, opts, headerLen, blocksize)
		}
		return 0, err
	}
	return cbytes, nil
}

// frameHeader assembles the header for one frame.
func frameHeader(opts Options, filter Filter, memcpyed, split bool, blocksize, nbytes, cbytes int) *Header {
	flags := byte(opts.Codec) << 5
	if memcpyed {
		flags |= flagMemcpy
	} else if !split {
		flags |= flagNoSplit
	}

	h := &Header{
		Version:   Version1Format,
		VersionLZ: codecFormatVersion(opts.Codec),
		TypeSize:  uint8(opts.TypeSize),
		NBytes:    uint32(nbytes),
		BlockSize: uint32(blocksize),
		CBytes:    uint32(cbytes),
	}

	if opts.ExtendedHeader {
		h.Version = Version2Format
		h.Extended = true
		flags |= flagShuffle | flagBitShuffle // extended-header marker
		h.Filters[0] = uint8(filter)
		h.CompCode = uint8(opts.Codec)
	} else {
		switch filter {
		case FilterShuffle:
			flags |= flagShuffle
		case FilterBitShuffle:
			flags |= flagBitShuffle
		}
	}

	h.Flags = flags
	return h
}

// compressMemcpy emits the input verbatim after the header, with the
// MEMCPYED flag set. The body carries no offset table and no streams.
func compressMemcpy(dst, data []byte, opts Options, headerLen, blocksize int) (int, error) {
	n := len(data)
	if headerLen+n > len(dst) {
		return 0, fmt.Errorf("%w: need %d bytes", ErrOutputTooSmall, headerLen+n)
	}
	h := frameHeader(opts, FilterNone, true, false, blocksize, n, headerLen+n)
	h.encode(dst)
	copy(dst[headerLen:], data)
	return headerLen + n, nil
}

// compressBlocks runs the real pipeline: filter each block, compress its
// streams, and assemble header, offset table, and length-prefixed
// payloads. It reports errIncompressible as soon as any stream would not
// shrink, letting the caller restart in memcpy mode.
func compressBlocks(dst, data []byte, opts Options, codec CodecInterface, headerLen, blocksize int, split bool) (int, error) {
	n := len(data)
	typeSize := opts.TypeSize
	nblocks := (n + blocksize - 1) / blocksize
	op := headerLen + 4*nblocks
	if op > len(dst) {
		return 0, errIncompressible
	}

	var scratch, tmp []byte
	if opts.Filter != FilterNone {
		scratch = make([]byte, blocksize)
	}
	if opts.Filter == FilterBitShuffle {
		tmp = make([]byte, blocksize)
	}

	for b := 0; b < nblocks; b++ {
		bsize := blocksize
		if left := n - b*blocksize; left < bsize {
			bsize = left
		}
		blockSrc := data[b*blocksize : b*blocksize+bsize]

		filtered := blockSrc
		switch opts.Filter {
		case FilterShuffle:
			ShuffleBytes(scratch[:bsize], blockSrc, typeSize)
			filtered = scratch[:bsize]
		case FilterBitShuffle:
			bitShuffleBlock(scratch[:bsize], blockSrc, tmp, typeSize)
			filtered = scratch[:bsize]
		}

		// The final short block is never split.
		nstreams := 1
		if split && bsize == blocksize {
			nstreams = typeSize
		}
		neblock := bsize / nstreams

		binary.LittleEndian.PutUint32(dst[headerLen+4*b:], uint32(op))

		for s := 0; s < nstreams; s++ {
			stream := filtered[s*neblock : (s+1)*neblock]

			// A stored stream plus its prefix must not exceed the stream's
			// own size, or the whole buffer restarts in memcpy mode.
			avail := neblock - 4
			if rest := len(dst) - op - 4; rest < avail {
				avail = rest
			}
			if avail <= 0 {
				return 0, errIncompressible
			}

			produced, err := codec.Compress(dst[op+4:op+4+avail], stream, opts.Level)
			if err != nil {
				return 0, err
			}
			binary.LittleEndian.PutUint32(dst[op:], uint32(produced))
			op += 4 + produced
		}
	}

	if op >= headerLen+n {
		return 0, errIncompressible
	}

	h := frameHeader(opts, opts.Filter, false, split, blocksize, n, op)
	h.encode(dst)
	return op, nil
}

// DecompressInto decompresses a frame into dst and returns the number of
// bytes produced. dst must hold at least the recorded uncompressed size.
// dst and data must not overlap.
func DecompressInto(dst, data []byte) (int, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return 0, err
	}
	cbytes := int(h.CBytes)
	if cbytes > len(data) {
		return 0, fmt.Errorf("%w: frame truncated (%d of %d bytes)", ErrMalformedInput, len(data), cbytes)
	}
	frame := data[:cbytes]

	nbytes := int(h.NBytes)
	if nbytes > len(dst) {
		return 0, fmt.Errorf("%w: need %d bytes", ErrOutputTooSmall, nbytes)
	}
	if nbytes == 0 {
		return 0, nil
	}
	headerLen := h.Len()

	if h.IsMemcpy() {
		if cbytes != headerLen+nbytes {
			return 0, fmt.Errorf("%w: memcpy frame size mismatch", ErrMalformedInput)
		}
		copy(dst[:nbytes], frame[headerLen:])
		return nbytes, nil
	}

	filter, err := h.FilterMode()
	if err != nil {
		return 0, err
	}
	codec, ok := GetCodec(h.CodecID())
	if !ok {
		return 0, fmt.Errorf("%w: code %d", ErrUnsupportedCodec, h.CodecID())
	}

	blocksize := int(h.BlockSize)
	nblocks := (nbytes + blocksize - 1) / blocksize
	if headerLen+4*nblocks > cbytes {
		return 0, fmt.Errorf("%w: offset table overflows frame", ErrMalformedInput)
	}

	scratch, tmp := filterScratch(filter, blocksize)

	op := 0
	for b := 0; b < nblocks; b++ {
		bsize := blocksize
		if nbytes-op < bsize {
			bsize = nbytes - op
		}
		if err := decompressBlock(frame, h, codec, filter, b, nblocks, bsize, dst[op:op+bsize], scratch, tmp); err != nil {
			return 0, err
		}
		op += bsize
	}
	return op, nil
}

func filterScratch(filter Filter, blocksize int) (scratch, tmp []byte) {
	if filter != FilterNone {
		scratch = make([]byte, blocksize)
	}
	if filter == FilterBitShuffle {
		tmp = make([]byte, blocksize)
	}
	return scratch, tmp
}

// decompressBlock reconstructs one block: look up its offset, decompress
// each of its streams, and apply the inverse filter into out (the block's
// slice of the final buffer, bsize bytes).
func decompressBlock(frame []byte, h *Header, codec CodecInterface, filter Filter, b, nblocks, bsize int, out, scratch, tmp []byte) error {
	headerLen := h.Len()
	cbytes := len(frame)

	off := int(binary.LittleEndian.Uint32(frame[headerLen+4*b:]))
	if off < headerLen+4*nblocks || off > cbytes {
		return fmt.Errorf("%w: block %d offset %d out of range", ErrMalformedInput, b, off)
	}

	nstreams := 1
	if h.Flags&flagNoSplit == 0 && bsize == int(h.BlockSize) {
		nstreams = int(h.TypeSize)
	}
	neblock := bsize / nstreams
	if neblock*nstreams != bsize {
		return fmt.Errorf("%w: block %d cannot hold %d whole streams", ErrMalformedInput, b, nstreams)
	}

	target := out
	if filter != FilterNone {
		target = scratch[:bsize]
	}

	ip := off
	for s := 0; s < nstreams; s++ {
		if ip+4 > cbytes {
			return fmt.Errorf("%w: truncated stream prefix in block %d", ErrMalformedInput, b)
		}
		clen := int(binary.LittleEndian.Uint32(frame[ip:]))
		ip += 4
		if clen > cbytes-ip {
			return fmt.Errorf("%w: stream length %d overflows frame", ErrMalformedInput, clen)
		}
		if _, err := codec.Decompress(target[s*neblock:(s+1)*neblock], frame[ip:ip+clen]); err != nil {
			return err
		}
		ip += clen
	}

	switch filter {
	case FilterShuffle:
		UnshuffleBytes(out, target, int(h.TypeSize))
	case FilterBitShuffle:
		bitUnshuffleBlock(out, target, tmp, int(h.TypeSize))
	}
	return nil
}

// GetItem decompresses only the blocks covering the requested element
// range and returns nitems elements starting at element index start. It
// never reconstructs blocks outside the range.
func GetItem(data []byte, start, nitems int) ([]byte, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if start < 0 || nitems < 0 {
		return nil, fmt.Errorf("%w: negative item range", ErrInvalidArgument)
	}

	typeSize := int(h.TypeSize)
	nbytes := int(h.NBytes)
	startB := start * typeSize
	endB := startB + nitems*typeSize
	if endB > nbytes {
		return nil, fmt.Errorf("%w: items [%d,%d) outside buffer of %d elements",
			ErrInvalidArgument, start, start+nitems, nbytes/typeSize)
	}

	dst := make([]byte, nitems*typeSize)
	if nitems == 0 {
		return dst, nil
	}

	cbytes := int(h.CBytes)
	if cbytes > len(data) {
		return nil, fmt.Errorf("%w: frame truncated (%d of %d bytes)", ErrMalformedInput, len(data), cbytes)
	}
	frame := data[:cbytes]
	headerLen := h.Len()

	if h.IsMemcpy() {
		if cbytes != headerLen+nbytes {
			return nil, fmt.Errorf("%w: memcpy frame size mismatch", ErrMalformedInput)
		}
		copy(dst, frame[headerLen+startB:headerLen+endB])
		return dst, nil
	}

	filter, err := h.FilterMode()
	if err != nil {
		return nil, err
	}
	codec, ok := GetCodec(h.CodecID())
	if !ok {
		return nil, fmt.Errorf("%w: code %d", ErrUnsupportedCodec, h.CodecID())
	}

	blocksize := int(h.BlockSize)
	nblocks := (nbytes + blocksize - 1) / blocksize
	if headerLen+4*nblocks > cbytes {
		return nil, fmt.Errorf("%w: offset table overflows frame", ErrMalformedInput)
	}

	scratch, tmp := filterScratch(filter, blocksize)
	blockBuf := make([]byte, blocksize)

	for b := startB / blocksize; b <= (endB-1)/blocksize; b++ {
		bsize := blocksize
		if left := nbytes - b*blocksize; left < bsize {
			bsize = left
		}
		if err := decompressBlock(frame, h, codec, filter, b, nblocks, bsize, blockBuf[:bsize], scratch, tmp); err != nil {
			return nil, err
		}

		lo := b * blocksize
		if startB > lo {
			lo = startB
		}
		hi := b*blocksize + bsize
		if endB < hi {
			hi = endB
		}
		copy(dst[lo-startB:hi-startB], blockBuf[lo-b*blocksize:hi-b*blocksize])
	}
	return dst, nil
}
