package blosc2

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/snappy"
	kzlib "github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CodecInterface is the uniform adapter around an inner codec. The
// pipeline hands each stream to exactly one adapter call.
type CodecInterface interface {
	// Compress compresses src into dst at the given level (1-9) and
	// returns the number of bytes written. When the result would not fit
	// in dst the stream is treated as incompressible and the pipeline
	// falls back to a verbatim frame.
	Compress(dst, src []byte, level int) (int, error)

	// Decompress decompresses src into dst, which has exactly the
	// expected output size. Corrupted input reports ErrMalformedInput.
	Decompress(dst, src []byte) (int, error)

	// Name returns the codec name.
	Name() string
}

// codecs maps codec IDs to implementations. Only codes 0-7 fit the
// three-bit field in the frame header.
var codecs = map[Codec]CodecInterface{
	BloscLZ: &blosclzCodec{},
	LZ4:     &lz4Codec{},
	LZ4HC:   &lz4hcCodec{},
	Snappy:  &snappyCodec{},
	ZLIB:    &zlibCodec{},
	ZSTD:    &zstdCodec{},
}

// Format generation of each shipped codec, recorded in header byte 1.
var codecFormatVersions = map[Codec]uint8{
	BloscLZ: 1,
	LZ4:     1,
	LZ4HC:   1,
	Snappy:  1,
	ZLIB:    1,
	ZSTD:    1,
}

// RegisterCodec registers a custom codec implementation. Wire codes above
// 7 cannot be represented in the frame header and are rejected.
func RegisterCodec(id Codec, codec CodecInterface) error {
	if id > 7 {
		return fmt.Errorf("%w: code %d does not fit the header field", ErrUnsupportedCodec, id)
	}
	codecs[id] = codec
	return nil
}

// GetCodec returns the codec implementation for the given ID.
func GetCodec(id Codec) (CodecInterface, bool) {
	c, ok := codecs[id]
	return c, ok
}

// ListCodecs returns all registered codec IDs.
func ListCodecs() []Codec {
	result := make([]Codec, 0, len(codecs))
	for id := range codecs {
		result = append(result, id)
	}
	return result
}

func codecFormatVersion(id Codec) uint8 {
	if v, ok := codecFormatVersions[id]; ok {
		return v
	}
	return 1
}

// =============================================================================
// BloscLZ Codec (in-tree)
// =============================================================================

type blosclzCodec struct{}

func (c *blosclzCodec) Name() string { return "blosclz" }

func (c *blosclzCodec) Compress(dst, src []byte, level int) (int, error) {
	n := blosclzCompress(level, src, dst)
	if n <= 0 {
		return 0, errIncompressible
	}
	return n, nil
}

func (c *blosclzCodec) Decompress(dst, src []byte) (int, error) {
	n, err := blosclzDecompress(src, dst)
	if err != nil {
		return 0, err
	}
	if n != len(dst) {
		return 0, fmt.Errorf("%w: blosclz produced %d bytes, want %d", ErrMalformedInput, n, len(dst))
	}
	return n, nil
}

// =============================================================================
// LZ4 Codec
// =============================================================================

type lz4Codec struct{}

func (c *lz4Codec) Name() string { return "lz4" }

func (c *lz4Codec) Compress(dst, src []byte, level int) (int, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(src)))
	var lc lz4.Compressor
	n, err := lc.CompressBlock(src, buf)
	if err != nil {
		return 0, fmt.Errorf("lz4 compress: %w", err)
	}
	if n == 0 || n > len(dst) {
		return 0, errIncompressible
	}
	copy(dst, buf[:n])
	return n, nil
}

func (c *lz4Codec) Decompress(dst, src []byte) (int, error) {
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return 0, fmt.Errorf("%w: lz4: %v", ErrMalformedInput, err)
	}
	if n != len(dst) {
		return 0, fmt.Errorf("%w: lz4 produced %d bytes, want %d", ErrMalformedInput, n, len(dst))
	}
	return n, nil
}

// =============================================================================
// LZ4HC Codec (High Compression)
// =============================================================================

type lz4hcCodec struct{}

func (c *lz4hcCodec) Name() string { return "lz4hc" }

func (c *lz4hcCodec) Compress(dst, src []byte, level int) (int, error) {
	// Map 1-9 to LZ4 compression levels
	var lz4Level lz4.CompressionLevel
	switch {
	case level <= 3:
		lz4Level = lz4.Level1
	case level <= 5:
		lz4Level = lz4.Level5
	case level <= 7:
		lz4Level = lz4.Level7
	default:
		lz4Level = lz4.Level9
	}

	buf := make([]byte, lz4.CompressBlockBound(len(src)))
	ht := make([]int, 1<<16)
	n, err := lz4.CompressBlockHC(src, buf, lz4Level, ht, nil)
	if err != nil {
		return 0, fmt.Errorf("lz4hc compress: %w", err)
	}
	if n == 0 || n > len(dst) {
		return 0, errIncompressible
	}
	copy(dst, buf[:n])
	return n, nil
}

func (c *lz4hcCodec) Decompress(dst, src []byte) (int, error) {
	// Decompression is the same as standard LZ4
	return (&lz4Codec{}).Decompress(dst, src)
}

// =============================================================================
// Snappy Codec
// =============================================================================

type snappyCodec struct{}

func (c *snappyCodec) Name() string { return "snappy" }

func (c *snappyCodec) Compress(dst, src []byte, level int) (int, error) {
	// Snappy doesn't have compression levels
	buf := snappy.Encode(nil, src)
	if len(buf) > len(dst) {
		return 0, errIncompressible
	}
	copy(dst, buf)
	return len(buf), nil
}

func (c *snappyCodec) Decompress(dst, src []byte) (int, error) {
	buf, err := snappy.Decode(dst, src)
	if err != nil {
		return 0, fmt.Errorf("%w: snappy: %v", ErrMalformedInput, err)
	}
	if len(buf) != len(dst) {
		return 0, fmt.Errorf("%w: snappy produced %d bytes, want %d", ErrMalformedInput, len(buf), len(dst))
	}
	copy(dst, buf)
	return len(buf), nil
}

// =============================================================================
// ZLIB Codec (using klauspost/compress for better performance)
// =============================================================================

type zlibCodec struct{}

func (c *zlibCodec) Name() string { return "zlib" }

func (c *zlibCodec) Compress(dst, src []byte, level int) (int, error) {
	var buf bytes.Buffer
	w, err := kzlib.NewWriterLevel(&buf, level)
	if err != nil {
		return 0, fmt.Errorf("zlib create writer: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		w.Close()
		return 0, fmt.Errorf("zlib write: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("zlib close: %w", err)
	}
	if buf.Len() > len(dst) {
		return 0, errIncompressible
	}
	copy(dst, buf.Bytes())
	return buf.Len(), nil
}

func (c *zlibCodec) Decompress(dst, src []byte) (int, error) {
	r, err := kzlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return 0, fmt.Errorf("%w: zlib: %v", ErrMalformedInput, err)
	}
	defer r.Close()

	if _, err := io.ReadFull(r, dst); err != nil {
		return 0, fmt.Errorf("%w: zlib: %v", ErrMalformedInput, err)
	}
	return len(dst), nil
}

// =============================================================================
// ZSTD Codec (with persistent encoders/decoders for performance)
// =============================================================================

type zstdCodec struct{}

func (c *zstdCodec) Name() string { return "zstd" }

// Persistent ZSTD encoders by level - initialized once, reused forever.
// EncodeAll is concurrent-safe, so multiple goroutines can share these.
var zstdEncoders = func() [4]*zstd.Encoder {
	var encoders [4]*zstd.Encoder
	levels := []zstd.EncoderLevel{
		zstd.SpeedFastest,
		zstd.SpeedDefault,
		zstd.SpeedBetterCompression,
		zstd.SpeedBestCompression,
	}
	for i, level := range levels {
		e, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		encoders[i] = e
	}
	return encoders
}()

// Persistent ZSTD decoder - DecodeAll is concurrent-safe.
var zstdDecoder = func() *zstd.Decoder {
	d, _ := zstd.NewReader(nil)
	return d
}()

func (c *zstdCodec) Compress(dst, src []byte, level int) (int, error) {
	// Map 1-9 to encoder index (0-3)
	idx := 1
	switch {
	case level <= 2:
		idx = 0
	case level <= 4:
		idx = 1
	case level <= 6:
		idx = 2
	default:
		idx = 3
	}
	buf := zstdEncoders[idx].EncodeAll(src, nil)
	if len(buf) > len(dst) {
		return 0, errIncompressible
	}
	copy(dst, buf)
	return len(buf), nil
}

func (c *zstdCodec) Decompress(dst, src []byte) (int, error) {
	buf, err := zstdDecoder.DecodeAll(src, dst[:0])
	if err != nil {
		return 0, fmt.Errorf("%w: zstd: %v", ErrMalformedInput, err)
	}
	if len(buf) != len(dst) {
		return 0, fmt.Errorf("%w: zstd produced %d bytes, want %d", ErrMalformedInput, len(buf), len(dst))
	}
	copy(dst, buf)
	return len(buf), nil
}
