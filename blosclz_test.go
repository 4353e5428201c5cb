package blosc2

import (
	"bytes"
	cryptorand "crypto/rand"
	"errors"
	"math/rand"
	"testing"
)

func blosclzRoundTrip(t *testing.T, data []byte, level int) []byte {
	t.Helper()
	dst := make([]byte, 2*len(data)+128)
	n := blosclzCompress(level, data, dst)
	if n <= 0 {
		t.Fatalf("level %d: compression rejected %d bytes", level, len(data))
	}
	out := make([]byte, len(data))
	m, err := blosclzDecompress(dst[:n], out)
	if err != nil {
		t.Fatalf("level %d: decompress failed: %v", level, err)
	}
	if m != len(data) {
		t.Fatalf("level %d: decompressed %d bytes, want %d", level, m, len(data))
	}
	if !bytes.Equal(data, out) {
		t.Fatalf("level %d: data mismatch", level)
	}
	return dst[:n]
}

func TestBloscLZRoundTrip(t *testing.T) {
	shuffled := make([]byte, 8192)
	ShuffleBytes(shuffled, makeCounterData(8192, 4), 4)

	datasets := map[string][]byte{
		"zeros":    make([]byte, 4096),
		"shuffled": shuffled,
		"text":     bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 200),
		"periodic": bytes.Repeat(makeTestData(977), 40),
	}

	for name, data := range datasets {
		for level := 1; level <= 9; level++ {
			t.Run(name, func(t *testing.T) {
				blosclzRoundTrip(t, data, level)
			})
		}
	}
}

func TestBloscLZCompressesRuns(t *testing.T) {
	compressed := blosclzRoundTrip(t, make([]byte, 5000), 5)
	if len(compressed) > 100 {
		t.Errorf("5000 zero bytes compressed to %d bytes", len(compressed))
	}
}

// A repeated pattern at a back-distance beyond 8191 exercises the
// far-match encoding.
func TestBloscLZFarMatch(t *testing.T) {
	pattern := makeTestData(64)
	filler := bytes.Repeat([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, 1640)
	data := make([]byte, 0, 2*len(pattern)+len(filler)+2000)
	data = append(data, pattern...)
	data = append(data, filler...)
	data = append(data, pattern...)
	data = append(data, filler[:2000]...)

	blosclzRoundTrip(t, data, 9)
}

// Runs longer than 264 bytes force length-extension bytes in the token.
func TestBloscLZLongLengths(t *testing.T) {
	for _, n := range []int{300, 520, 1000, 70000} {
		data := bytes.Repeat([]byte{7}, n)
		blosclzRoundTrip(t, data, 5)
	}
}

func TestBloscLZIncompressible(t *testing.T) {
	data := make([]byte, 8192)
	if _, err := cryptorand.Read(data); err != nil {
		t.Fatal(err)
	}
	dst := make([]byte, len(data))
	if n := blosclzCompress(5, data, dst); n != 0 {
		t.Errorf("random data compressed to %d bytes, want rejection", n)
	}
}

func TestBloscLZSmallBuffers(t *testing.T) {
	dst := make([]byte, 256)
	if n := blosclzCompress(5, make([]byte, 15), dst); n != 0 {
		t.Errorf("15-byte input accepted: %d", n)
	}
	if n := blosclzCompress(5, make([]byte, 4096), dst[:65]); n != 0 {
		t.Errorf("65-byte output accepted: %d", n)
	}
}

func TestBloscLZFormatMarker(t *testing.T) {
	compressed := blosclzRoundTrip(t, make([]byte, 1024), 5)
	if compressed[0]&(1<<5) == 0 {
		t.Error("first control byte must carry the format marker in bit 5")
	}
}

func TestBloscLZDecompressMalformed(t *testing.T) {
	cases := map[string][]byte{
		"empty":                {},
		"match before start":   {0x00, 0xAA, 0x45, 0x00},
		"truncated literals":   {0x05, 0x01, 0x02},
		"truncated match":      {0x00, 0xAA, 0x45},
		"truncated far":        {0x00, 0xAA, 0x5F, 0xFF, 0x01},
		"truncated length ext": {0x00, 0xAA, 0xE3, 0xFF},
	}
	out := make([]byte, 1024)
	for name, src := range cases {
		if _, err := blosclzDecompress(src, out); !errors.Is(err, ErrMalformedInput) {
			t.Errorf("%s: got %v, want ErrMalformedInput", name, err)
		}
	}
}

func TestBloscLZDecompressOutputBounds(t *testing.T) {
	data := make([]byte, 1024)
	dst := make([]byte, 2048)
	n := blosclzCompress(5, data, dst)
	if n <= 0 {
		t.Fatal("compression rejected zero block")
	}
	small := make([]byte, 100)
	if _, err := blosclzDecompress(dst[:n], small); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("overflowing output: got %v, want ErrMalformedInput", err)
	}
}

// Mutating compressed streams must never panic; any failure has to
// surface as ErrMalformedInput.
func TestBloscLZDecompressMutated(t *testing.T) {
	data := makeCounterData(4096, 4)
	dst := make([]byte, 8192)
	n := blosclzCompress(5, data, dst)
	if n <= 0 {
		t.Fatal("compression rejected counter block")
	}

	rng := rand.New(rand.NewSource(7))
	out := make([]byte, len(data))
	for trial := 0; trial < 500; trial++ {
		mutated := bytes.Clone(dst[:n])
		mutated[rng.Intn(n)] ^= byte(1 + rng.Intn(255))
		m, err := blosclzDecompress(mutated, out)
		if err == nil && m > len(out) {
			t.Fatal("decoder reported more bytes than the output holds")
		}
	}
}
