package blosc2_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"

	blosc2 "github.com/mrjoshuak/go-blosc2"
)

func Example() {
	// 1000 little-endian uint32 values: typed data the shuffle filter
	// compresses well.
	values := make([]byte, 4*1000)
	for i := 0; i < 1000; i++ {
		binary.LittleEndian.PutUint32(values[i*4:], uint32(i))
	}

	compressed, err := blosc2.Compress(values, blosc2.BloscLZ, 5, blosc2.FilterShuffle, 4)
	if err != nil {
		log.Fatal(err)
	}

	decompressed, err := blosc2.Decompress(compressed)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("round-trip ok:", bytes.Equal(values, decompressed))
	fmt.Println("compressed smaller:", len(compressed) < len(values))
	// Output:
	// round-trip ok: true
	// compressed smaller: true
}

func ExampleGetItem() {
	values := make([]byte, 4*1000)
	for i := 0; i < 1000; i++ {
		binary.LittleEndian.PutUint32(values[i*4:], uint32(i))
	}

	compressed, err := blosc2.Compress(values, blosc2.BloscLZ, 5, blosc2.FilterShuffle, 4)
	if err != nil {
		log.Fatal(err)
	}

	// Fetch elements 500..503 without decompressing the whole buffer.
	items, err := blosc2.GetItem(compressed, 500, 3)
	if err != nil {
		log.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		fmt.Println(binary.LittleEndian.Uint32(items[i*4:]))
	}
	// Output:
	// 500
	// 501
	// 502
}

func ExampleSizes() {
	data := bytes.Repeat([]byte("blosc2 "), 1000)

	compressed, err := blosc2.Compress(data, blosc2.ZSTD, 5, blosc2.FilterNone, 1)
	if err != nil {
		log.Fatal(err)
	}

	nbytes, cbytes, _, err := blosc2.Sizes(compressed)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("original:", nbytes)
	fmt.Println("frame matches:", cbytes == len(compressed))
	// Output:
	// original: 7000
	// frame matches: true
}
