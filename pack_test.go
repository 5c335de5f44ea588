package pfm

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	doc := sampleDoc()
	for _, comp := range []Compression{CompNone, CompZSTD, CompLZ4, CompBR} {
		t.Run(compName(comp), func(t *testing.T) {
			blob, err := Pack(doc, comp)
			if err != nil {
				t.Fatal(err)
			}
			got, err := Unpack(blob)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, doc) {
				t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, doc)
			}
		})
	}
}

func compName(c Compression) string {
	switch c {
	case CompNone:
		return "none"
	case CompZSTD:
		return "zstd"
	case CompLZ4:
		return "lz4"
	case CompBR:
		return "brotli"
	}
	return "unknown"
}

func TestPackUnknownCompression(t *testing.T) {
	if _, err := Pack(sampleDoc(), Compression(42)); !errors.Is(err, ErrInvalidPack) {
		t.Fatalf("got %v", err)
	}
}

func TestUnpackRejectsGarbage(t *testing.T) {
	blob, err := Pack(sampleDoc(), CompZSTD)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("truncated header", func(t *testing.T) {
		if _, err := Unpack(blob[:packHeaderSize-1]); !errors.Is(err, ErrInvalidPack) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("bad magic", func(t *testing.T) {
		corrupt := append([]byte(nil), blob...)
		corrupt[0] = 'X'
		if _, err := Unpack(corrupt); !errors.Is(err, ErrInvalidPack) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("unknown compression", func(t *testing.T) {
		corrupt := append([]byte(nil), blob...)
		corrupt[6] = 42
		if _, err := Unpack(corrupt); !errors.Is(err, ErrInvalidPack) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("corrupt payload", func(t *testing.T) {
		corrupt := append([]byte(nil), blob...)
		corrupt[len(corrupt)-1] ^= 0xFF
		if _, err := Unpack(corrupt); !errors.Is(err, ErrInvalidPack) {
			t.Fatalf("got %v", err)
		}
	})
}

// A pack header claiming an enormous uncompressed size must be refused
// before anything is inflated.
func TestUnpackRefusesBomb(t *testing.T) {
	blob, err := Pack(sampleDoc(), CompZSTD)
	if err != nil {
		t.Fatal(err)
	}
	bomb := append([]byte(nil), blob...)
	binary.LittleEndian.PutUint64(bomb[7:15], 1<<40)
	if _, err := Unpack(bomb); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("got %v", err)
	}
}

// Lying about the length in the other direction: header understates the
// real payload. The stated size must match the recovered bytes exactly,
// on the uncompressed path as much as the inflating ones.
func TestUnpackRejectsLengthLie(t *testing.T) {
	for _, comp := range []Compression{CompNone, CompLZ4} {
		t.Run(compName(comp), func(t *testing.T) {
			blob, err := Pack(sampleDoc(), comp)
			if err != nil {
				t.Fatal(err)
			}
			lie := append([]byte(nil), blob...)
			binary.LittleEndian.PutUint64(lie[7:15], 10)
			if _, err := Unpack(lie); !errors.Is(err, ErrInvalidPack) {
				t.Fatalf("got %v", err)
			}
		})
	}
}

func TestUnpackHonorsReadLimits(t *testing.T) {
	blob, err := Pack(sampleDoc(), CompNone)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Unpack(blob, WithReadLimits(Limits{MaxUnpackedSize: 8}))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("got %v", err)
	}
}
