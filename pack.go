package pfm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the algorithm used by Pack.
type Compression uint8

const (
	CompNone Compression = 0
	CompZSTD Compression = 1
	CompLZ4  Compression = 2
	CompBR   Compression = 3
)

// packMagic identifies a packed document; the trailing byte is the
// pack layout version.
var packMagic = [6]byte{'P', 'F', 'M', 'P', 'K', 1}

// packHeaderSize is magic(6) + compression(1) + uncompressed len(8).
const packHeaderSize = 15

// Pack serializes doc and wraps it in a compressed binary envelope:
// magic, compression code, little-endian uncompressed length, payload.
// The length field is what lets Unpack refuse decompression bombs
// before inflating anything.
func Pack(doc *Document, comp Compression, opts ...WriteOption) ([]byte, error) {
	plain, err := Serialize(doc, opts...)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch comp {
	case CompNone:
		payload = plain
	case CompZSTD:
		payload, err = zstdCompress(plain)
	case CompLZ4:
		payload, err = lz4Compress(plain)
	case CompBR:
		payload, err = brotliCompress(plain)
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidPack, comp)
	}
	if err != nil {
		return nil, err
	}

	out := make([]byte, packHeaderSize, packHeaderSize+len(payload))
	copy(out, packMagic[:])
	out[6] = byte(comp)
	binary.LittleEndian.PutUint64(out[7:15], uint64(len(plain)))
	return append(out, payload...), nil
}

// Unpack reverses Pack and parses the recovered bytes. The stated
// uncompressed length is checked against MaxUnpackedSize before
// inflating, and the recovered payload must match it exactly,
// whatever the compression.
func Unpack(data []byte, opts ...ReadOption) (*Document, error) {
	cfg := newReadConfig(opts)
	if len(data) < packHeaderSize {
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidPack)
	}
	if !bytes.Equal(data[:6], packMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidPack)
	}
	comp := Compression(data[6])
	expected := binary.LittleEndian.Uint64(data[7:15])
	if expected > uint64(cfg.limits.MaxUnpackedSize) {
		return nil, fmt.Errorf("%w: unpacked length %d (max %d)", ErrLimitExceeded, expected, cfg.limits.MaxUnpackedSize)
	}
	payload := data[packHeaderSize:]

	var plain []byte
	var err error
	switch comp {
	case CompNone:
		plain = payload
	case CompZSTD:
		plain, err = zstdDecompress(payload, expected)
	case CompLZ4:
		plain, err = lz4Decompress(payload, expected)
	case CompBR:
		plain, err = brotliDecompress(payload, expected)
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidPack, comp)
	}
	if err != nil {
		return nil, err
	}
	if uint64(len(plain)) != expected {
		return nil, fmt.Errorf("%w: unpacked %d bytes, header says %d", ErrInvalidPack, len(plain), expected)
	}
	return Parse(plain, opts...)
}

func zstdCompress(in []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(in, nil), nil
}

func zstdDecompress(in []byte, expected uint64) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(in, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPack, err)
	}
	if uint64(len(out)) > expected {
		return nil, fmt.Errorf("%w: zstd expanded beyond stated size", ErrInvalidPack)
	}
	return out, nil
}

func lz4Compress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(in); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lz4Decompress(in []byte, expected uint64) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(in))
	out, err := io.ReadAll(io.LimitReader(r, int64(expected)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPack, err)
	}
	if uint64(len(out)) > expected {
		return nil, fmt.Errorf("%w: lz4 expanded beyond stated size", ErrInvalidPack)
	}
	return out, nil
}

func brotliCompress(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	if _, err := bw.Write(in); err != nil {
		_ = bw.Close()
		return nil, err
	}
	if err := bw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func brotliDecompress(in []byte, expected uint64) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(in))
	out, err := io.ReadAll(io.LimitReader(r, int64(expected)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPack, err)
	}
	if uint64(len(out)) > expected {
		return nil, fmt.Errorf("%w: brotli expanded beyond stated size", ErrInvalidPack)
	}
	return out, nil
}
