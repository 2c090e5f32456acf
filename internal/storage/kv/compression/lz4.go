package compression

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4"
)

// NoCompressor implements a pass-through compressor.
type NoCompressor struct{}

// Name returns the name of the compressor.
func (c *NoCompressor) Name() string {
	return "none"
}

// Compress returns a copy of the data unchanged.
func (c *NoCompressor) Compress(data []byte) ([]byte, error) {
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// Decompress returns a copy of the data unchanged.
func (c *NoCompressor) Decompress(data []byte) ([]byte, error) {
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// MaxCompressedSize returns the same size since no compression is performed.
func (c *NoCompressor) MaxCompressedSize(uncompressedSize int) int {
	return uncompressedSize
}

// lz4HeaderSize is the length prefix carrying the uncompressed size, so
// decompression allocates exactly once.
const lz4HeaderSize = 4

// LZ4Compressor implements LZ4 block compression.
type LZ4Compressor struct{}

// Name returns the name of the compressor.
func (c *LZ4Compressor) Name() string {
	return "lz4"
}

// Compress compresses data as one LZ4 block prefixed with the original
// length.
func (c *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, lz4HeaderSize+lz4.CompressBlockBound(len(data)))
	binary.LittleEndian.PutUint32(buf[:lz4HeaderSize], uint32(len(data)))

	n, err := lz4.CompressBlock(data, buf[lz4HeaderSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	if n == 0 {
		// Incompressible input; store it raw behind the header.
		n = copy(buf[lz4HeaderSize:], data)
		binary.LittleEndian.PutUint32(buf[:lz4HeaderSize], 0)
	}
	return buf[:lz4HeaderSize+n], nil
}

// Decompress reverses Compress.
func (c *LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	if len(data) < lz4HeaderSize {
		return nil, fmt.Errorf("lz4 block too short: %d bytes", len(data))
	}

	size := binary.LittleEndian.Uint32(data[:lz4HeaderSize])
	if size == 0 {
		// Stored raw.
		out := make([]byte, len(data)-lz4HeaderSize)
		copy(out, data[lz4HeaderSize:])
		return out, nil
	}

	out := make([]byte, size)
	n, err := lz4.UncompressBlock(data[lz4HeaderSize:], out)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompression failed: %w", err)
	}
	return out[:n], nil
}

// MaxCompressedSize returns the worst-case compressed size including the
// length prefix.
func (c *LZ4Compressor) MaxCompressedSize(uncompressedSize int) int {
	return lz4HeaderSize + lz4.CompressBlockBound(uncompressedSize)
}
