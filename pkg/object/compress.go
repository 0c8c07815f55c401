package object

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic starts every zstd frame. Canonical encodings start with an ASCII
// type tag, so the two can never be confused on read.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// minCompressSize is the smallest payload worth a zstd frame.
const minCompressSize = 128

// compressor wraps a shared zstd encoder/decoder pair. Both are safe for
// concurrent EncodeAll/DecodeAll calls.
type compressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCompressor(level int) (*compressor, error) {
	var encLevel zstd.EncoderLevel
	switch level {
	case 1:
		encLevel = zstd.SpeedFastest
	case 3:
		encLevel = zstd.SpeedBetterCompression
	case 4:
		encLevel = zstd.SpeedBestCompression
	default:
		encLevel = zstd.SpeedDefault
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &compressor{enc: enc, dec: dec}, nil
}

// compress returns data unchanged when it is small or does not shrink.
func (c *compressor) compress(data []byte) []byte {
	if len(data) < minCompressSize {
		return data
	}
	out := c.enc.EncodeAll(data, make([]byte, 0, len(data)))
	if len(out) >= len(data) {
		return data
	}
	return out
}

func (c *compressor) decompress(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	return c.dec.DecodeAll(data, nil)
}

func (c *compressor) close() {
	c.enc.Close()
	c.dec.Close()
}
