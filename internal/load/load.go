// Package load reads module bytes from disk.
package load

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// LoadFile reads the module at path. Files ending in .zst, or starting with a
// zstd frame, are decompressed.
func LoadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".zst") && !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	out, err := Decompress(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// Decompress reads a zstd stream to the end.
func Decompress(r io.Reader) ([]byte, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing module: %w", err)
	}
	defer decoder.Close()
	out, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("decompressing module: %w", err)
	}
	return out, nil
}

// Compress encodes data as a single zstd frame.
func Compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, nil), nil
}
