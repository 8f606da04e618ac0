package store

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// EncodeBlob compresses a snapshot blob for storage.
func EncodeBlob(blob []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(blob, nil), nil
}

// DecodeBlob reverses EncodeBlob.
func DecodeBlob(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress blob: %w", err)
	}
	return out, nil
}
