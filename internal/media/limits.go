package media

import (
	"fmt"
	"io"
)

const (
	// MaxAssetBytes is the max accepted payload size. WhatsApp media caps out
	// well below this; the limit guards against misbehaving collaborators.
	MaxAssetBytes int64 = 64 * 1024 * 1024
)

// ReadAllWithLimit reads r to completion, failing with ErrAssetTooLarge
// once more than maxBytes have been consumed.
func ReadAllWithLimit(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("payload exceeds %d bytes: %w", maxBytes, ErrAssetTooLarge)
	}
	return data, nil
}
