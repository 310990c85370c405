package media

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestReadAllWithLimit(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		payload  string
		maxBytes int64
		tooBig   bool
	}{
		{name: "under limit", payload: "ogg-bytes", maxBytes: 32},
		{name: "exactly at limit", payload: "12345678", maxBytes: 8},
		{name: "one byte over", payload: "123456789", maxBytes: 8, tooBig: true},
		{name: "far over", payload: strings.Repeat("x", 1024), maxBytes: 16, tooBig: true},
		{name: "empty", payload: "", maxBytes: 4},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ReadAllWithLimit(bytes.NewReader([]byte(tc.payload)), tc.maxBytes)
			if tc.tooBig {
				if !errors.Is(err, ErrAssetTooLarge) {
					t.Fatalf("want ErrAssetTooLarge, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(got) != tc.payload {
				t.Fatalf("payload mismatch: got %q", got)
			}
		})
	}
}
