package localfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/parloteam/parlo/internal/media"
)

func TestPutOpenDelete(t *testing.T) {
	t.Parallel()
	provider, err := New(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	data := []byte("payload")

	if err := provider.Put(ctx, "scope/audio/ab/abcd.ogg", bytes.NewReader(data)); err != nil {
		t.Fatalf("put: %v", err)
	}
	reader, err := provider.Open(ctx, "scope/audio/ab/abcd.ogg")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("payload mismatch")
	}

	if err := provider.Delete(ctx, "scope/audio/ab/abcd.ogg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := provider.Open(ctx, "scope/audio/ab/abcd.ogg"); err == nil {
		t.Fatal("want error after delete")
	}
}

func TestDeleteMissingIsNoError(t *testing.T) {
	t.Parallel()
	provider, err := New(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := provider.Delete(context.Background(), "never/stored.bin"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	t.Parallel()
	provider, err := New(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"../outside.bin", "..", "/etc/passwd", "a/../../outside"} {
		if err := provider.Put(ctx, key, bytes.NewReader([]byte("x"))); !errors.Is(err, media.ErrPathTraversal) {
			t.Fatalf("key %q: want ErrPathTraversal got %v", key, err)
		}
	}
}

func TestAccessPathPrefersBaseURL(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	withURL, err := New(root, "https://media.test/")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := withURL.AccessPath("a/b.ogg"); got != "https://media.test/a/b.ogg" {
		t.Fatalf("access path %q", got)
	}

	withoutURL, err := New(root, "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	want, _ := filepath.Abs(filepath.Join(root, "a/b.ogg"))
	if got := withoutURL.AccessPath("a/b.ogg"); got != want {
		t.Fatalf("host path %q want %q", got, want)
	}
}
