package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	data := []byte("mp4-bytes")

	url, err := store.Put(ctx, "videos/j1.mp4", data, "video/mp4")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "http://localhost:8080/static/videos/j1.mp4" {
		t.Fatalf("url = %q", url)
	}

	got, err := store.Get(ctx, "videos/j1.mp4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("data = %q, want %q", got, data)
	}

	ok, err := store.Exists(ctx, "videos/j1.mp4")
	if err != nil || !ok {
		t.Fatalf("exists = %v, %v", ok, err)
	}
}

func TestFileStoreOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "videos/j1.mp4", []byte("first"), "video/mp4"); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := store.Put(ctx, "videos/j1.mp4", []byte("second"), "video/mp4"); err != nil {
		t.Fatalf("second put: %v", err)
	}
	got, err := store.Get(ctx, "videos/j1.mp4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("data = %q, want overwrite", got)
	}
}

func TestFileStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Put(ctx, "thumbnails/j1.jpg", []byte("jpg"), "image/jpeg"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, "thumbnails/j1.jpg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err := store.Exists(ctx, "thumbnails/j1.jpg")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatal("object still present after delete")
	}

	// Deleting a missing key is not an error.
	if err := store.Delete(ctx, "thumbnails/j1.jpg"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"../escape.txt", "videos/../../escape.txt", "", "  "} {
		if _, err := store.Put(ctx, key, []byte("x"), "text/plain"); err == nil {
			t.Errorf("key %q accepted", key)
		}
	}
	if _, err := os.Stat(filepath.Join(store.BasePath(), "..", "escape.txt")); err == nil {
		t.Fatal("traversal escaped the storage root")
	}
}

func TestFileStoreNestedKeysCreateDirectories(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Put(context.Background(), "a/b/c/file.bin", []byte("x"), ""); err != nil {
		t.Fatalf("put nested: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.BasePath(), "a", "b", "c", "file.bin")); err != nil {
		t.Fatalf("nested file missing: %v", err)
	}
}

func TestFileStorePublicURLWithoutBase(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if got := store.PublicURL("videos/j1.mp4"); got != "videos/j1.mp4" {
		t.Fatalf("url = %q", got)
	}
}

func TestFileStoreRequiresBasePath(t *testing.T) {
	if _, err := NewFileStore("  ", ""); err == nil {
		t.Fatal("expected error for empty base path")
	}
}
