package fsstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestBuildLockPath(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), ".fslocks")
	got, err := BuildLockPath(root, "store.catalog")
	if err != nil {
		t.Fatalf("BuildLockPath() error = %v", err)
	}
	want := filepath.Join(root, "store.catalog.lck")
	if got != want {
		t.Fatalf("BuildLockPath() = %q, want %q", got, want)
	}
}

func TestBuildLockPathInvalidKey(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), ".fslocks")
	invalid := []string{
		"",
		"Store.catalog",
		"store/catalog",
		".store.catalog",
		"store.catalog.",
		"store catalog",
	}
	for _, key := range invalid {
		key := key
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			_, err := BuildLockPath(root, key)
			if err == nil {
				t.Fatalf("BuildLockPath(%q) expected error", key)
			}
			if !errors.Is(err, ErrInvalidPath) {
				t.Fatalf("BuildLockPath(%q) error = %v, want ErrInvalidPath", key, err)
			}
		})
	}
}

func TestReadWriteJSONAtomic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.json")
	type payload struct {
		Title string `json:"title"`
	}
	in := payload{Title: "wool coat"}
	if err := WriteJSONAtomic(path, in, FileOptions{}); err != nil {
		t.Fatalf("WriteJSONAtomic() error = %v", err)
	}
	var out payload
	ok, err := ReadJSON(path, &out)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if !ok {
		t.Fatalf("ReadJSON() exists = false, want true")
	}
	if out.Title != in.Title {
		t.Fatalf("ReadJSON() value = %+v, want %+v", out, in)
	}
}

func TestReadJSONMissingFile(t *testing.T) {
	t.Parallel()

	var out map[string]any
	ok, err := ReadJSON(filepath.Join(t.TempDir(), "absent.json"), &out)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ok {
		t.Fatalf("ReadJSON() exists = true, want false")
	}
}

func TestWithLockRunsCriticalSection(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	lockPath, err := BuildLockPath(filepath.Join(root, ".fslocks"), "store.catalog")
	if err != nil {
		t.Fatalf("BuildLockPath() error = %v", err)
	}

	called := false
	err = WithLock(context.Background(), lockPath, func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock() error = %v", err)
	}
	if !called {
		t.Fatalf("WithLock() did not run critical section")
	}
}
