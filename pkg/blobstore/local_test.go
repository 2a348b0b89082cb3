package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalDisk(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalDisk(root, "bahamut")
	if err != nil {
		t.Fatalf("NewLocalDisk failed: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Get(ctx, "nothing.zip"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing error = %v, want ErrNotFound", err)
	}

	if err := store.Put(ctx, "export/out.zip", []byte("payload")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	onDisk, err := os.ReadFile(filepath.Join(root, "bahamut", "export", "out.zip"))
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if string(onDisk) != "payload" {
		t.Errorf("file content = %q, want %q", onDisk, "payload")
	}

	if err := store.Copy(ctx, "export/out.zip", "haya-dev", "import/bahamut_latest.zip"); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	copied, err := os.ReadFile(filepath.Join(root, "haya-dev", "import", "bahamut_latest.zip"))
	if err != nil {
		t.Fatalf("copy not written: %v", err)
	}
	if string(copied) != "payload" {
		t.Errorf("copied content = %q, want %q", copied, "payload")
	}

	if err := store.Copy(ctx, "absent.zip", "haya-dev", "x.zip"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Copy missing error = %v, want ErrNotFound", err)
	}
}

func TestLocalDisk_NamesStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	store, _ := NewLocalDisk(root, "bahamut")

	if err := store.Put(context.Background(), "../../escape.txt", []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "bahamut", "escape.txt")); err != nil {
		t.Errorf("expected blob inside bucket: %v", err)
	}
	if err := store.Put(context.Background(), "  ", []byte("x")); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestNewLocalDisk_Validation(t *testing.T) {
	if _, err := NewLocalDisk("", "b"); err == nil {
		t.Error("expected error for empty root")
	}
	if _, err := NewLocalDisk("/tmp", ""); err == nil {
		t.Error("expected error for empty bucket")
	}
}

func TestMemory_Buckets(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory("tiamat")
	mem.Put(ctx, "in.zip", []byte("a"))

	if err := mem.Copy(ctx, "in.zip", "haya-dev", "import/latest.zip"); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	data, err := mem.Bucket("haya-dev").Get(ctx, "import/latest.zip")
	if err != nil || string(data) != "a" {
		t.Errorf("Get via bucket view = %q, %v", data, err)
	}

	want := []string{"haya-dev/import/latest.zip", "tiamat/in.zip"}
	got := mem.Names()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}
