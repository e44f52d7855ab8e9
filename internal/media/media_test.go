package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFSStoreSave(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, "/media/")
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	url, err := store.Save(context.Background(), "image/png", []byte{0x89, 'P', 'N', 'G'})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !strings.HasPrefix(url, "/media/") || !strings.HasSuffix(url, ".png") {
		t.Errorf("unexpected url %q", url)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 stored file, got %d", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".png" {
		t.Errorf("expected .png extension, got %q", entries[0].Name())
	}
}

func TestFSStoreRejectsUnknownType(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), "/media/")
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	_, err = store.Save(context.Background(), "application/x-msdownload", []byte("nope"))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestObjectNamesAreUnique(t *testing.T) {
	a, err := objectName("image/jpeg")
	if err != nil {
		t.Fatalf("objectName: %v", err)
	}
	b, err := objectName("image/jpeg")
	if err != nil {
		t.Fatalf("objectName: %v", err)
	}
	if a == b {
		t.Errorf("expected distinct names, got %q twice", a)
	}
}
