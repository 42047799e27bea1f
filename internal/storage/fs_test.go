package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newFS(t *testing.T) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(filepath.Join(dir, "uploads"), dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs, dir
}

func TestFS_Put(t *testing.T) {
	fs, dir := newFS(t)

	loc, err := fs.Put(context.Background(), "foo_1700000000000", strings.NewReader("begin skip end"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	want := filepath.Join(dir, "uploads", "foo_1700000000000")
	if loc != want {
		t.Errorf("location = %q, want %q", loc, want)
	}

	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "begin skip end" {
		t.Errorf("content = %q", data)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "uploads"))
	if len(entries) != 1 {
		t.Errorf("expected only the stored file, found %d entries", len(entries))
	}
}

func TestFS_PutRejectsPaths(t *testing.T) {
	fs, _ := newFS(t)

	for _, name := range []string{"", ".", "..", "a/b", "../escape"} {
		if _, err := fs.Put(context.Background(), name, strings.NewReader("x")); err == nil {
			t.Errorf("Put(%q) should fail", name)
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestFS_PutFailureLeavesNoFile(t *testing.T) {
	fs, dir := newFS(t)

	if _, err := fs.Put(context.Background(), "broken_1", io.MultiReader(strings.NewReader("part"), failingReader{})); err == nil {
		t.Fatal("expected error from failing reader")
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "uploads"))
	if len(entries) != 0 {
		t.Errorf("expected empty upload dir, found %d entries", len(entries))
	}
}

func TestFS_PutCancelled(t *testing.T) {
	fs, _ := newFS(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := fs.Put(ctx, "late_1", strings.NewReader("data")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFS_Open(t *testing.T) {
	fs, dir := newFS(t)

	if err := os.MkdirAll(filepath.Join(dir, "pkgs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pkgs", "mypkg_2.wacc"), []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	obj, err := fs.Open(context.Background(), "pkgs/mypkg_2.wacc")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer obj.Close()

	if obj.Name != "mypkg_2.wacc" {
		t.Errorf("Name = %q", obj.Name)
	}
	if obj.Size != int64(len("payload")) {
		t.Errorf("Size = %d", obj.Size)
	}
	data, _ := io.ReadAll(obj)
	if string(data) != "payload" {
		t.Errorf("content = %q", data)
	}
}

func TestFS_OpenMissing(t *testing.T) {
	fs, dir := newFS(t)

	outside := filepath.Join(filepath.Dir(dir), "outside.wacc")

	tests := []struct {
		name     string
		location string
	}{
		{"empty", ""},
		{"absent", "pkgs/nope.wacc"},
		{"directory", "uploads"},
		{"parent escape", "../outside.wacc"},
		{"absolute", outside},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fs.Open(context.Background(), tt.location)
			if !errors.Is(err, ErrMissing) {
				t.Fatalf("expected ErrMissing, got %v", err)
			}
		})
	}
}

func TestFS_Check(t *testing.T) {
	fs, dir := newFS(t)

	if err := fs.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "uploads"))
	if len(entries) != 0 {
		t.Errorf("probe file left behind")
	}
}
