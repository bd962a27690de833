package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"microtexture/internal/models"
)

func TestWriteFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "out.txt")

	if err := WriteFile(path, []byte("first")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := WriteFile(path, []byte("second")); err != nil {
		t.Fatalf("WriteFile failed on overwrite: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read back: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("Expected %q, got %q", "second", data)
	}
}

func TestWriteWithKeepsOldFileOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.csv")
	if err := WriteFile(path, []byte("old")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	boom := errors.New("boom")
	err := WriteWith(path, func(w io.Writer) error {
		if _, err := w.Write([]byte("partial")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the writer error to be returned, got %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "old" {
		t.Errorf("Expected the old content to survive, got %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestIPFImagePath(t *testing.T) {
	got := IPFImagePath("out", "PW9", "MTR", models.AxisZ)
	want := filepath.Join("out", "PW9", "IPF_Images", "Z", "IPF_MTR_Z_Image_w_Scalebar.png")
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestIsEmptyDir(t *testing.T) {
	dir := t.TempDir()

	empty, err := IsEmptyDir(filepath.Join(dir, "missing"))
	if err != nil || !empty {
		t.Errorf("Expected a missing dir to count as empty, got %v, %v", empty, err)
	}

	empty, err = IsEmptyDir(dir)
	if err != nil || !empty {
		t.Errorf("Expected a fresh temp dir to be empty, got %v, %v", empty, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "x"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	empty, err = IsEmptyDir(dir)
	if err != nil || empty {
		t.Errorf("Expected a populated dir to be non-empty, got %v, %v", empty, err)
	}
}

func TestListDream3D(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.dream3d", "b.DREAM3D", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ListDream3D(dir)
	if err != nil {
		t.Fatalf("ListDream3D failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 files, got %v", files)
	}

	single, err := ListDream3D(filepath.Join(dir, "notes.txt"))
	if err != nil || len(single) != 1 {
		t.Errorf("Expected a file path to be returned as is, got %v, %v", single, err)
	}
}
