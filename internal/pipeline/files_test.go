package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.pdf")
	dst := filepath.Join(dir, "dst.pdf")
	if err := os.WriteFile(src, []byte("pdf bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile() error = %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "pdf bytes" {
		t.Errorf("dst = %q", got)
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	if err := copyFile(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "out")); err == nil {
		t.Error("copyFile() expected error for missing source")
	}
}

func TestBackupCopy_UniquePerRun(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "form.pdf")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	b1, err := backupCopy(src)
	if err != nil {
		t.Fatalf("backupCopy() error = %v", err)
	}
	b2, err := backupCopy(src)
	if err != nil {
		t.Fatalf("backupCopy() error = %v", err)
	}
	if b1 == b2 {
		t.Errorf("backup paths collide: %s", b1)
	}
	if !strings.HasPrefix(filepath.Base(b1), "form.pdf.bak-") {
		t.Errorf("backup name = %s", b1)
	}
}

func TestScratchPath_Unique(t *testing.T) {
	p1 := scratchPath(".pdf")
	p2 := scratchPath(".pdf")
	if p1 == p2 {
		t.Errorf("scratch paths collide: %s", p1)
	}
	if !strings.HasSuffix(p1, ".pdf") {
		t.Errorf("scratch path = %s", p1)
	}
}
