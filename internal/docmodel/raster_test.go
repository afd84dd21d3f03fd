package docmodel

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/inkfill/inkfill/internal/testutil"
)

// swapRenderPage installs fn for the duration of the test. Tests using
// it must not run in parallel.
func swapRenderPage(t *testing.T, fn func(pdfPath, outDir string, pageNum int) error) {
	t.Helper()
	orig := renderPageFn
	renderPageFn = fn
	t.Cleanup(func() { renderPageFn = orig })
}

func TestRenderPages_SkipsFailedPages(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "doc.pdf")
	testutil.WritePagesPDF(t, pdfPath, 3)

	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	swapRenderPage(t, func(_, outDir string, pageNum int) error {
		if pageNum == 2 {
			return fmt.Errorf("render failed for page %d", pageNum)
		}
		name := filepath.Join(outDir, fmt.Sprintf("page_%04d.png", pageNum))
		return os.WriteFile(name, []byte("png"), 0o644)
	})

	images, err := RenderPages(pdfPath, outDir, nil)
	if err != nil {
		t.Fatalf("RenderPages() error = %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("len(images) = %d, want 2", len(images))
	}
	wantPages := []int{1, 3}
	for i, img := range images {
		if img.Page != wantPages[i] {
			t.Errorf("images[%d].Page = %d, want %d", i, img.Page, wantPages[i])
		}
		if _, err := os.Stat(img.Path); err != nil {
			t.Errorf("images[%d].Path %s not readable: %v", i, img.Path, err)
		}
	}
}

func TestRenderPages_AllPagesFail(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "doc.pdf")
	testutil.WritePagesPDF(t, pdfPath, 2)

	swapRenderPage(t, func(_, _ string, pageNum int) error {
		return fmt.Errorf("render failed for page %d", pageNum)
	})

	if _, err := RenderPages(pdfPath, dir, nil); err == nil {
		t.Error("RenderPages() error = nil, want error when no page renders")
	}
}
