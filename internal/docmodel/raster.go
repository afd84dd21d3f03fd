package docmodel

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// RasterDPI is the render resolution for OCR page images.
const RasterDPI = 300

// PageImage is one rendered page, in PDF page order.
type PageImage struct {
	Page int // 1-based
	Path string
}

// RenderPages rasterizes every page of the PDF at pdfPath into PNG files
// under outDir, fanning out across CPUs. Page images are named
// page_0001.png and so on. A page that fails to render is logged and
// skipped; only a document where no page renders is an error.
func RenderPages(pdfPath, outDir string, log *slog.Logger) ([]PageImage, error) {
	if log == nil {
		log = slog.Default()
	}
	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}

	maxWorkers := runtime.NumCPU()

	type result struct {
		pageNum int
		err     error
	}

	results := make(chan result, pageCount)
	sem := make(chan struct{}, maxWorkers)

	for page := 1; page <= pageCount; page++ {
		sem <- struct{}{} // acquire
		go func(pageNum int) {
			defer func() { <-sem }() // release
			results <- result{pageNum: pageNum, err: renderPageFn(pdfPath, outDir, pageNum)}
		}(page)
	}

	rendered := make(map[int]bool, pageCount)
	for i := 0; i < pageCount; i++ {
		r := <-results
		if r.err != nil {
			log.Warn("page render failed, skipping page", "page", r.pageNum, "error", r.err)
			continue
		}
		rendered[r.pageNum] = true
	}
	if len(rendered) == 0 {
		return nil, fmt.Errorf("no pages of %s could be rendered", pdfPath)
	}

	images := make([]PageImage, 0, len(rendered))
	for page := 1; page <= pageCount; page++ {
		if !rendered[page] {
			continue
		}
		images = append(images, PageImage{
			Page: page,
			Path: filepath.Join(outDir, fmt.Sprintf("page_%04d.png", page)),
		})
	}
	return images, nil
}

// renderPageFn is swapped in tests; pdftoppm is not available there.
var renderPageFn = renderPage

// renderPage renders a single page using pdftoppm (poppler-utils).
func renderPage(pdfPath, outDir string, pageNum int) error {
	tmpDir, err := os.MkdirTemp("", "inkfill-page-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	// -png: output PNG format
	// -f/-l N: render only this page
	// -r: resolution in DPI
	// -singlefile: don't add page number suffix
	pageStr := fmt.Sprintf("%d", pageNum)
	cmd := exec.Command("pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", RasterDPI),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	srcPath := outputPrefix + ".png"
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read rendered image: %w", err)
	}

	dstPath := filepath.Join(outDir, fmt.Sprintf("page_%04d.png", pageNum))
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write page image: %w", err)
	}
	return nil
}
