package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ocrPDF rasterises every page with pdftoppm and runs tesseract on each image.
// Page texts are joined in page order.
func (l *Loader) ocrPDF(ctx context.Context, path string) (string, error) {
	if err := l.ocrSlots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.ocrSlots.Release(1)

	tmpDir, err := os.MkdirTemp("", "ocr-*")
	if err != nil {
		return "", fmt.Errorf("create ocr dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	if _, err := l.runner.Run(ctx, l.ocr.PdftoppmPath,
		"-r", strconv.Itoa(l.ocr.DPI), "-png", path, prefix); err != nil {
		return "", fmt.Errorf("rasterise pdf: %w", err)
	}

	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", fmt.Errorf("rasteriser produced no images")
	}
	// pdftoppm zero-pads page numbers to a common width, so lexical order is page order
	sort.Strings(images)

	texts := make([]string, 0, len(images))
	for _, img := range images {
		out, err := l.runner.Run(ctx, l.ocr.TesseractPath, img, "stdout", "-l", l.ocr.Language)
		if err != nil {
			return "", fmt.Errorf("ocr %s: %w", filepath.Base(img), err)
		}
		if text := strings.TrimSpace(string(out)); text != "" {
			texts = append(texts, text)
		}
	}

	return strings.Join(texts, "\n\n"), nil
}
