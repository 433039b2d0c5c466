// Package loader turns files on disk into page-level documents.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/pkg/apperror"
	"research-assistant-be/pkg/store"

	"golang.org/x/sync/semaphore"
)

type FileType string

const (
	FileTypeText     FileType = "text"
	FileTypeMarkdown FileType = "markdown"
	FileTypePDF      FileType = "pdf"
)

const moduleName = "DocumentLoader"

// DetectFileType maps a file name to a FileType by extension (case-insensitive).
func DetectFileType(name string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return FileTypeText, nil
	case ".md":
		return FileTypeMarkdown, nil
	case ".pdf":
		return FileTypePDF, nil
	default:
		return "", apperror.Newf(apperror.KindUnsupportedFormat, "unsupported file type %q", filepath.Ext(name))
	}
}

type OCROptions struct {
	Enabled       bool
	PdftoppmPath  string
	TesseractPath string
	Language      string
	DPI           int
	MaxConcurrent int // process-wide cap on running OCR jobs
}

// pageExtractor returns the plain text of every page of a PDF, in order.
type pageExtractor func(path string) ([]string, error)

type Loader struct {
	ocr          OCROptions
	runner       CommandRunner
	ocrSlots     *semaphore.Weighted
	extractPages pageExtractor
	logger       logger.ILogger
}

func NewLoader(ocr OCROptions, runner CommandRunner, log logger.ILogger) *Loader {
	if runner == nil {
		runner = ExecRunner{}
	}
	if ocr.PdftoppmPath == "" {
		ocr.PdftoppmPath = "pdftoppm"
	}
	if ocr.TesseractPath == "" {
		ocr.TesseractPath = "tesseract"
	}
	if ocr.Language == "" {
		ocr.Language = "eng"
	}
	if ocr.DPI <= 0 {
		ocr.DPI = 300
	}
	if ocr.MaxConcurrent <= 0 {
		ocr.MaxConcurrent = 1
	}
	return &Loader{
		ocr:          ocr,
		runner:       runner,
		ocrSlots:     semaphore.NewWeighted(int64(ocr.MaxConcurrent)),
		extractPages: extractPDFPages,
		logger:       log,
	}
}

type loadOptions struct {
	displayName string
}

type LoadOption func(*loadOptions)

// WithDisplayName sets the source recorded in page metadata. Uploads are
// written under temporary names, so the original filename is passed here.
func WithDisplayName(name string) LoadOption {
	return func(o *loadOptions) {
		o.displayName = name
	}
}

// Load reads path as fileType and returns its pages.
func (l *Loader) Load(ctx context.Context, path string, fileType FileType, opts ...LoadOption) (*store.Document, error) {
	o := loadOptions{displayName: filepath.Base(path)}
	for _, opt := range opts {
		opt(&o)
	}

	switch fileType {
	case FileTypeText, FileTypeMarkdown:
		return l.loadText(path, o.displayName)
	case FileTypePDF:
		return l.loadPDF(ctx, path, o.displayName)
	default:
		return nil, apperror.Newf(apperror.KindUnsupportedFormat, "unsupported file type %q", fileType)
	}
}

// LoadFile detects the type from the display name (or path) and loads it.
func (l *Loader) LoadFile(ctx context.Context, path string, opts ...LoadOption) (*store.Document, error) {
	o := loadOptions{displayName: filepath.Base(path)}
	for _, opt := range opts {
		opt(&o)
	}
	fileType, err := DetectFileType(o.displayName)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, path, fileType, opts...)
}

func (l *Loader) loadText(path, source string) (*store.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	if !utf8.Valid(raw) {
		return nil, apperror.Newf(apperror.KindUnsupportedFormat, "%s is not valid UTF-8 text", source)
	}

	text := string(raw)
	if strings.TrimSpace(text) == "" {
		return nil, apperror.Newf(apperror.KindEmptyDocument, "%s contains no text", source)
	}

	return &store.Document{
		Source: source,
		Pages: []store.Page{{
			Text:     text,
			Metadata: store.PageMetadata{Source: source, PageNumber: 1},
		}},
	}, nil
}

func (l *Loader) loadPDF(ctx context.Context, path, source string) (*store.Document, error) {
	texts, err := l.extractPages(path)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnsupportedFormat, err, fmt.Sprintf("%s is not a readable PDF", source))
	}

	doc := &store.Document{Source: source}
	for i, text := range texts {
		doc.Pages = append(doc.Pages, store.Page{
			Text:     text,
			Metadata: store.PageMetadata{Source: source, PageNumber: i + 1},
		})
	}

	if !doc.IsBlank() {
		return doc, nil
	}

	if !l.ocr.Enabled {
		return nil, apperror.Newf(apperror.KindNoExtractableText,
			"no extractable text in %s and OCR is disabled", source)
	}

	l.logger.Info(moduleName, "No text layer found, falling back to OCR", map[string]interface{}{
		"source": source,
		"pages":  len(texts),
	})

	text, err := l.ocrPDF(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.logger.Error(moduleName, "OCR failed", map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		})
		return nil, apperror.Wrap(apperror.KindNoExtractableText, err,
			fmt.Sprintf("no extractable text in %s: OCR failed", source))
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperror.Newf(apperror.KindNoExtractableText,
			"no extractable text in %s: OCR produced no text", source)
	}

	return &store.Document{
		Source: source,
		Pages: []store.Page{{
			Text:     text,
			Metadata: store.PageMetadata{Source: source, PageNumber: 1},
		}},
	}, nil
}
