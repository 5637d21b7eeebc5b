package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/renanrgarcia/google-sheets-text-automation/internal/common"
)

// PDF text methods.
const (
	PDFMethodNative    = "native"
	PDFMethodPdftotext = "pdftotext"
)

type PDFConfig struct {
	Method    string // PDFMethodNative (default) | PDFMethodPdftotext
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	MaxPages  int    // 0 = no limit
}

// PDFReader reads the text of a local PDF, one page after another, each page
// followed by a line break.
type PDFReader struct {
	cfg    PDFConfig
	runner Runner
	logger *slog.Logger
}

func NewPDFReader(cfg PDFConfig, logger *slog.Logger) *PDFReader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Method == "" {
		cfg.Method = PDFMethodNative
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &PDFReader{cfg: cfg, runner: execRunner{}, logger: logger}
}

func (p *PDFReader) ReadText(ctx context.Context, ref Ref) (TextResult, error) {
	start := time.Now()
	if _, err := os.Stat(ref.Location); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return TextResult{}, fmt.Errorf("%w: %s", ErrSourceNotFound, ref.Location)
		}
		return TextResult{}, err
	}

	var (
		res TextResult
		err error
	)
	switch p.cfg.Method {
	case PDFMethodPdftotext:
		res, err = p.pdftotext(ctx, ref.Location)
	case PDFMethodNative:
		var f *os.File
		var r *pdf.Reader
		f, r, err = pdf.Open(ref.Location)
		if err != nil {
			return TextResult{}, fmt.Errorf("open pdf %s: %w", ref.Location, err)
		}
		defer f.Close()
		res, err = nativeText(r, p.cfg.MaxPages)
	default:
		return TextResult{}, fmt.Errorf("unknown pdf method %q", p.cfg.Method)
	}
	if err != nil {
		return res, err
	}
	res.Duration = time.Since(start)
	p.logger.Debug("pdf text read", "run_id", common.RunIDFromContext(ctx), "path", ref.Location, "method", res.Method, "pages", res.Pages, "bytes", len(res.Text))
	return res, nil
}

// PDFBytesText parses an in-memory PDF with the native reader.
func PDFBytesText(data []byte, maxPages int) (TextResult, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return TextResult{}, fmt.Errorf("open pdf: %w", err)
	}
	return nativeText(r, maxPages)
}

func nativeText(r *pdf.Reader, maxPages int) (TextResult, error) {
	total := r.NumPage()
	if maxPages > 0 && total > maxPages {
		total = maxPages
	}
	var b strings.Builder
	var warns []string
	pages := 0
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		txt, err := page.GetPlainText(nil)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", i, err))
			continue
		}
		b.WriteString(txt)
		b.WriteString("\n")
		pages++
	}
	return TextResult{Text: b.String(), Pages: pages, Method: "pdf-native", Warnings: warns}, nil
}

func (p *PDFReader) pdftotext(ctx context.Context, path string) (TextResult, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	args := []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}
	if p.cfg.MaxPages > 0 {
		args = append(args, "-l", fmt.Sprintf("%d", p.cfg.MaxPages))
	}
	args = append(args, path, "-")
	out, errb, err := p.runner.Run(ctx, p.cfg.Pdftotext, args...)
	if err != nil {
		return TextResult{Warnings: []string{string(errb)}}, fmt.Errorf("pdftotext %s: %w", path, err)
	}
	text, pages := joinFormFeedPages(string(out))
	return TextResult{Text: text, Pages: pages, Method: "pdftotext"}, nil
}

// joinFormFeedPages turns pdftotext's form-feed page separators into the
// same page-then-newline layout the native reader produces.
func joinFormFeedPages(out string) (string, int) {
	parts := strings.Split(out, "\f")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	var b strings.Builder
	for _, page := range parts {
		b.WriteString(page)
		b.WriteString("\n")
	}
	return b.String(), len(parts)
}
