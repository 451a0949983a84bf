package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/qabot/constants"
	"github.com/joseph-ayodele/qabot/internal/common"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner (tests).
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

var _ TextExtractor = (*Extractor)(nil)

// Extract picks a strategy based on the file extension.
// Empty output is an extraction error: there is nothing to judge.
func (e *Extractor) Extract(ctx context.Context, name string, data []byte) (TextExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(name))
	format := constants.MapExtToFormat(ext)
	e.logger.Debug("extract.start", "name", name, "ext", ext, "bytes", len(data))

	if format == "" {
		return TextExtractionResult{}, common.NewExtractionError(
			fmt.Sprintf("unsupported document type %q (allowed: docx, pdf, txt, md)", ext), common.ErrInvalidInput)
	}
	if len(data) == 0 {
		return TextExtractionResult{SourceType: format}, common.NewExtractionError("document is empty", common.ErrInvalidInput)
	}

	var (
		res TextExtractionResult
		err error
	)
	switch format {
	case constants.DOCX:
		res, err = e.extractDOCX(data)
	case constants.PDF:
		res, err = e.extractPDF(ctx, data)
	case constants.TXT:
		res, err = e.extractPlain(data)
	}
	res.SourceType = format
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("extract.failed", "name", name, "format", format, "error", err)
		return res, common.NewExtractionError(fmt.Sprintf("could not read %s", name), err)
	}
	if strings.TrimSpace(res.Text) == "" {
		e.logger.Warn("extract.empty", "name", name, "format", format)
		return res, common.NewExtractionError(fmt.Sprintf("no text found in %s", name), nil)
	}

	e.logger.Info("extract.ok",
		"name", name,
		"format", format,
		"method", res.Method,
		"chars", utf8.RuneCountInString(res.Text),
		"pages", res.Pages,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) extractDOCX(data []byte) (TextExtractionResult, error) {
	paras, err := docxParagraphs(data)
	if err != nil {
		return TextExtractionResult{Method: "docx-xml"}, err
	}
	return TextExtractionResult{
		Text:       strings.Join(paras, "\n"),
		Pages:      1,
		Method:     "docx-xml",
		Paragraphs: len(paras),
	}, nil
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (TextExtractionResult, error) {
	txt, pages, warn, err := e.pdfToText(ctx, data)
	if err != nil {
		return TextExtractionResult{Method: "pdf-text", Warnings: warn}, err
	}
	return TextExtractionResult{
		Text:     Normalize(txt),
		Pages:    pages,
		Method:   "pdf-text",
		Warnings: warn,
	}, nil
}

func (e *Extractor) extractPlain(data []byte) (TextExtractionResult, error) {
	var warn []string
	if !utf8.Valid(data) {
		warn = append(warn, "invalid UTF-8 replaced")
		data = []byte(strings.ToValidUTF8(string(data), "\uFFFD"))
	}
	txt := strings.TrimPrefix(string(data), "\ufeff")
	return TextExtractionResult{
		Text:     Normalize(txt),
		Pages:    1,
		Method:   "plain",
		Warnings: warn,
	}, nil
}
