package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
)

func (e *Extractor) pdfToText(ctx context.Context, data []byte) (text string, pages int, warnings []string, err error) {
	tmp, err := os.CreateTemp("", "qabot-*.pdf")
	if err != nil {
		return "", 0, nil, fmt.Errorf("temp file: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil {
			e.logger.Warn("failed to remove temp file", "path", tmp.Name(), "error", rmErr)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", 0, nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, nil, fmt.Errorf("close temp file: %w", err)
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", tmp.Name(), "-")
	if err != nil {
		var w []string
		if s := strings.TrimSpace(string(errb)); s != "" {
			w = append(w, s)
		}
		return "", 0, w, fmt.Errorf("pdftotext: %w", err)
	}
	text = string(out)
	// form feed separates pages; pdftotext ends the last page with one too
	pages = strings.Count(strings.TrimRight(text, "\n"), "\f")
	if !strings.HasSuffix(strings.TrimRight(text, "\n"), "\f") {
		pages++
	}
	return text, pages, nil, nil
}
