package extract

import (
	"context"
	"time"
)

// TextExtractor turns an uploaded document into plain text.
// name is only used to pick the format from its extension.
type TextExtractor interface {
	Extract(ctx context.Context, name string, data []byte) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.DOCX | constants.PDF | constants.TXT
	Method     string // "docx-xml" | "pdf-text" | "plain"
	Paragraphs int
	Duration   time.Duration
	Warnings   []string
}
