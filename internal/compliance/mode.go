package compliance

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/qabot/constants"
	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/llm"
)

// Policy is a check mode resolved into batching, prompt style and reply parsing.
type Policy struct {
	Mode      string
	Style     llm.PromptStyle
	Segmenter Segmenter
	fixedSize int // 0 = use the configured chunk size
}

// PolicyFor resolves a mode name. An empty name means chunked.
func PolicyFor(mode string, logger *slog.Logger) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case constants.ModePerRule:
		return Policy{Mode: constants.ModePerRule, Style: llm.StyleVerdict, Segmenter: VerdictSegmenter{}, fixedSize: 1}, nil
	case constants.ModeSingle:
		return Policy{Mode: constants.ModeSingle, Style: llm.StyleParagraphs, Segmenter: ParagraphSegmenter{}, fixedSize: AllRules}, nil
	case constants.ModeChunked, "":
		return Policy{Mode: constants.ModeChunked, Style: llm.StyleParagraphs, Segmenter: ParagraphSegmenter{}}, nil
	case constants.ModeStructured:
		seg, err := NewJSONSegmenter(logger)
		if err != nil {
			return Policy{}, fmt.Errorf("structured mode: %w", err)
		}
		return Policy{Mode: constants.ModeStructured, Style: llm.StyleJSON, Segmenter: seg}, nil
	default:
		return Policy{}, common.NewValidationError(fmt.Sprintf("unknown check mode %q (want one of: %s)", mode, strings.Join(constants.Modes, ", ")))
	}
}

// BatchSize returns the effective batch size given the configured chunk size.
func (p Policy) BatchSize(chunk int) int {
	if p.fixedSize > 0 {
		return p.fixedSize
	}
	if chunk <= 0 {
		return constants.DefaultMaxBatchSize
	}
	return chunk
}

// Options builds batcher options for this policy.
func (p Policy) Options(chunk, concurrency int) Options {
	return Options{
		MaxBatchSize: p.BatchSize(chunk),
		Segmenter:    p.Segmenter,
		Style:        p.Style,
		Concurrency:  concurrency,
	}
}
