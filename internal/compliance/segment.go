package compliance

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/qabot/constants"
	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/llm"
)

// Segmenter turns one raw oracle reply into zero or more violation texts.
// Zero segments means the batch is compliant; an error means the reply could not be parsed.
type Segmenter interface {
	Segment(raw string) ([]string, error)
}

// ParagraphSegmenter splits a free-text reply on blank lines; every non-empty paragraph is one violation.
// A reply that is only the word "Compliant" yields nothing.
//
// Known weakness: a multi-paragraph explanation counts as several violations, and two violations
// without a blank line between them count as one. StyleJSON with JSONSegmenter avoids both.
type ParagraphSegmenter struct{}

func (ParagraphSegmenter) Segment(raw string) ([]string, error) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	if strings.TrimSpace(raw) == "" || constants.IsCompliantReply(raw) {
		return nil, nil
	}
	var (
		out []string
		cur []string
	)
	flush := func() {
		if seg := strings.TrimSpace(strings.Join(cur, "\n")); seg != "" {
			out = append(out, seg)
		}
		cur = cur[:0]
	}
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out, nil
}

// VerdictSegmenter reads a single-rule reply: "Compliant" (or nothing) means no violation,
// anything else is one violation.
type VerdictSegmenter struct{}

func (VerdictSegmenter) Segment(raw string) ([]string, error) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	if s == "" || constants.IsCompliantReply(s) {
		return nil, nil
	}
	return []string{s}, nil
}

// JSONSegmenter parses structured replies and validates them against the violations schema.
type JSONSegmenter struct {
	schema *jsonschema.Schema
	logger *slog.Logger
}

// NewJSONSegmenter compiles the violations schema once.
func NewJSONSegmenter(logger *slog.Logger) (*JSONSegmenter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := llm.CompileSchema(llm.BuildViolationsJSONSchema())
	if err != nil {
		return nil, err
	}
	return &JSONSegmenter{schema: schema, logger: logger}, nil
}

func (s *JSONSegmenter) Segment(raw string) ([]string, error) {
	trimmed := llm.StripCodeFences(raw)
	if trimmed == "" || constants.IsCompliantReply(trimmed) {
		return nil, nil
	}
	body := []byte(trimmed)
	if err := llm.ValidateJSON(s.schema, body); err != nil {
		// one lenient pass before giving up
		cleaned, _, nErr := llm.NormalizeViolationsJSON(body, s.logger)
		if nErr != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrUnparseable, err)
		}
		if vErr := llm.ValidateJSON(s.schema, cleaned); vErr != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrUnparseable, vErr)
		}
		body = cleaned
	}

	var reply llm.ViolationsReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnparseable, err)
	}
	out := make([]string, 0, len(reply.Violations))
	for _, v := range reply.Violations {
		expl := strings.TrimSpace(v.Explanation)
		if expl == "" {
			continue
		}
		if name := strings.TrimSpace(v.RuleName); name != "" {
			expl = name + ": " + expl
		}
		out = append(out, expl)
	}
	return out, nil
}
