package llm

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/qabot/internal/entity"
)

// PromptStyle selects how the model is asked to report.
type PromptStyle string

const (
	// StyleVerdict asks for exactly "Compliant" or only the explanation (one rule per call).
	StyleVerdict PromptStyle = "verdict"
	// StyleParagraphs asks for one paragraph per violation, separated by blank lines.
	StyleParagraphs PromptStyle = "paragraphs"
	// StyleJSON asks for a JSON object matching BuildViolationsJSONSchema.
	StyleJSON PromptStyle = "json"
)

// JudgeRequest is one oracle round-trip: the document against a batch of rules.
type JudgeRequest struct {
	DocumentText string
	Batch        entity.RuleBatch
	Style        PromptStyle
}

// ErrTruncatedReply means the model stopped at its token limit, so the reply is incomplete.
var ErrTruncatedReply = errors.New("reply truncated at token limit")

// Oracle is the interface the compliance batcher depends on.
// Implementations return the model's raw reply text, untouched.
type Oracle interface {
	Judge(ctx context.Context, req JudgeRequest) (string, error)
}

// ViolationItem is one element of a structured (StyleJSON) reply.
type ViolationItem struct {
	RuleName    string `json:"rule_name"`
	Explanation string `json:"explanation"`
}

// ViolationsReply is the structured reply shape.
type ViolationsReply struct {
	Violations []ViolationItem `json:"violations"`
}
