package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/qabot/internal/llm"
)

// Judge implements llm.Oracle using chat/completions. The reply content is returned as-is
// (trimmed); parsing it into violations is the batcher's job.
func (c *Client) Judge(ctx context.Context, req llm.JudgeRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.judge.start",
		"req_id", rid,
		"provider", "openai",
		"model", c.cfg.Model,
		"batch", req.Batch.Index,
		"rules", len(req.Batch.Rules),
		"style", string(req.Style),
		"text_len", len(req.DocumentText),
	)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req.Style)},
			{"role": "user", "content": llm.BuildUserPrompt(req)},
		},
	}
	if req.Style == llm.StyleJSON {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if err != nil {
		c.log.Error("llm.judge.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("openai: %w", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.judge.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.judge.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("no choices in openai response")
	}
	if cc.Choices[0].FinishReason == "length" {
		c.log.Error("llm.judge.truncated_reply",
			"req_id", rid, "max_tokens", c.cfg.MaxTokens,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("openai reply cut off at max_tokens=%d: %w", c.cfg.MaxTokens, llm.ErrTruncatedReply)
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)

	c.log.Info("llm.judge.ok",
		"req_id", rid,
		"batch", req.Batch.Index,
		"reply_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

var _ llm.Oracle = (*Client)(nil)
