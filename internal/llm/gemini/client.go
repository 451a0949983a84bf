package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/joseph-ayodele/qabot/constants"
	"github.com/joseph-ayodele/qabot/internal/llm"
)

// Config for the Gemini client.
type Config struct {
	APIKey      string
	Model       string // default gemini-2.5-flash
	Temperature float32
	MaxTokens   int
}

// generator is the slice of *genai.Models we call; tests substitute it.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	cfg    Config
	models generator
	log    *slog.Logger
}

// NewClient creates a Gemini oracle backed by the Gemini API.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newClient(cfg, gc.Models, logger), nil
}

func newClient(cfg Config, models generator, logger *slog.Logger) *Client {
	if cfg.Model == "" || strings.HasPrefix(cfg.Model, "gpt-") {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = constants.DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, models: models, log: logger}
}

// Judge implements llm.Oracle with a single GenerateContent call.
func (c *Client) Judge(ctx context.Context, req llm.JudgeRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.judge.start",
		"req_id", rid,
		"provider", "gemini",
		"model", c.cfg.Model,
		"batch", req.Batch.Index,
		"rules", len(req.Batch.Rules),
		"style", string(req.Style),
	)

	gcfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(llm.BuildSystemPrompt(req.Style), genai.RoleUser),
		Temperature:       genai.Ptr(c.cfg.Temperature),
		MaxOutputTokens:   int32(c.cfg.MaxTokens),
	}
	if req.Style == llm.StyleJSON {
		gcfg.ResponseMIMEType = "application/json"
	}
	contents := []*genai.Content{
		genai.NewContentFromText(llm.BuildUserPrompt(req), genai.RoleUser),
	}

	resp, err := c.models.GenerateContent(ctx, c.cfg.Model, contents, gcfg)
	if err != nil {
		c.log.Error("llm.judge.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in gemini response")
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		c.log.Error("llm.judge.truncated_reply",
			"req_id", rid, "max_tokens", c.cfg.MaxTokens,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("gemini reply cut off at max_tokens=%d: %w", c.cfg.MaxTokens, llm.ErrTruncatedReply)
	}
	content := strings.TrimSpace(resp.Text())

	c.log.Info("llm.judge.ok",
		"req_id", rid,
		"batch", req.Batch.Index,
		"reply_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

var _ llm.Oracle = (*Client)(nil)
