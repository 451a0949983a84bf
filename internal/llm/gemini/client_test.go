package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/joseph-ayodele/qabot/internal/entity"
	"github.com/joseph-ayodele/qabot/internal/llm"
)

type fakeModels struct {
	model  string
	config *genai.GenerateContentConfig
	prompt string
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(s, genai.RoleModel)}},
	}
}

func judgeReq(style llm.PromptStyle) llm.JudgeRequest {
	return llm.JudgeRequest{
		DocumentText: "Buy now!",
		Batch:        entity.RuleBatch{Rules: []entity.Rule{{Name: "Tone", Text: "Be calm."}, {Name: "Pricing", Text: "Show VAT."}}},
		Style:        style,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJudge(t *testing.T) {
	f := &fakeModels{resp: textResponse(" Tone: too pushy.\n\nPricing: no VAT. ")}
	c := newClient(Config{APIKey: "k", Model: "gpt-4", Temperature: 0.2}, f, quietLogger())

	reply, err := c.Judge(context.Background(), judgeReq(llm.StyleParagraphs))
	require.NoError(t, err)
	assert.Equal(t, "Tone: too pushy.\n\nPricing: no VAT.", reply)

	assert.Equal(t, "gemini-2.5-flash", f.model, "openai model names fall back to the gemini default")
	require.NotNil(t, f.config.Temperature)
	assert.InDelta(t, 0.2, *f.config.Temperature, 1e-6)
	assert.Empty(t, f.config.ResponseMIMEType)
	assert.Contains(t, f.prompt, "2. Rule Name: Pricing")
}

func TestJudge_JSONStyle(t *testing.T) {
	f := &fakeModels{resp: textResponse(`{"violations":[]}`)}
	c := newClient(Config{Model: "gemini-2.5-pro"}, f, quietLogger())

	_, err := c.Judge(context.Background(), judgeReq(llm.StyleJSON))
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", f.model)
	assert.Equal(t, "application/json", f.config.ResponseMIMEType)
}

func TestJudge_Errors(t *testing.T) {
	c := newClient(Config{}, &fakeModels{err: errors.New("quota exceeded")}, quietLogger())
	_, err := c.Judge(context.Background(), judgeReq(llm.StyleVerdict))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	c = newClient(Config{}, &fakeModels{resp: &genai.GenerateContentResponse{}}, quietLogger())
	_, err = c.Judge(context.Background(), judgeReq(llm.StyleVerdict))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, nil)
	require.Error(t, err)
}

func TestJudge_ReplyCutOffAtMaxTokens(t *testing.T) {
	resp := textResponse("Tone: too pushy.\n\nClaims: unsupp")
	resp.Candidates[0].FinishReason = genai.FinishReasonMaxTokens
	c := newClient(Config{MaxTokens: 500}, &fakeModels{resp: resp}, quietLogger())

	reply, err := c.Judge(context.Background(), judgeReq(llm.StyleParagraphs))
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrTruncatedReply)
	assert.Empty(t, reply)

	resp.Candidates[0].FinishReason = genai.FinishReasonStop
	reply, err = c.Judge(context.Background(), judgeReq(llm.StyleParagraphs))
	require.NoError(t, err)
	assert.Equal(t, "Tone: too pushy.\n\nClaims: unsupp", reply)
}
