package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/qabot/internal/app"
	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/llm"
)

// stubOracle reports the first rule of each batch as violated.
type stubOracle struct {
	mu    sync.Mutex
	calls int
}

func (o *stubOracle) Judge(_ context.Context, req llm.JudgeRequest) (string, error) {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
	if len(req.Batch.Rules) == 0 {
		return "Compliant", nil
	}
	return fmt.Sprintf("%s: broken.", req.Batch.Rules[0].Name), nil
}

func writeRulesWorkbook(t *testing.T, dir string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Acme"))
	rows := [][]any{
		{"Rule Name", "Rule", "Market"},
		{"Tone", "Be friendly.", "UK"},
		{"Spelling", "Use British spelling.", "All"},
		{"Pricing", "Quote prices in USD.", "US"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Acme", cell, &row))
	}
	_, err := f.NewSheet("Globex")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Globex", "A1", &[]any{"Rule Name", "Rule"}))
	path := filepath.Join(dir, "rules.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

type harness struct {
	dir    string
	config string
	oracle *stubOracle
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, k := range []string{"QABOT_CONFIG", "QABOT_RULES_SHEET_URL", "QABOT_RULES_WORKBOOK", "QABOT_MODE", "QABOT_LLM_PROVIDER", "DB_URL"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	wb := writeRulesWorkbook(t, dir)
	conf := filepath.Join(dir, "qabot.yaml")
	yml := fmt.Sprintf("rules:\n  workbook_path: %s\nllm:\n  provider: openai\n  api_key: test-key\ndatabase:\n  dsn: %s\n", wb, filepath.Join(dir, "runs.db"))
	require.NoError(t, os.WriteFile(conf, []byte(yml), 0o644))

	h := &harness{dir: dir, config: conf, oracle: &stubOracle{}}
	prev := newApp
	newApp = func(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*app.App, error) {
		return app.New(ctx, cfg, logger, app.Options{Oracle: h.oracle})
	}
	t.Cleanup(func() { newApp = prev })
	return h
}

func (h *harness) writeDoc(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

// run executes the root command with fresh flag state and returns stdout and stderr.
func (h *harness) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(t)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", h.config}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func resetFlags(t *testing.T) {
	t.Helper()
	configPath, logLevel, logFormat = "", "warn", "text"
	checkClient, checkMarket, checkMode, checkOutput, checkOutFile, checkServer = "", "", "", "text", "", ""
	checkQuiet = false
	marketsClient, runsClient, runsLimit = "", "", 20
	batchClient, batchMarket, batchMode, batchOutDir, batchHidden = "", "", "", "", false
	require.NoError(t, checkCmd.Flags().Set("batch-size", "0"))
	require.NoError(t, checkCmd.Flags().Set("concurrency", "0"))
}

func TestClientsCommand(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run(t, "clients")
	require.NoError(t, err)
	assert.Equal(t, "Acme\nGlobex\n", out)
}

func TestMarketsCommand(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.run(t, "markets", "--client", "Acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"UK", "All", "US"}, strings.Fields(out))

	_, _, err = h.run(t, "markets")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please select a client.")
}

func TestCheckCommand_Text(t *testing.T) {
	h := newHarness(t)
	doc := h.writeDoc(t, "brochure.txt", "Buy now!\n")

	out, stderr, err := h.run(t, "check", "--client", "Acme", "--market", "UK", "--batch-size", "1", doc)
	require.NoError(t, err)

	assert.Contains(t, out, "Status: NON_COMPLIANT (2 violation(s), 2 rules, 2 batch(es))")
	assert.Contains(t, out, "1. Tone: broken.")
	assert.Contains(t, out, "2. Spelling: broken.")
	assert.Contains(t, stderr, "checked batch 1/2")
	assert.Contains(t, stderr, "checked batch 2/2")
	assert.Equal(t, 2, h.oracle.calls)
}

func TestCheckCommand_JSON(t *testing.T) {
	h := newHarness(t)
	doc := h.writeDoc(t, "brochure.md", "# Hello\n")

	out, _, err := h.run(t, "check", "-c", "Acme", "-m", "US", "--mode", "single", "-o", "json", "-q", doc)
	require.NoError(t, err)

	var got struct {
		RunID      string `json:"run_id"`
		Client     string `json:"client"`
		Mode       string `json:"mode"`
		Status     string `json:"status"`
		RuleCount  int    `json:"rule_count"`
		BatchCount int    `json:"batch_count"`
		Violations []struct {
			Sequence int    `json:"sequence"`
			Text     string `json:"text"`
		} `json:"violations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.NotEmpty(t, got.RunID)
	assert.Equal(t, "Acme", got.Client)
	assert.Equal(t, "single", got.Mode)
	assert.Equal(t, "NON_COMPLIANT", got.Status)
	assert.Equal(t, 2, got.RuleCount)
	assert.Equal(t, 1, got.BatchCount)
	require.Len(t, got.Violations, 1)
	assert.Equal(t, "1. Spelling: broken.", got.Violations[0].Text)
}

func TestCheckCommand_XLSX(t *testing.T) {
	h := newHarness(t)
	doc := h.writeDoc(t, "brochure.txt", "Hello")
	dest := filepath.Join(h.dir, "report.xlsx")

	out, _, err := h.run(t, "check", "-c", "Acme", "-m", "UK", "-o", "xlsx", "--out", dest, "-q", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "written to "+dest)

	f, err := excelize.OpenFile(dest)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Compliance Report")
}

func TestCheckCommand_Validation(t *testing.T) {
	h := newHarness(t)
	doc := h.writeDoc(t, "brochure.txt", "Hello")

	_, _, err := h.run(t, "check", "-c", "Acme", "-m", "UK", "-o", "xlsx", doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--out is required")

	_, _, err = h.run(t, "check", "-c", "Acme", "-m", "UK", "-o", "pdf", doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output must be one of")

	_, _, err = h.run(t, "check", "-m", "UK", doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please select a client.")
	assert.Equal(t, 0, h.oracle.calls)
}

func TestCheckCommand_UnknownClient(t *testing.T) {
	h := newHarness(t)
	doc := h.writeDoc(t, "brochure.txt", "Hello")

	_, _, err := h.run(t, "check", "-c", "Initech", "-m", "UK", "-q", doc)
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.CodeSourceFetch), "got %v", err)
}

func TestRunsCommand(t *testing.T) {
	h := newHarness(t)
	doc := h.writeDoc(t, "brochure.txt", "Hello")

	_, _, err := h.run(t, "check", "-c", "Acme", "-m", "UK", "-q", doc)
	require.NoError(t, err)

	out, _, err := h.run(t, "runs", "--client", "Acme")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[1], "brochure.txt")
	assert.Contains(t, lines[1], "OK")
}

func TestBatchCommand(t *testing.T) {
	h := newHarness(t)
	docs := filepath.Join(h.dir, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "one.txt"), []byte("Hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "two.md"), []byte("# Hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "empty.txt"), []byte("   "), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "logo.png"), []byte("png"), 0o644))
	outDir := filepath.Join(h.dir, "reports")

	out, stderr, err := h.run(t, "batch", "-c", "Acme", "-m", "UK", "--out-dir", outDir, docs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 document(s) failed")

	assert.Contains(t, stderr, "[3/3]")
	assert.Contains(t, out, "NON_COMPLIANT")
	assert.Contains(t, out, "FAILED")
	assert.FileExists(t, filepath.Join(outDir, "one.report.xlsx"))
	assert.FileExists(t, filepath.Join(outDir, "two.report.xlsx"))
	assert.NoFileExists(t, filepath.Join(outDir, "empty.report.xlsx"))
}

func TestBatchCommand_RequiresClientAndMarket(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run(t, "batch", h.dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please select a client.")
	assert.Contains(t, err.Error(), "Please select a market.")
}
