package check

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/qabot/constants"
	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/entity"
	"github.com/joseph-ayodele/qabot/internal/extract"
	"github.com/joseph-ayodele/qabot/internal/llm"
	"github.com/joseph-ayodele/qabot/internal/repository"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	rules    []entity.Rule
	fetchErr error
	fetched  int
}

func (f *fakeSource) Clients(context.Context) ([]string, error) { return []string{"Acme"}, nil }
func (f *fakeSource) Markets(_ context.Context, client string) ([]string, error) {
	return []string{client + ":UK"}, nil
}
func (f *fakeSource) Fetch(context.Context, string, string) ([]entity.Rule, error) {
	f.fetched++
	return f.rules, f.fetchErr
}

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract(_ context.Context, _ string, _ []byte) (extract.TextExtractionResult, error) {
	if f.err != nil {
		return extract.TextExtractionResult{}, f.err
	}
	return extract.TextExtractionResult{Text: f.text, SourceType: constants.TXT}, nil
}

type fakeOracle struct {
	mu     sync.Mutex
	reply  string
	err    error
	styles []llm.PromptStyle
	sizes  []int
}

func (f *fakeOracle) Judge(_ context.Context, req llm.JudgeRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.styles = append(f.styles, req.Style)
	f.sizes = append(f.sizes, len(req.Batch.Rules))
	return f.reply, f.err
}

func rules(n int) []entity.Rule {
	out := make([]entity.Rule, n)
	for i := range out {
		out[i] = entity.Rule{Name: string(rune('A' + i)), Text: "text"}
	}
	return out
}

func openRuns(t *testing.T) repository.CheckRunRepository {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Config{DSN: filepath.Join(t.TempDir(), "runs.db")}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(quietLogger()) })
	return repository.NewCheckRunRepository(db, quietLogger())
}

func validRequest() Request {
	return Request{Client: "Acme", Market: "UK", DocumentName: "/uploads/brochure.docx", Document: []byte("x")}
}

func TestCheck_Validation(t *testing.T) {
	src := &fakeSource{}
	svc := NewService(src, fakeExtractor{text: "doc"}, &fakeOracle{}, nil, Options{}, quietLogger())

	tests := []struct {
		name string
		mut  func(*Request)
		msg  string
	}{
		{"client", func(r *Request) { r.Client = " " }, "Please select a client."},
		{"market", func(r *Request) { r.Market = "" }, "Please select a market."},
		{"document", func(r *Request) { r.Document = nil }, "Please upload a document."},
		{"mode", func(r *Request) { r.Mode = "turbo" }, "mode must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mut(&req)
			_, err := svc.Check(context.Background(), req, nil)
			require.Error(t, err)
			assert.True(t, common.IsKind(err, common.CodeValidation))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
	assert.Equal(t, 0, src.fetched, "no I/O before validation passes")
}

func TestCheck_OK(t *testing.T) {
	oracle := &fakeOracle{reply: "Too casual.\n\nMissing disclaimer."}
	runs := openRuns(t)
	svc := NewService(&fakeSource{rules: rules(5)}, fakeExtractor{text: "Hello"}, oracle, runs, Options{MaxBatchSize: 2}, quietLogger())

	var progress []int
	res, err := svc.Check(context.Background(), validRequest(), func(i, total int) { progress = append(progress, i) })
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, oracle.sizes)
	assert.Equal(t, []int{0, 1, 2}, progress)
	assert.Equal(t, constants.StatusNonCompliant, res.Report.Status)
	require.Len(t, res.Report.Violations, 6)
	assert.Equal(t, "6. Missing disclaimer.", res.Report.Violations[5].Text)
	assert.Equal(t, "brochure.docx", res.Meta.Document)
	assert.Equal(t, constants.ModeChunked, res.Meta.Mode)

	run, err := runs.Get(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.RunStatusOK), run.Status)
	assert.Equal(t, 6, run.ViolationCount)
	assert.Equal(t, 3, run.BatchCount)
}

func TestCheck_ModeOverride(t *testing.T) {
	oracle := &fakeOracle{reply: "Compliant"}
	svc := NewService(&fakeSource{rules: rules(3)}, fakeExtractor{text: "Hello"}, oracle, nil, Options{}, quietLogger())

	req := validRequest()
	req.Mode = "PER-RULE"
	res, err := svc.Check(context.Background(), req, nil)
	require.NoError(t, err)
	assert.True(t, res.Report.Compliant())
	assert.Equal(t, []int{1, 1, 1}, oracle.sizes)
	assert.Equal(t, llm.StyleVerdict, oracle.styles[0])
}

func TestCheck_FailuresAreRecorded(t *testing.T) {
	tests := []struct {
		name string
		src  *fakeSource
		ex   fakeExtractor
		or   *fakeOracle
		code string
	}{
		{"source", &fakeSource{fetchErr: common.NewSourceFetchError("client tab", common.ErrNotFound)}, fakeExtractor{text: "x"}, &fakeOracle{}, common.CodeSourceFetch},
		{"extract", &fakeSource{rules: rules(1)}, fakeExtractor{err: common.NewExtractionError("no text", nil)}, &fakeOracle{}, common.CodeExtraction},
		{"oracle", &fakeSource{rules: rules(1)}, fakeExtractor{text: "x"}, &fakeOracle{err: errors.New("503")}, common.CodeOracle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := openRuns(t)
			svc := NewService(tt.src, tt.ex, tt.or, runs, Options{}, quietLogger())
			res, err := svc.Check(context.Background(), validRequest(), nil)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, common.IsKind(err, tt.code))

			list, err := runs.List(context.Background(), repository.ListFilter{})
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, string(constants.RunStatusFailed), list[0].Status)
			require.NotNil(t, list[0].ErrorMessage)
			assert.Contains(t, *list[0].ErrorMessage, tt.code)
		})
	}
}

func TestClientsMarketsRuns(t *testing.T) {
	svc := NewService(&fakeSource{}, fakeExtractor{}, &fakeOracle{}, nil, Options{}, quietLogger())

	clients, err := svc.Clients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme"}, clients)

	markets, err := svc.Markets(context.Background(), " Acme ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme:UK"}, markets)

	_, err = svc.Markets(context.Background(), "")
	assert.True(t, common.IsKind(err, common.CodeValidation))

	_, err = svc.Runs(context.Background(), repository.ListFilter{})
	assert.True(t, common.IsKind(err, common.CodeConfig))
}

func TestCheck_DocumentTooLong(t *testing.T) {
	oracle := &fakeOracle{reply: "Compliant"}
	runs := openRuns(t)
	long := strings.Repeat("a", 60) + " the closing paragraph promises guaranteed returns"
	svc := NewService(&fakeSource{rules: rules(3)}, fakeExtractor{text: long}, oracle, runs, Options{MaxDocChars: 60}, quietLogger())

	res, err := svc.Check(context.Background(), validRequest(), nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, common.IsKind(err, common.CodeValidation))
	assert.Contains(t, err.Error(), "too long")
	assert.Empty(t, oracle.sizes, "the oracle never sees a document it cannot read in full")

	list, err := runs.List(context.Background(), repository.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, string(constants.RunStatusFailed), list[0].Status)

	unlimited := NewService(&fakeSource{rules: rules(3)}, fakeExtractor{text: long}, oracle, nil, Options{}, quietLogger())
	res, err = unlimited.Check(context.Background(), validRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompliant, res.Report.Status)
}
