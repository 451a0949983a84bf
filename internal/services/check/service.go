package check

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/qabot/constants"
	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/compliance"
	"github.com/joseph-ayodele/qabot/internal/entity"
	"github.com/joseph-ayodele/qabot/internal/extract"
	"github.com/joseph-ayodele/qabot/internal/llm"
	"github.com/joseph-ayodele/qabot/internal/report"
	"github.com/joseph-ayodele/qabot/internal/repository"
	"github.com/joseph-ayodele/qabot/internal/rules"
)

// Options are the check defaults a request can override (mode only).
type Options struct {
	Mode         string
	MaxBatchSize int
	Concurrency  int
	MaxDocChars  int // longer documents are rejected; 0 = no limit
}

// Service handles compliance-check business logic.
type Service struct {
	source    rules.Source
	extractor extract.TextExtractor
	oracle    llm.Oracle
	runs      repository.CheckRunRepository // nil disables the run log
	opts      Options
	logger    *slog.Logger
}

// NewService creates a new check service. runs may be nil.
func NewService(src rules.Source, ex extract.TextExtractor, oracle llm.Oracle, runs repository.CheckRunRepository, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Mode == "" {
		opts.Mode = constants.ModeChunked
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = constants.DefaultMaxBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Service{source: src, extractor: ex, oracle: oracle, runs: runs, opts: opts, logger: logger}
}

// Request is one document to check against a client's rules for a market.
type Request struct {
	Client       string
	Market       string
	DocumentName string
	Document     []byte
	Mode         string // empty = service default
}

// Result is a finished check.
type Result struct {
	RunID      uuid.UUID
	Report     entity.ComplianceReport
	Meta       report.Meta
	Extraction extract.TextExtractionResult
}

// Check validates the request, fetches the rules, extracts the document text and
// runs the compliance batcher. Any failure aborts the check; no partial report is returned.
func (s *Service) Check(ctx context.Context, req Request, progress compliance.ProgressFunc) (*Result, error) {
	req.Client = strings.TrimSpace(req.Client)
	req.Market = strings.TrimSpace(req.Market)
	if name := strings.TrimSpace(req.DocumentName); name != "" {
		req.DocumentName = filepath.Base(name)
	}

	v := common.NewValidator().
		Field("client", req.Client, common.RequiredMsg("Please select a client.")).
		Field("market", req.Market, common.RequiredMsg("Please select a market.")).
		Field("document", req.Document, common.RequiredMsg("Please upload a document.")).
		Field("document_name", req.DocumentName, common.Required, common.MaxLength(255)).
		Field("mode", req.Mode, common.OneOf(constants.Modes...))
	if err := v.Error(); err != nil {
		s.logger.Warn("check.invalid_request", "client", req.Client, "market", req.Market, "error", v.ErrorMessage())
		return nil, err
	}

	mode := req.Mode
	if mode == "" {
		mode = s.opts.Mode
	}
	policy, err := compliance.PolicyFor(mode, s.logger)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	run := &entity.CheckRun{
		ID:           uuid.New(),
		Client:       req.Client,
		Market:       req.Market,
		DocumentName: req.DocumentName,
		Mode:         policy.Mode,
		StartedAt:    start.UTC(),
	}
	ctx = common.WithRunID(ctx, run.ID.String())
	log := s.logger.With("run_id", run.ID.String())
	log.Info("check.start", "client", req.Client, "market", req.Market, "document", req.DocumentName, "mode", policy.Mode, "bytes", len(req.Document))
	s.recordStart(ctx, log, run)

	res, err := s.check(ctx, log, req, policy, progress)
	if err != nil {
		log.Error("check.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		s.recordFailure(ctx, log, run.ID, err)
		return nil, err
	}
	res.RunID = run.ID
	res.Meta = report.Meta{
		RunID:     run.ID.String(),
		Client:    req.Client,
		Market:    req.Market,
		Document:  req.DocumentName,
		Mode:      policy.Mode,
		CheckedAt: start.UTC(),
	}
	s.recordSuccess(ctx, log, run.ID, res.Report)

	log.Info("check.ok",
		"status", string(res.Report.Status),
		"violations", len(res.Report.Violations),
		"rules", res.Report.RuleCount,
		"batches", res.Report.BatchCount,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (s *Service) check(ctx context.Context, log *slog.Logger, req Request, policy compliance.Policy, progress compliance.ProgressFunc) (*Result, error) {
	ruleSet, err := s.source.Fetch(ctx, req.Client, req.Market)
	if err != nil {
		return nil, err
	}

	extraction, err := s.extractor.Extract(ctx, req.DocumentName, req.Document)
	if err != nil {
		return nil, err
	}

	opts := policy.Options(s.opts.MaxBatchSize, s.opts.Concurrency)
	opts.OnBatchComplete = progress
	opts.MaxDocumentChars = s.opts.MaxDocChars
	rep, err := compliance.NewBatcher(s.oracle, opts, log).RunCheck(ctx, extraction.Text, ruleSet)
	if err != nil {
		return nil, err
	}
	return &Result{Report: rep, Extraction: extraction}, nil
}

// Clients lists the selectable clients.
func (s *Service) Clients(ctx context.Context) ([]string, error) {
	return s.source.Clients(ctx)
}

// Markets lists the selectable markets for a client.
func (s *Service) Markets(ctx context.Context, client string) ([]string, error) {
	if err := common.NewValidator().
		Field("client", client, common.RequiredMsg("Please select a client.")).
		Error(); err != nil {
		return nil, err
	}
	return s.source.Markets(ctx, strings.TrimSpace(client))
}

// Runs lists recent check runs from the run log.
func (s *Service) Runs(ctx context.Context, filter repository.ListFilter) ([]*entity.CheckRun, error) {
	if s.runs == nil {
		return nil, common.NewAppError(common.CodeConfig, "run log is disabled (no database configured)", nil)
	}
	return s.runs.List(ctx, filter)
}

// The run log is an audit trail; its failures are logged and never fail a check.

func (s *Service) recordStart(ctx context.Context, log *slog.Logger, run *entity.CheckRun) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Start(ctx, run); err != nil {
		log.Warn("check.runlog.start_failed", "error", err)
	}
}

func (s *Service) recordSuccess(ctx context.Context, log *slog.Logger, id uuid.UUID, rep entity.ComplianceReport) {
	if s.runs == nil {
		return
	}
	if err := s.runs.FinishSuccess(context.WithoutCancel(ctx), id, rep); err != nil {
		log.Warn("check.runlog.finish_failed", "error", err)
	}
}

func (s *Service) recordFailure(ctx context.Context, log *slog.Logger, id uuid.UUID, cause error) {
	if s.runs == nil {
		return
	}
	if err := s.runs.FinishFailure(context.WithoutCancel(ctx), id, cause.Error()); err != nil {
		log.Warn("check.runlog.finish_failed", "error", err)
	}
}
