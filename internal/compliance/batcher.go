package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/qabot/constants"
	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/entity"
	"github.com/joseph-ayodele/qabot/internal/llm"
)

// ProgressFunc is called once per batch, in batch order, as soon as that batch and every
// batch before it have been judged. Calls never overlap.
type ProgressFunc func(batchIndex, totalBatches int)

// Options configures a Batcher.
type Options struct {
	MaxBatchSize int // default 20; AllRules for a single call
	Segmenter    Segmenter
	Style        llm.PromptStyle
	// Concurrency > 1 fans oracle calls out. Numbering and order match the sequential run.
	Concurrency     int
	OnBatchComplete ProgressFunc
	// MaxDocumentChars rejects longer documents before any oracle call. 0 = no limit.
	MaxDocumentChars int
}

// Batcher drives a full compliance check over a rule set, one oracle call per batch.
type Batcher struct {
	oracle llm.Oracle
	opts   Options
	logger *slog.Logger
}

func NewBatcher(oracle llm.Oracle, opts Options, logger *slog.Logger) *Batcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBatchSize == 0 {
		opts.MaxBatchSize = constants.DefaultMaxBatchSize
	}
	if opts.Segmenter == nil {
		opts.Segmenter = ParagraphSegmenter{}
	}
	if opts.Style == "" {
		opts.Style = llm.StyleParagraphs
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Batcher{oracle: oracle, opts: opts, logger: logger}
}

// accumulator carries the running sequence number and violations through the batch loop.
type accumulator struct {
	next       int
	violations []entity.ViolationEntry
}

func newAccumulator() accumulator {
	return accumulator{next: 1, violations: []entity.ViolationEntry{}}
}

// add numbers segments from the next unused sequence number, in order.
func (a accumulator) add(segments []string) accumulator {
	for _, seg := range segments {
		a.violations = append(a.violations, entity.ViolationEntry{
			Sequence: a.next,
			Text:     fmt.Sprintf("%d. %s", a.next, seg),
		})
		a.next++
	}
	return a
}

func (a accumulator) report(ruleCount, batchCount int) entity.ComplianceReport {
	status := constants.StatusCompliant
	if len(a.violations) > 0 {
		status = constants.StatusNonCompliant
	}
	return entity.ComplianceReport{
		Status:     status,
		Violations: a.violations,
		RuleCount:  ruleCount,
		BatchCount: batchCount,
	}
}

// RunCheck judges documentText against every rule and aggregates one report.
// Any oracle failure aborts the whole check: no partial report is ever returned.
func (b *Batcher) RunCheck(ctx context.Context, documentText string, rules []entity.Rule) (entity.ComplianceReport, error) {
	if strings.TrimSpace(documentText) == "" {
		return entity.ComplianceReport{}, common.NewValidationError("document text is empty")
	}
	if limit := b.opts.MaxDocumentChars; limit > 0 {
		if n := utf8.RuneCountInString(strings.TrimSpace(documentText)); n > limit {
			b.logger.Warn("compliance.check.document_too_long", "chars", n, "limit", limit)
			return entity.ComplianceReport{}, common.NewValidationError(
				fmt.Sprintf("Document is too long to check: %d characters (limit %d). Split it and check each part.", n, limit))
		}
	}
	batches, err := Partition(rules, b.opts.MaxBatchSize)
	if err != nil {
		return entity.ComplianceReport{}, err
	}

	start := time.Now()
	b.logger.Info("compliance.check.start",
		"rules", len(rules),
		"batches", len(batches),
		"max_batch_size", b.opts.MaxBatchSize,
		"style", string(b.opts.Style),
		"concurrency", b.opts.Concurrency,
	)

	var acc accumulator
	if b.opts.Concurrency > 1 && len(batches) > 1 {
		acc, err = b.runConcurrent(ctx, documentText, batches)
	} else {
		acc, err = b.runSequential(ctx, documentText, batches)
	}
	if err != nil {
		b.logger.Error("compliance.check.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return entity.ComplianceReport{}, err
	}

	report := acc.report(len(rules), len(batches))
	b.logger.Info("compliance.check.ok",
		"status", string(report.Status),
		"violations", len(report.Violations),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

func (b *Batcher) runSequential(ctx context.Context, doc string, batches []entity.RuleBatch) (accumulator, error) {
	acc := newAccumulator()
	for _, batch := range batches {
		segs, err := b.judgeBatch(ctx, doc, batch, len(batches))
		if err != nil {
			return accumulator{}, err
		}
		acc = acc.add(segs)
		b.progress(batch.Index, len(batches))
	}
	return acc, nil
}

// runConcurrent judges batches in parallel, then merges in batch order so the numbering
// is the same as runSequential's.
func (b *Batcher) runConcurrent(ctx context.Context, doc string, batches []entity.RuleBatch) (accumulator, error) {
	results := make([][]string, len(batches))
	done := make([]bool, len(batches))
	var (
		mu       sync.Mutex
		reported int // batches [0, reported) have had their progress call
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)
	for _, batch := range batches {
		g.Go(func() error {
			segs, err := b.judgeBatch(gctx, doc, batch, len(batches))
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			results[batch.Index] = segs
			done[batch.Index] = true
			for reported < len(batches) && done[reported] && gctx.Err() == nil {
				b.progress(reported, len(batches))
				reported++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return accumulator{}, err
	}

	acc := newAccumulator()
	for _, segs := range results {
		acc = acc.add(segs)
	}
	return acc, nil
}

func (b *Batcher) judgeBatch(ctx context.Context, doc string, batch entity.RuleBatch, total int) ([]string, error) {
	where := fmt.Sprintf("batch %d/%d", batch.Index+1, total)
	if err := ctx.Err(); err != nil {
		return nil, common.NewOracleError(where+": cancelled", err)
	}

	start := time.Now()
	raw, err := b.oracle.Judge(ctx, llm.JudgeRequest{
		DocumentText: doc,
		Batch:        batch,
		Style:        b.opts.Style,
	})
	if err != nil {
		return nil, common.NewOracleError(where+": oracle call failed", err)
	}
	segs, err := b.opts.Segmenter.Segment(raw)
	if err != nil {
		return nil, common.NewOracleError(where+": unparseable reply", err)
	}

	b.logger.Info("compliance.batch.ok",
		"batch", batch.Index,
		"total", total,
		"rules", len(batch.Rules),
		"violations", len(segs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return segs, nil
}

func (b *Batcher) progress(i, total int) {
	if b.opts.OnBatchComplete != nil {
		b.opts.OnBatchComplete(i, total)
	}
}
