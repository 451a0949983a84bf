// Package app wires configuration into a ready check service for the binaries.
package app

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/qabot/constants"
	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/extract"
	"github.com/joseph-ayodele/qabot/internal/llm"
	"github.com/joseph-ayodele/qabot/internal/llm/gemini"
	"github.com/joseph-ayodele/qabot/internal/llm/openai"
	"github.com/joseph-ayodele/qabot/internal/repository"
	"github.com/joseph-ayodele/qabot/internal/rules"
	"github.com/joseph-ayodele/qabot/internal/services/check"
)

// App holds the long-lived pieces built from a Config.
type App struct {
	Service *check.Service
	Source  rules.Source
	DB      *repository.DB // nil when the run log is disabled
	logger  *slog.Logger
}

// Options let callers replace pieces of the wiring (tests, alternative oracles).
type Options struct {
	Oracle llm.Oracle
	Source rules.Source
}

// New validates cfg and builds the rule source, extractor, oracle, run log and service.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	src := opts.Source
	if src == nil {
		s, err := NewSource(cfg.Rules, logger)
		if err != nil {
			return nil, err
		}
		src = s
	}

	oracle := opts.Oracle
	if oracle == nil {
		o, err := NewOracle(ctx, cfg.LLM, logger)
		if err != nil {
			return nil, err
		}
		oracle = o
	}

	a := &App{Source: src, logger: logger}
	var runs repository.CheckRunRepository
	if cfg.Database.DSN != "" {
		db, err := repository.Open(ctx, repository.Config{
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			DialTimeout:     cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			return nil, common.NewAppError(common.CodeConfig, "open run log database", err)
		}
		a.DB = db
		runs = repository.NewCheckRunRepository(db, logger)
	}

	ex := extract.NewExtractor(extract.Config{Pdftotext: cfg.Extract.Pdftotext}, logger)
	a.Service = check.NewService(src, ex, oracle, runs, check.Options{
		Mode:         cfg.Check.Mode,
		MaxBatchSize: cfg.Check.MaxBatchSize,
		Concurrency:  cfg.Check.Concurrency,
		MaxDocChars:  cfg.Check.MaxDocumentChars,
	}, logger)
	return a, nil
}

// Close releases the run-log database, if any.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close(a.logger)
	}
}

// NewSource builds the workbook-backed rule source with its tab cache.
// A sheet URL wins over a local workbook path.
func NewSource(cfg common.RulesConfig, logger *slog.Logger) (rules.Source, error) {
	var loader rules.WorkbookLoader
	if cfg.SheetURL == "" && cfg.WorkbookPath == "" {
		return nil, common.NewAppError(common.CodeConfig, "QABOT_RULES_WORKBOOK or QABOT_RULES_SHEET_URL is required", common.ErrInvalidInput)
	}
	if cfg.SheetURL != "" {
		l, err := rules.NewURLLoader(cfg.SheetURL, 0, logger)
		if err != nil {
			return nil, err
		}
		loader = l
	} else {
		loader = rules.FileLoader{Path: cfg.WorkbookPath}
	}
	xs := rules.NewXLSXSource(loader, rules.XLSXOptions{IncludeShared: cfg.IncludeShared}, logger)
	return rules.NewCachedSource(xs, cfg.CacheTTL, logger), nil
}

// NewOracle builds the configured LLM judge.
func NewOracle(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Oracle, error) {
	switch cfg.Provider {
	case constants.ProviderGemini:
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}, logger)
		if err != nil {
			return nil, common.NewAppError(common.CodeConfig, "create gemini client", err)
		}
		return c, nil
	default:
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}, logger), nil
	}
}
