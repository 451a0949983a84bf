package rules

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/qabot/constants"
	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/entity"
)

// XLSXSource reads rules from a workbook with one tab per client.
// Each tab has a header row naming at least "Rule Name" and "Rule"; an optional
// "Market" column scopes a row to one market (or "All").
type XLSXSource struct {
	loader        WorkbookLoader
	includeShared bool
	logger        *slog.Logger
}

type XLSXOptions struct {
	// IncludeShared appends the "ALL CLIENTS" tab's rules after the client's own.
	IncludeShared bool
}

func NewXLSXSource(loader WorkbookLoader, opts XLSXOptions, logger *slog.Logger) *XLSXSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXSource{loader: loader, includeShared: opts.IncludeShared, logger: logger}
}

var _ Source = (*XLSXSource)(nil)

func (s *XLSXSource) Clients(ctx context.Context) ([]string, error) {
	f, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(f, s.logger)

	var out []string
	for _, name := range f.GetSheetList() {
		if isSharedTab(name) {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

func (s *XLSXSource) Markets(ctx context.Context, client string) ([]string, error) {
	f, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(f, s.logger)

	t, err := readTab(f, client)
	if err != nil {
		return nil, err
	}
	if t.marketCol < 0 {
		// every row applies to every market
		return []string{constants.MarketAll}, nil
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, row := range t.rows {
		m := cell(row, t.marketCol)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}

func (s *XLSXSource) Fetch(ctx context.Context, client, market string) ([]entity.Rule, error) {
	start := time.Now()
	f, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(f, s.logger)

	own, err := readTab(f, client)
	if err != nil {
		return nil, err
	}
	rules := own.rulesFor(market)

	shared := 0
	if s.includeShared && !isSharedTab(own.name) {
		if st, err := readTab(f, constants.SharedClientTab); err == nil {
			extra := st.rulesFor(market)
			shared = len(extra)
			rules = append(rules, extra...)
		} else if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}

	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		key := strings.ToLower(r.Name)
		if _, dup := seen[key]; dup {
			return nil, common.NewSourceFetchError(
				fmt.Sprintf("duplicate rule name %q for %s/%s", r.Name, own.name, market), common.ErrMalformed)
		}
		seen[key] = struct{}{}
	}

	s.logger.Info("rules.fetch.ok",
		"source", s.loader.Describe(),
		"client", own.name,
		"market", market,
		"rules", len(rules),
		"shared", shared,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rules, nil
}

func (s *XLSXSource) open(ctx context.Context) (*excelize.File, error) {
	b, err := s.loader.Load(ctx)
	if err != nil {
		return nil, common.NewSourceFetchError(fmt.Sprintf("load workbook %s", s.loader.Describe()), err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, common.NewSourceFetchError(fmt.Sprintf("open workbook %s", s.loader.Describe()), err)
	}
	return f, nil
}

// tab is a parsed client sheet: header positions plus data rows.
type tab struct {
	name      string
	rows      [][]string
	nameCol   int
	textCol   int
	marketCol int // -1 when the sheet has no Market column
}

func readTab(f *excelize.File, client string) (*tab, error) {
	sheet, ok := resolveSheet(f, client)
	if !ok {
		return nil, common.NewSourceFetchError(fmt.Sprintf("client tab %q", client), common.ErrNotFound)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, common.NewSourceFetchError(fmt.Sprintf("read tab %q", sheet), err)
	}
	t := &tab{name: sheet, nameCol: -1, textCol: -1, marketCol: -1}
	if len(rows) == 0 {
		return nil, common.NewSourceFetchError(fmt.Sprintf("malformed schema: tab %q has no header row", sheet), common.ErrMalformed)
	}
	for i, h := range rows[0] {
		switch {
		case strings.EqualFold(strings.TrimSpace(h), constants.ColumnRuleName):
			t.nameCol = i
		case strings.EqualFold(strings.TrimSpace(h), constants.ColumnRule):
			t.textCol = i
		case strings.EqualFold(strings.TrimSpace(h), constants.ColumnMarket):
			t.marketCol = i
		}
	}
	var missing []string
	if t.textCol < 0 {
		missing = append(missing, constants.ColumnRule)
	}
	if t.nameCol < 0 {
		missing = append(missing, constants.ColumnRuleName)
	}
	if len(missing) > 0 {
		return nil, common.NewSourceFetchError(
			fmt.Sprintf("malformed schema: tab %q is missing column(s) %q", sheet, missing), common.ErrMalformed)
	}
	t.rows = rows[1:]
	return t, nil
}

// rulesFor keeps rows whose Market matches market or "All". Rows without a name or
// text are skipped.
func (t *tab) rulesFor(market string) []entity.Rule {
	want := strings.TrimSpace(market)
	out := make([]entity.Rule, 0, len(t.rows))
	for _, row := range t.rows {
		name, text := cell(row, t.nameCol), cell(row, t.textCol)
		if name == "" || text == "" {
			continue
		}
		m := constants.MarketAll
		if t.marketCol >= 0 {
			m = cell(row, t.marketCol)
		}
		if !strings.EqualFold(m, want) && !strings.EqualFold(m, constants.MarketAll) {
			continue
		}
		out = append(out, entity.Rule{Name: name, Text: text, Market: m, SourceClient: t.name})
	}
	return out
}

// resolveSheet matches a tab name exactly first, then case-insensitively.
func resolveSheet(f *excelize.File, client string) (string, bool) {
	client = strings.TrimSpace(client)
	if client == "" {
		return "", false
	}
	list := f.GetSheetList()
	for _, name := range list {
		if name == client {
			return name, true
		}
	}
	for _, name := range list {
		if strings.EqualFold(strings.TrimSpace(name), client) {
			return name, true
		}
	}
	return "", false
}

func isSharedTab(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), constants.SharedClientTab)
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func closeQuietly(f *excelize.File, logger *slog.Logger) {
	if err := f.Close(); err != nil {
		logger.Warn("workbook close failed", "error", err)
	}
}
