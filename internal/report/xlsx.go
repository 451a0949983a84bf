package report

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/qabot/internal/entity"
)

const (
	reportSheet  = "Compliance Report"
	detailsSheet = "Details"
)

// XLSX builds spreadsheet exports of compliance reports.
type XLSX struct {
	logger *slog.Logger
}

func NewXLSX(logger *slog.Logger) *XLSX {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSX{logger: logger}
}

// Build returns an XLSX workbook (as bytes) with one row per violation and a details sheet.
func (x *XLSX) Build(meta Meta, r entity.ComplianceReport) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(detailsSheet); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}
	activeIndex, _ := f.GetSheetIndex(reportSheet)
	f.SetActiveSheet(activeIndex)

	write := func(sheet string, col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	headers := []string{"#", "Rule", "Explanation"}
	for i, h := range headers {
		write(reportSheet, i+1, 1, h)
	}
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(reportSheet, "A1", "C1", bold)
	}

	row := 2
	if len(r.Violations) == 0 {
		write(reportSheet, 3, row, CompliantMessage)
	}
	for _, v := range r.Violations {
		rule, expl := splitRule(stripSequence(v))
		write(reportSheet, 1, row, v.Sequence)
		write(reportSheet, 2, row, rule)
		write(reportSheet, 3, row, expl)
		row++
	}
	if wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}}); err == nil && row > 2 {
		_ = f.SetCellStyle(reportSheet, "A2", fmt.Sprintf("C%d", row-1), wrap)
	}

	_ = f.SetColWidth(reportSheet, "A", "A", 6)
	_ = f.SetColWidth(reportSheet, "B", "B", 24)
	_ = f.SetColWidth(reportSheet, "C", "C", 100)

	details := [][2]any{
		{"Run ID", meta.RunID},
		{"Client", meta.Client},
		{"Market", meta.Market},
		{"Document", meta.Document},
		{"Mode", meta.Mode},
		{"Checked At", meta.CheckedAt.UTC().Format(time.RFC3339)},
		{"Status", string(r.Status)},
		{"Violations", len(r.Violations)},
		{"Rules", r.RuleCount},
		{"Batches", r.BatchCount},
	}
	for i, d := range details {
		write(detailsSheet, 1, i+1, d[0])
		write(detailsSheet, 2, i+1, d[1])
	}
	_ = f.SetColWidth(detailsSheet, "A", "A", 14)
	_ = f.SetColWidth(detailsSheet, "B", "B", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	x.logger.Info("report.xlsx.ok",
		"run_id", meta.RunID,
		"rows", len(r.Violations),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// stripSequence drops the "{n}. " prefix the batcher adds.
func stripSequence(v entity.ViolationEntry) string {
	return strings.TrimPrefix(v.Text, fmt.Sprintf("%d. ", v.Sequence))
}

// splitRule separates a leading "Rule Name: " attribution (structured mode) from the explanation.
// Free-text violations have no attribution and come back with an empty rule.
func splitRule(s string) (rule, explanation string) {
	head, tail, ok := strings.Cut(s, ": ")
	if !ok || head == "" || len(head) > 80 || strings.ContainsAny(head, "\n.") {
		return "", s
	}
	return head, tail
}
