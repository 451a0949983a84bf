package commands

import (
	"io"

	"github.com/fatih/color"

	"github.com/joseph-ayodele/qabot/internal/entity"
)

// Colors follow NO_COLOR and switch off when stderr is not a terminal.
var (
	cyan  = color.New(color.FgCyan)
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed, color.Bold)
)

func printProgress(w io.Writer, i, total int) {
	cyan.Fprintf(w, "checked batch %d/%d\n", i+1, total)
}

func printVerdict(w io.Writer, rep entity.ComplianceReport) {
	if rep.Compliant() {
		green.Fprintf(w, "✓ compliant (%d rules)\n", rep.RuleCount)
		return
	}
	red.Fprintf(w, "✗ %d violation(s) in %d rules\n", len(rep.Violations), rep.RuleCount)
}
