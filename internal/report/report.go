// Package report renders a ComplianceReport for people (text, XLSX) and machines (JSON).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joseph-ayodele/qabot/internal/entity"
)

// CompliantMessage is shown when a check finds nothing.
const CompliantMessage = "No violations found. Document is compliant."

// Meta is what was checked; it travels with the report but is not part of it.
type Meta struct {
	RunID     string    `json:"run_id,omitempty"`
	Client    string    `json:"client"`
	Market    string    `json:"market"`
	Document  string    `json:"document"`
	Mode      string    `json:"mode"`
	CheckedAt time.Time `json:"checked_at"`
}

// WriteText prints the report the way the CLI shows it.
func WriteText(w io.Writer, meta Meta, r entity.ComplianceReport) error {
	var b strings.Builder
	if r.Compliant() {
		b.WriteString(CompliantMessage)
		b.WriteByte('\n')
		fmt.Fprintf(&b, "(%s / %s, %s: %d rules checked in %d batch(es))\n",
			meta.Client, meta.Market, meta.Document, r.RuleCount, r.BatchCount)
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "Compliance Report: %s / %s, %s\n", meta.Client, meta.Market, meta.Document)
	fmt.Fprintf(&b, "Status: %s (%d violation(s), %d rules, %d batch(es))\n",
		r.Status, len(r.Violations), r.RuleCount, r.BatchCount)
	for _, v := range r.Violations {
		b.WriteByte('\n')
		b.WriteString(v.Text)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type jsonReport struct {
	Meta
	entity.ComplianceReport
}

// WriteJSON emits meta and report as one indented object.
func WriteJSON(w io.Writer, meta Meta, r entity.ComplianceReport) error {
	if r.Violations == nil {
		r.Violations = []entity.ViolationEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{Meta: meta, ComplianceReport: r})
}
