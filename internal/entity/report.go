package entity

import (
	"github.com/joseph-ayodele/qabot/constants"
)

// ViolationEntry is one numbered finding. Text already carries the "{Sequence}. " prefix.
type ViolationEntry struct {
	Sequence int    `json:"sequence"`
	Text     string `json:"text"`
}

// ComplianceReport is the aggregated result of one check.
type ComplianceReport struct {
	Status     constants.ComplianceStatus `json:"status"`
	Violations []ViolationEntry           `json:"violations"`
	RuleCount  int                        `json:"rule_count"`
	BatchCount int                        `json:"batch_count"`
}

// Compliant reports whether the check found no violations.
func (r ComplianceReport) Compliant() bool {
	return r.Status == constants.StatusCompliant
}
