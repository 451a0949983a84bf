package constants

import "strings"

// ComplianceStatus is the overall verdict of a check.
type ComplianceStatus string

// Stable values (stored in the run log and sent over the wire).
const (
	StatusCompliant    ComplianceStatus = "COMPLIANT"
	StatusNonCompliant ComplianceStatus = "NON_COMPLIANT"
)

// RunStatus is the lifecycle state of a check run in the run log.
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusOK      RunStatus = "OK"
	RunStatusFailed  RunStatus = "FAILED" // terminal failure, no report produced
)

// CompliantReply is what the model answers when a rule (or batch) is met.
const CompliantReply = "Compliant"

// IsCompliantReply reports whether a model reply is the literal "Compliant" verdict.
func IsCompliantReply(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".")
	s = strings.Trim(s, `"'`)
	return strings.EqualFold(strings.TrimSpace(s), CompliantReply)
}
