package entity

import (
	"time"

	"github.com/google/uuid"
)

// CheckRun is the run-log summary of one check. The report itself is not stored.
type CheckRun struct {
	ID             uuid.UUID
	Client         string
	Market         string
	DocumentName   string
	Mode           string
	Status         string
	RuleCount      int
	BatchCount     int
	ViolationCount int
	ErrorMessage   *string
	StartedAt      time.Time
	FinishedAt     *time.Time
}
