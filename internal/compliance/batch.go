package compliance

import (
	"fmt"
	"math"

	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/entity"
)

// AllRules as a batch size puts every rule into one batch.
const AllRules = math.MaxInt

// Partition splits rules into contiguous batches of at most maxBatchSize, preserving order.
// An empty rule set yields no batches.
func Partition(rules []entity.Rule, maxBatchSize int) ([]entity.RuleBatch, error) {
	if maxBatchSize <= 0 {
		return nil, common.NewValidationError(fmt.Sprintf("max batch size must be positive, got %d", maxBatchSize))
	}
	n := len(rules)
	if n == 0 {
		return nil, nil
	}
	batches := make([]entity.RuleBatch, 0, batchCount(n, maxBatchSize))
	for start := 0; start < n; {
		size := min(maxBatchSize, n-start)
		batches = append(batches, entity.RuleBatch{
			Index: len(batches),
			Rules: rules[start : start+size : start+size],
		})
		start += size
	}
	return batches, nil
}

// batchCount is ceil(n/size) without overflowing for size == AllRules.
func batchCount(n, size int) int {
	if n == 0 {
		return 0
	}
	return (n-1)/size + 1
}
