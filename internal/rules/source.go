package rules

import (
	"context"

	"github.com/joseph-ayodele/qabot/internal/entity"
)

// Source yields ordered rule sets for a client and market.
type Source interface {
	// Clients lists the client names (workbook tabs), excluding the shared tab.
	Clients(ctx context.Context) ([]string, error)
	// Markets lists the distinct markets named in a client's tab, in first-seen order.
	Markets(ctx context.Context, client string) ([]string, error)
	// Fetch returns the client's rules for market, in sheet order.
	Fetch(ctx context.Context, client, market string) ([]entity.Rule, error)
}
