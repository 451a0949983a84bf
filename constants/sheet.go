package constants

// Workbook layout of the rules spreadsheet. One tab per client, plus a shared tab.
const (
	SharedClientTab = "ALL CLIENTS"

	ColumnRuleName = "Rule Name"
	ColumnRule     = "Rule"
	ColumnMarket   = "Market"

	// MarketAll marks a rule that applies to every market of the client.
	MarketAll = "All"
)

const (
	DefaultMaxBatchSize = 20
	DefaultModel        = "gpt-4"
	DefaultMaxTokens    = 500
	DefaultTemperature  = 0.5
)
