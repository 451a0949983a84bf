package entity

// Rule is a single tone-of-voice criterion read from the rules workbook.
type Rule struct {
	Name         string `json:"name"`
	Text         string `json:"text"`
	Market       string `json:"market"`
	SourceClient string `json:"source_client"`
}

// RuleBatch is a contiguous slice of the full rule sequence sent to the oracle in one call.
type RuleBatch struct {
	Index int    `json:"index"` // 0-based position in the batch sequence
	Rules []Rule `json:"rules"`
}
