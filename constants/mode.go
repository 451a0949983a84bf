package constants

// Check modes. Each one is a batching policy plus a reply parser.
const (
	ModePerRule    = "per-rule"   // one rule per call, reply "Compliant" or an explanation
	ModeSingle     = "single"     // all rules in one call
	ModeChunked    = "chunked"    // fixed-size chunks, continuous numbering
	ModeStructured = "structured" // fixed-size chunks, JSON replies
)

var Modes = []string{ModePerRule, ModeSingle, ModeChunked, ModeStructured}

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)
