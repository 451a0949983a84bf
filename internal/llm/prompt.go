package llm

import (
	"strings"

	"github.com/joseph-ayodele/qabot/internal/entity"
)

const systemPrompt = "You are an expert in compliance and tone-of-voice review."

// BuildSystemPrompt returns the system message. The wording is shared by all styles.
func BuildSystemPrompt(style PromptStyle) string {
	if style == StyleJSON {
		return systemPrompt + " Return ONLY JSON that matches the provided JSON Schema."
	}
	return systemPrompt
}

// BuildUserPrompt lays out the whole document, every rule of the batch, and the reply format for the style.
// Length limits are enforced before a check starts; the document is never cut here.
func BuildUserPrompt(req JudgeRequest) string {
	var b strings.Builder
	b.WriteString("Document Content:\n")
	b.WriteString(strings.TrimSpace(req.DocumentText))
	b.WriteString("\n\n")

	rules := req.Batch.Rules
	if len(rules) == 1 {
		b.WriteString("Rule:\n")
	} else {
		b.WriteString("Rules:\n")
	}
	for i, r := range rules {
		writeRule(&b, i+1, r, len(rules) > 1)
	}
	b.WriteString("\n")

	switch req.Style {
	case StyleVerdict:
		name := ""
		if len(rules) > 0 {
			name = rules[0].Name
		}
		b.WriteString("Analyze the document for compliance with this rule only. ")
		b.WriteString("If non-compliant, provide a brief explanation referencing exactly the Rule Name: ")
		b.WriteString(name)
		b.WriteString(".\n\nFormat:\n")
		b.WriteString("- If compliant, reply: \"Compliant\"\n")
		b.WriteString("- If not compliant, reply only with the explanation text.\n\n")
		b.WriteString("Do not mention any rules other than this one.\n")
	case StyleJSON:
		b.WriteString("Analyze the document for compliance with each rule above. ")
		b.WriteString("Report one entry per violation in the 'violations' array, with 'rule_name' set to exactly the Rule Name ")
		b.WriteString("and 'explanation' quoting the offending text and naming the client and market. ")
		b.WriteString("If every rule is met, return {\"violations\": []}.\n\n")
		b.WriteString("JSON Schema:\n")
		b.WriteString(mustJSON(BuildViolationsJSONSchema()))
		b.WriteString("\n")
	default:
		b.WriteString("Analyze the document for compliance with each rule above. ")
		b.WriteString("For every violation write one short paragraph that names the Rule Name, the client and the market, ")
		b.WriteString("and explains what in the document breaks the rule.\n\n")
		b.WriteString("Format:\n")
		b.WriteString("- Separate violations with a single blank line.\n")
		b.WriteString("- Do not number the violations and do not add headings or a summary.\n")
		b.WriteString("- If the document complies with every rule above, reply only: \"Compliant\"\n")
	}
	return b.String()
}

func writeRule(b *strings.Builder, n int, r entity.Rule, numbered bool) {
	if numbered {
		b.WriteString(itoa(n))
		b.WriteString(". ")
	}
	b.WriteString("Rule Name: ")
	b.WriteString(r.Name)
	b.WriteString("\n")
	indent := ""
	if numbered {
		indent = "   "
	}
	b.WriteString(indent + "Rule: " + r.Text + "\n")
	if r.SourceClient != "" {
		b.WriteString(indent + "Client: " + r.SourceClient + "\n")
	}
	if r.Market != "" {
		b.WriteString(indent + "Market: " + r.Market + "\n")
	}
}
