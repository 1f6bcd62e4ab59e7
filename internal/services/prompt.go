package services

import (
	"fmt"
	"strings"
)

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildSystemInstruction describes the analyst role and the four buckets.
func (pb *PromptBuilder) BuildSystemInstruction() string {
	return `You are an expert insurance policy analyst. Your job is to analyze insurance policy documents and extract key features, categorizing them as great, good, bad, or unclear.

For each feature you identify, provide:
1. A clear name for the feature
2. A direct quote from the policy document
3. A reference (section/page if mentioned)
4. A brief explanation of why this is categorized this way

Categories:
- GREAT: Exceptional coverage, better than industry standard, customer-friendly terms
- GOOD: Standard acceptable coverage, meets expectations
- BAD: Poor coverage, restrictive terms, hidden limitations, unfavorable conditions
- UNCLEAR: Ambiguous language, missing information, terms that need clarification

Look for coverage limits and exclusions, waiting periods, claim procedures, premium terms, renewal conditions, pre-existing condition clauses, network restrictions, deductibles and co-pays, and cancellation terms.

Record the result by calling record_policy_analysis exactly once. Every summary count must equal the number of features in the matching list. If the document is not an insurance policy (for example a brochure, proposal form, claim form or an unrelated document), call reject_document instead and explain why in one sentence.`
}

// BuildAnalysisPrompt wraps the policy text with the detected line of
// business, when there is one.
func (pb *PromptBuilder) BuildAnalysisPrompt(policyText, lineOfBusiness string) string {
	var sb strings.Builder
	sb.WriteString("Please analyze this insurance policy document and provide a comprehensive assessment.\n")
	if lob := strings.TrimSpace(lineOfBusiness); lob != "" {
		fmt.Fprintf(&sb, "Keyword screening suggests this is a %s insurance policy; confirm or correct this in policyType.\n", lob)
	}
	sb.WriteString("\nPOLICY DOCUMENT:\n")
	sb.WriteString(policyText)
	return sb.String()
}
