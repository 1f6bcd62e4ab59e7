package models

// AnalyzePolicyRequest is the oracle wire request.
type AnalyzePolicyRequest struct {
	PolicyText string `json:"policyText"`
}

// AnalysisResponse is returned by both analysis endpoints.
type AnalysisResponse struct {
	Analysis *PolicyAnalysis `json:"analysis"`
	Warnings []string        `json:"warnings,omitempty"`
	Meta     *AnalysisMeta   `json:"meta,omitempty"`
}

type AnalysisMeta struct {
	RequestID      string `json:"requestId"`
	PageCount      int    `json:"pageCount,omitempty"`
	CharCount      int    `json:"charCount"`
	LineOfBusiness string `json:"lineOfBusiness,omitempty"`
	Attempts       int    `json:"attempts"`
}

// ErrorResponse is the failure body of every endpoint.
type ErrorResponse struct {
	Error        string `json:"error"`
	Message      string `json:"message,omitempty"`
	DetectedType string `json:"detectedType,omitempty"`
}

type PrequalifyResponse struct {
	Document ExtractedDocument `json:"document"`
	Verdict  Verdict           `json:"verdict"`
}

// Verdict is the JSON form of a prequalification decision.
type Verdict struct {
	Accepted       bool           `json:"accepted"`
	Reasons        []string       `json:"reasons,omitempty"`
	Scores         map[string]int `json:"scores"`
	LineOfBusiness string         `json:"lineOfBusiness,omitempty"`
}
