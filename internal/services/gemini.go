package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"alfredoptarigan/policy-analyzer/internal/config"
	"alfredoptarigan/policy-analyzer/internal/models"
)

const (
	recordAnalysisTool = "record_policy_analysis"
	rejectDocumentTool = "reject_document"

	geminiMaxOutputTokens = 8192
)

type geminiOracle struct {
	client      *genai.Client
	modelName   string
	temperature float32
	prompts     *PromptBuilder
	schema      *AnalysisSchema
	tools       []*genai.Tool
}

// NewGeminiOracle builds the Gemini backend. A missing API key does not fail
// construction; every call then returns a ConfigurationError.
func NewGeminiOracle(ctx context.Context, cfg config.OracleConfig, schema *AnalysisSchema, prompts *PromptBuilder) (PolicyOracle, error) {
	g := &geminiOracle{
		modelName:   cfg.Model,
		temperature: cfg.Temperature,
		prompts:     prompts,
		schema:      schema,
		tools:       analysisTools(),
	}
	if g.modelName == "" {
		g.modelName = "gemini-2.5-flash"
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *geminiOracle) Name() string { return config.ProviderGemini }

func (g *geminiOracle) Ready() error {
	if g.client == nil {
		return configurationError("GEMINI_API_KEY is not configured")
	}
	return nil
}

// Classify forces exactly one tool call and decodes its arguments. Free text
// answers are treated as malformed.
func (g *geminiOracle) Classify(ctx context.Context, req ValidatedRequest, lineOfBusiness string) (*models.PolicyAnalysis, error) {
	if err := g.Ready(); err != nil {
		return nil, err
	}

	temperature := g.temperature
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.prompts.BuildSystemInstruction(), genai.RoleUser),
		Temperature:       &temperature,
		MaxOutputTokens:   geminiMaxOutputTokens,
		Tools:             g.tools,
		ToolConfig: &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{recordAnalysisTool, rejectDocumentTool},
			},
		},
	}

	prompt := g.prompts.BuildAnalysisPrompt(req.Text, lineOfBusiness)
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), genConfig)
	if err != nil {
		return nil, &OracleError{Kind: OracleTransientFailure, Cause: fmt.Errorf("gemini generate content: %w", err)}
	}
	if resp == nil {
		return nil, &OracleError{Kind: OracleMalformedResponse, Cause: fmt.Errorf("gemini returned nil response")}
	}

	calls := resp.FunctionCalls()
	if len(calls) == 0 {
		slog.Debug("oracle.gemini.no_tool_call", "text_len", len(resp.Text()))
		return nil, &OracleError{Kind: OracleMalformedResponse, Cause: fmt.Errorf("gemini answered without a tool call")}
	}

	call := calls[0]
	switch call.Name {
	case rejectDocumentTool:
		reason, _ := call.Args["reason"].(string)
		detected, _ := call.Args["detectedType"].(string)
		if strings.TrimSpace(reason) == "" {
			reason = "This document does not appear to be an insurance policy."
		}
		return nil, &OracleError{Kind: OracleInvalidDocument, Reason: reason, DetectedType: detected}
	case recordAnalysisTool:
		return g.schema.DecodeValue(call.Args)
	}
	return nil, &OracleError{Kind: OracleMalformedResponse, Cause: fmt.Errorf("unexpected tool call %q", call.Name)}
}

func analysisTools() []*genai.Tool {
	feature := &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"name", "quote", "reference", "explanation"},
		Properties: map[string]*genai.Schema{
			"name":        {Type: genai.TypeString, Description: "Short feature name."},
			"quote":       {Type: genai.TypeString, Description: "Verbatim excerpt from the policy."},
			"reference":   {Type: genai.TypeString, Description: "Section or page pointer, empty when unknown."},
			"explanation": {Type: genai.TypeString, Description: "Why the feature belongs in this bucket."},
		},
	}
	featureList := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeArray, Items: feature, Description: desc}
	}
	count := &genai.Schema{Type: genai.TypeInteger}
	buckets := []string{models.BucketGreat, models.BucketGood, models.BucketBad, models.BucketUnclear}

	analysis := &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"policyName", "insurer", "policyType", "summary", "features"},
		Properties: map[string]*genai.Schema{
			"policyName":   {Type: genai.TypeString},
			"insurer":      {Type: genai.TypeString},
			"sumInsured":   {Type: genai.TypeString},
			"policyType":   {Type: genai.TypeString, Enum: []string{"health", "life", "auto", "home", "other"}},
			"documentType": {Type: genai.TypeString, Description: "For example policy wording, schedule, certificate."},
			"disclaimer":   {Type: genai.TypeString},
			"summary": {
				Type:     genai.TypeObject,
				Required: buckets,
				Properties: map[string]*genai.Schema{
					models.BucketGreat:   count,
					models.BucketGood:    count,
					models.BucketBad:     count,
					models.BucketUnclear: count,
				},
			},
			"features": {
				Type:     genai.TypeObject,
				Required: buckets,
				Properties: map[string]*genai.Schema{
					models.BucketGreat:   featureList("Exceptional, better than industry standard."),
					models.BucketGood:    featureList("Standard acceptable coverage."),
					models.BucketBad:     featureList("Restrictive or unfavorable terms."),
					models.BucketUnclear: featureList("Ambiguous or missing information."),
				},
			},
		},
	}

	reject := &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"reason"},
		Properties: map[string]*genai.Schema{
			"reason":       {Type: genai.TypeString, Description: "One sentence shown to the user."},
			"detectedType": {Type: genai.TypeString, Description: "What the document appears to be instead."},
		},
	}

	return []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        recordAnalysisTool,
				Description: "Record the categorized features of an insurance policy.",
				Parameters:  analysis,
			},
			{
				Name:        rejectDocumentTool,
				Description: "Reject a document that is not an insurance policy.",
				Parameters:  reject,
			},
		},
	}}
}
