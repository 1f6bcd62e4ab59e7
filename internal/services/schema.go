package services

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"alfredoptarigan/policy-analyzer/internal/models"
)

const analysisSchemaURL = "policy_analysis.schema.json"

func featureSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"name"},
		"properties": map[string]any{
			"name":        map[string]any{"type": "string", "minLength": 1},
			"quote":       map[string]any{"type": "string"},
			"reference":   map[string]any{"type": "string"},
			"explanation": map[string]any{"type": "string"},
		},
	}
}

// PolicyAnalysisSchema returns the JSON schema every oracle result must match.
func PolicyAnalysisSchema() map[string]any {
	count := map[string]any{"type": "integer", "minimum": 0}
	list := map[string]any{"type": []string{"array", "null"}, "items": featureSchema()}
	optString := map[string]any{"type": []string{"string", "null"}}

	return map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"type":     "object",
		"required": []string{"summary", "features"},
		"properties": map[string]any{
			"policyName":   optString,
			"insurer":      optString,
			"sumInsured":   optString,
			"policyType":   optString,
			"documentType": optString,
			"disclaimer":   optString,
			"summary": map[string]any{
				"type":     "object",
				"required": []string{"great", "good", "bad", "unclear"},
				"properties": map[string]any{
					"great":   count,
					"good":    count,
					"bad":     count,
					"unclear": count,
				},
			},
			"features": map[string]any{
				"type":     "object",
				"required": []string{"great", "good", "bad", "unclear"},
				"properties": map[string]any{
					"great":   list,
					"good":    list,
					"bad":     list,
					"unclear": list,
				},
			},
		},
	}
}

// AnalysisSchema validates and decodes oracle payloads.
type AnalysisSchema struct {
	schema *jsonschema.Schema
}

func NewAnalysisSchema() (*AnalysisSchema, error) {
	b, err := json.Marshal(PolicyAnalysisSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(analysisSchemaURL, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(analysisSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &AnalysisSchema{schema: schema}, nil
}

// Decode accepts a bare analysis or one wrapped as {"analysis": ...}. Any
// payload that is not JSON or does not match the schema is a
// MalformedResponse.
func (s *AnalysisSchema) Decode(raw []byte) (*models.PolicyAnalysis, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &OracleError{Kind: OracleMalformedResponse, Cause: fmt.Errorf("unmarshal data: %w", err)}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &OracleError{Kind: OracleMalformedResponse, Cause: fmt.Errorf("expected a JSON object, got %T", v)}
	}
	obj = unwrapAnalysis(obj)

	if err := s.schema.Validate(obj); err != nil {
		return nil, &OracleError{Kind: OracleMalformedResponse, Cause: fmt.Errorf("json does not match schema: %w", err)}
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return nil, &OracleError{Kind: OracleMalformedResponse, Cause: err}
	}
	var analysis models.PolicyAnalysis
	if err := json.Unmarshal(b, &analysis); err != nil {
		return nil, &OracleError{Kind: OracleMalformedResponse, Cause: fmt.Errorf("decode analysis: %w", err)}
	}
	return &analysis, nil
}

// DecodeValue is Decode for an already parsed value, such as tool-call
// arguments.
func (s *AnalysisSchema) DecodeValue(v any) (*models.PolicyAnalysis, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, &OracleError{Kind: OracleMalformedResponse, Cause: fmt.Errorf("marshal arguments: %w", err)}
	}
	return s.Decode(raw)
}

// unwrapAnalysis strips the {"analysis": ...} envelope and maps the legacy
// insurerName field onto insurer.
func unwrapAnalysis(obj map[string]any) map[string]any {
	if inner, ok := obj["analysis"].(map[string]any); ok {
		if _, bare := obj["features"]; !bare {
			obj = inner
		}
	}
	if _, ok := obj["insurer"]; !ok {
		if name, ok := obj["insurerName"].(string); ok {
			obj["insurer"] = name
		}
	}
	return obj
}
