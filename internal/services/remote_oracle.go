package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"alfredoptarigan/policy-analyzer/internal/config"
	"alfredoptarigan/policy-analyzer/internal/models"
)

const maxRemoteResponseBytes = 4 << 20

// remoteOracle calls another deployment of the analyze-policy contract.
type remoteOracle struct {
	url        string
	apiKey     string
	httpClient *http.Client
	schema     *AnalysisSchema
}

// NewRemoteOracle returns the HTTP backend. Per-call deadlines come from the
// context, so the client carries no timeout of its own.
func NewRemoteOracle(cfg config.OracleConfig, schema *AnalysisSchema, httpClient *http.Client) PolicyOracle {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &remoteOracle{
		url:        strings.TrimSpace(cfg.RemoteURL),
		apiKey:     cfg.RemoteAPIKey,
		httpClient: httpClient,
		schema:     schema,
	}
}

func (r *remoteOracle) Name() string { return config.ProviderRemote }

func (r *remoteOracle) Ready() error {
	if r.url == "" {
		return configurationError("ORACLE_REMOTE_URL is not configured")
	}
	return nil
}

func (r *remoteOracle) Classify(ctx context.Context, req ValidatedRequest, _ string) (*models.PolicyAnalysis, error) {
	if err := r.Ready(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req.Request())
	if err != nil {
		return nil, fmt.Errorf("marshal oracle request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, configurationError(fmt.Sprintf("invalid remote oracle url: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
		httpReq.Header.Set("apikey", r.apiKey)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, &OracleError{Kind: OracleTransientFailure, Cause: fmt.Errorf("remote oracle request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteResponseBytes))
	if err != nil {
		return nil, &OracleError{Kind: OracleTransientFailure, Cause: fmt.Errorf("read remote oracle response: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return r.schema.Decode(raw)
	}

	slog.Debug("oracle.remote.error_body", "status", resp.StatusCode, "body", string(raw))

	var failure models.ErrorResponse
	_ = json.Unmarshal(raw, &failure)

	switch resp.StatusCode {
	case http.StatusBadRequest:
		reason := failure.Message
		if reason == "" {
			reason = failure.Error
		}
		return nil, &OracleError{Kind: OracleInvalidDocument, Reason: reason, DetectedType: failure.DetectedType}
	case http.StatusRequestEntityTooLarge:
		return nil, &ValidationError{Kind: ValidationPayloadTooLarge, Limit: DefaultMaxRequestBytes, Actual: int64(len(body))}
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, configurationError(fmt.Sprintf("remote oracle refused credentials with status %d; check ORACLE_REMOTE_API_KEY", resp.StatusCode))
	}
	return nil, &OracleError{
		Kind:  OracleTransientFailure,
		Cause: fmt.Errorf("remote oracle returned status %d: %s", resp.StatusCode, failure.Error),
	}
}
