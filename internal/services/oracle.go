package services

import (
	"context"
	"errors"

	"alfredoptarigan/policy-analyzer/internal/models"
)

// PolicyOracle is one classification backend. Classify performs a single
// round trip; retries belong to PolicyClassifier.
type PolicyOracle interface {
	Name() string
	// Ready reports a ConfigurationError without touching the network.
	Ready() error
	Classify(ctx context.Context, req ValidatedRequest, lineOfBusiness string) (*models.PolicyAnalysis, error)
}

func configurationError(detail string) *OracleError {
	return &OracleError{Kind: OracleConfigurationError, Cause: errors.New(detail)}
}
