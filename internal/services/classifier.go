package services

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"golang.org/x/time/rate"

	"alfredoptarigan/policy-analyzer/internal/metrics"
	"alfredoptarigan/policy-analyzer/internal/models"
	"alfredoptarigan/policy-analyzer/internal/resilience"
)

// Data-quality warnings attached to a successful classification.
const (
	WarningEmptyAnalysis        = "empty_analysis"
	WarningSummaryCountMismatch = "summary_count_mismatch"
)

var errEmptyAnalysis = errors.New("oracle returned an empty analysis")

type ClassificationResult struct {
	Analysis *models.PolicyAnalysis
	Warnings []string
	Attempts int
}

// PolicyClassifier wraps a PolicyOracle with the call policy: configuration
// check, outbound rate limit, per-attempt timeout, bounded retries and
// result post-processing.
type PolicyClassifier struct {
	oracle   PolicyOracle
	executor *resilience.Executor
	limiter  *rate.Limiter
	timeout  time.Duration
	metrics  *metrics.PipelineMetrics
}

// NewPolicyClassifier wires the classifier. limiter may be nil for no rate
// limit; a zero timeout disables the per-attempt deadline.
func NewPolicyClassifier(
	oracle PolicyOracle,
	executor *resilience.Executor,
	limiter *rate.Limiter,
	timeout time.Duration,
	m *metrics.PipelineMetrics,
) *PolicyClassifier {
	return &PolicyClassifier{
		oracle:   oracle,
		executor: executor,
		limiter:  limiter,
		timeout:  timeout,
		metrics:  m,
	}
}

// NewOracleLimiter converts a per-minute budget into a token bucket. A
// non-positive budget means unlimited.
func NewOracleLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

func (c *PolicyClassifier) Provider() string { return c.oracle.Name() }

// Ready reports whether the oracle is configured, without calling it.
func (c *PolicyClassifier) Ready() error { return c.oracle.Ready() }

// Classify sends req to the oracle. Empty and malformed results, attempt
// timeouts and connection failures are retried within the executor's attempt
// budget; when every attempt comes back empty
// the last empty analysis is returned with WarningEmptyAnalysis.
func (c *PolicyClassifier) Classify(ctx context.Context, req ValidatedRequest, lineOfBusiness string) (*ClassificationResult, error) {
	provider := c.oracle.Name()

	if err := c.oracle.Ready(); err != nil {
		slog.Error("oracle.classify.not_configured", "provider", provider, "error", err)
		c.metrics.ObserveOracleAttempt(provider, ErrorKind(err))
		return nil, err
	}

	var (
		last     *models.PolicyAnalysis
		attempts int
	)

	err := c.executor.Execute(ctx, "oracle."+provider, func(ctx context.Context, attempt int) error {
		attempts = attempt

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return &OracleError{Kind: OracleTransientFailure, Cause: err}
			}
		}

		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		started := time.Now()
		analysis, err := c.oracle.Classify(callCtx, req, lineOfBusiness)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !errors.As(err, new(*OracleError)) && !errors.As(err, new(*ValidationError)) {
				err = &OracleError{Kind: OracleTransientFailure, Cause: err}
			}
			c.metrics.ObserveOracleAttempt(provider, ErrorKind(err))
			slog.Warn("oracle.classify.attempt_failed",
				"provider", provider,
				"attempt", attempt,
				"kind", ErrorKind(err),
				"elapsed_ms", time.Since(started).Milliseconds(),
				"error", err,
			)
			return err
		}

		last = analysis
		if analysis.IsEmpty() {
			c.metrics.ObserveOracleAttempt(provider, "empty")
			slog.Warn("oracle.classify.empty", "provider", provider, "attempt", attempt)
			return errEmptyAnalysis
		}

		c.metrics.ObserveOracleAttempt(provider, "ok")
		return nil
	}, classifyOracleError)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	result := &ClassificationResult{Attempts: attempts}

	switch {
	case err == nil:
	case last != nil && (errors.Is(err, errEmptyAnalysis) || oracleKind(err) == OracleMalformedResponse):
		// Every usable answer was empty; hand back the last one.
		result.Warnings = append(result.Warnings, WarningEmptyAnalysis)
	case resilience.IsCircuitOpen(err):
		c.metrics.ObserveOracleAttempt(provider, "circuit_open")
		return nil, &OracleError{Kind: OracleTransientFailure, Cause: err}
	default:
		return nil, err
	}

	analysis := last
	if mismatches := analysis.CountMismatches(); len(mismatches) > 0 {
		slog.Warn("oracle.classify.count_mismatch",
			"provider", provider,
			"mismatches", mismatches,
		)
		result.Warnings = append(result.Warnings, WarningSummaryCountMismatch)
	}
	for _, w := range result.Warnings {
		c.metrics.ObserveWarning(w)
	}

	analysis.Normalize()
	result.Analysis = analysis
	return result, nil
}

func classifyOracleError(err error) resilience.ErrorClassification {
	if errors.Is(err, errEmptyAnalysis) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: false}
	}
	if isContextError(err) && !errors.As(err, new(*OracleError)) {
		return resilience.ErrorClassification{}
	}

	switch oracleKind(err) {
	case OracleMalformedResponse:
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case OracleTransientFailure:
		return resilience.ErrorClassification{Retryable: isConnectionFailure(err), RecordFailure: true}
	case OracleInvalidDocument, OracleConfigurationError:
		return resilience.ErrorClassification{}
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func oracleKind(err error) OracleKind {
	var orErr *OracleError
	if errors.As(err, &orErr) {
		return orErr.Kind
	}
	return ""
}

// isConnectionFailure reports whether a transient failure happened before an
// answer arrived: an attempt timeout or a network error. Error statuses from
// the oracle are answers and stay terminal.
func isConnectionFailure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
